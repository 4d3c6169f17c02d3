package query

import (
	"fmt"
	"testing"

	"github.com/IvanBrykalov/dexcache/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var categories = []string{
	"normal", "fighting", "flying", "poison", "ground", "rock", "bug", "ghost", "steel",
	"fire", "water", "grass", "electric", "psychic", "ice", "dragon", "dark", "fairy",
}

// fullDex builds records 1..386, each tagged with one of 18 categories.
func fullDex() []model.Record {
	out := make([]model.Record, 0, 386)
	for id := 1; id <= 386; id++ {
		out = append(out, model.Record{
			ID:         id,
			Name:       fmt.Sprintf("mon%03d", id),
			Categories: []string{categories[id%len(categories)]},
			Attributes: []model.Attribute{
				{Name: "hp", Value: id % 256},
				{Name: "attack", Value: (id * 7) % 256},
			},
		})
	}
	return out
}

func ids(rs []model.Record) []int {
	out := make([]int, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestApply_GroupScenario(t *testing.T) {
	t.Parallel()

	got := Apply(fullDex(), Criteria{Group: 2}, nil)
	require.Len(t, got, 100)
	for _, r := range got {
		assert.True(t, r.ID >= 152 && r.ID <= 251, "id %d outside group 2", r.ID)
	}
	assert.Equal(t, 152, got[0].ID)
	assert.Equal(t, 251, got[99].ID)
}

func TestApply_UnknownGroupMatchesNothing(t *testing.T) {
	t.Parallel()

	got := Apply(fullDex(), Criteria{Group: 9}, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestApply_QueryMatchesIDOrName(t *testing.T) {
	t.Parallel()

	records := []model.Record{
		{ID: 25, Name: "pikachu"},
		{ID: 26, Name: "raichu"},
		{ID: 300, Name: "25anything"},
		{ID: 125, Name: "electabuzz"},
	}
	got := Apply(records, Criteria{Query: "  25 "}, nil)
	assert.Equal(t, []int{25, 300}, ids(got), "exact id or name substring, never id substring")

	got = Apply(records, Criteria{Query: "CHU"}, nil)
	assert.Equal(t, []int{25, 26}, ids(got))

	got = Apply(records, Criteria{Query: "   "}, nil)
	assert.Len(t, got, 4, "blank query keeps all")
}

func TestApply_EmptyCriteriaSortsByID(t *testing.T) {
	t.Parallel()

	records := fullDex()
	shuffled := append([]model.Record(nil), records...)
	for i := range shuffled {
		j := (i * 131) % len(shuffled)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	got := Apply(shuffled, Criteria{}, nil)
	assert.Equal(t, ids(records), ids(got))
	assert.NotEqual(t, ids(records), ids(shuffled), "input must not be sorted in place")
}

func TestApply_CategoryCaseInsensitive(t *testing.T) {
	t.Parallel()

	got := Apply(fullDex(), Criteria{Category: "FIRE"}, nil)
	require.NotEmpty(t, got)
	for _, r := range got {
		assert.True(t, r.HasCategory("fire"))
	}
	assert.Len(t, got, 21) // ids with id%18 == 9 in 1..386
}

func TestApply_ConjunctiveFilters(t *testing.T) {
	t.Parallel()

	c := Criteria{
		Group:    1,
		Category: "water",
		Bounds:   []AttributeBound{{Name: "HP", Min: 50, Max: 120}},
	}
	got := Apply(fullDex(), c, nil)
	for _, r := range got {
		hp, _ := r.Attribute("hp")
		assert.True(t, r.ID <= 151)
		assert.True(t, r.HasCategory("water"))
		assert.True(t, hp >= 50 && hp <= 120)
	}
	assert.Equal(t, []int{64, 82, 100, 118}, ids(got))
}

func TestApply_FullRangeBoundKeepsRecordsWithoutAttribute(t *testing.T) {
	t.Parallel()

	records := []model.Record{
		{ID: 1, Attributes: []model.Attribute{{Name: "speed", Value: 10}}},
		{ID: 2},
	}

	full := Criteria{Bounds: []AttributeBound{{Name: "speed", Min: 0, Max: MaxAttributeValue}}}
	assert.Equal(t, []int{1, 2}, ids(Apply(records, full, nil)))

	narrowed := Criteria{Bounds: []AttributeBound{{Name: "speed", Min: 1, Max: MaxAttributeValue}}}
	assert.Equal(t, []int{1}, ids(Apply(records, narrowed, nil)))
}

func TestApply_BoundsMissingAttributeExcluded(t *testing.T) {
	t.Parallel()

	records := []model.Record{
		{ID: 1, Attributes: []model.Attribute{{Name: "speed", Value: 10}}},
		{ID: 2},
	}
	got := Apply(records, Criteria{Bounds: []AttributeBound{{Name: "speed", Min: 0, Max: 20}}}, nil)
	assert.Equal(t, []int{1}, ids(got))
}

func TestApply_Sorting(t *testing.T) {
	t.Parallel()

	records := []model.Record{
		{ID: 3, Name: "Cc", Attributes: []model.Attribute{{Name: "hp", Value: 10}, {Name: "attack", Value: 5}}},
		{ID: 1, Name: "bb", Attributes: []model.Attribute{{Name: "hp", Value: 10}, {Name: "attack", Value: 1}}},
		{ID: 2, Name: "aa", Attributes: []model.Attribute{{Name: "hp", Value: 30}}},
	}
	tests := []struct {
		name string
		c    Criteria
		want []int
	}{
		{"name asc", Criteria{Sort: SortByName}, []int{2, 1, 3}},
		{"name desc", Criteria{Sort: SortByName, Order: Desc}, []int{3, 1, 2}},
		{"total asc", Criteria{Sort: SortByTotal}, []int{1, 3, 2}},
		{"total desc", Criteria{Sort: SortByTotal, Order: Desc}, []int{2, 3, 1}},
		{"hp desc ties by id asc", Criteria{Sort: SortByAttribute("HP"), Order: Desc}, []int{2, 1, 3}},
		{"hp asc ties by id asc", Criteria{Sort: SortByAttribute("hp")}, []int{1, 3, 2}},
		{"id desc", Criteria{Order: Desc}, []int{3, 2, 1}},
		{"unknown order falls back to asc", Criteria{Order: "sideways"}, []int{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(records, tt.c, nil)))
		})
	}
}

func TestApply_Idempotent(t *testing.T) {
	t.Parallel()

	records := fullDex()
	for _, c := range []Criteria{
		{},
		{Group: 3},
		{Query: "mon1"},
		{Category: "grass", Sort: SortByTotal, Order: Desc},
		{Bounds: []AttributeBound{{Name: "attack", Min: 100, Max: 200}}, Sort: SortByAttribute("attack")},
	} {
		once := Apply(records, c, nil)
		twice := Apply(once, c, nil)
		assert.Equal(t, ids(once), ids(twice), "criteria %+v", c)
	}
}

func TestApply_CustomGroups(t *testing.T) {
	t.Parallel()

	groups := model.Groups{
		{ID: 1, Name: "low", Range: model.IDRange{Start: 1, End: 10}},
		{ID: 2, Name: "high", Range: model.IDRange{Start: 11, End: 386}},
	}
	assert.Len(t, Apply(fullDex(), Criteria{Group: 1}, groups), 10)
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	records := fullDex()[:45]
	tests := []struct {
		name              string
		n, page, size     int
		wantLen, wantPage int
		wantTotal         int
	}{
		{"empty set is page 1 of 1", 0, 1, 20, 0, 1, 1},
		{"empty set clamps page", 0, 7, 20, 0, 1, 1},
		{"exact multiple has no trailing page", 40, 2, 20, 20, 2, 2},
		{"exact multiple clamps beyond end", 40, 3, 20, 20, 2, 2},
		{"last partial page", 45, 3, 20, 5, 3, 3},
		{"page below 1 clamps", 45, -2, 20, 20, 1, 3},
		{"default page size", 45, 1, 0, 20, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, w := Paginate(records[:tt.n], tt.page, tt.size)
			assert.Len(t, page, tt.wantLen)
			assert.Equal(t, tt.wantPage, w.Page)
			assert.Equal(t, tt.wantTotal, w.TotalPages)
			assert.Equal(t, tt.n, w.Total)
		})
	}
}

func TestPaginate_SliceContents(t *testing.T) {
	t.Parallel()

	page, w := Paginate(fullDex(), 2, 20)
	assert.Equal(t, 21, page[0].ID)
	assert.Equal(t, 40, page[19].ID)
	assert.True(t, w.HasPrev())
	assert.True(t, w.HasNext())
	first, last := w.Bounds()
	assert.Equal(t, 21, first)
	assert.Equal(t, 40, last)

	_, w = Paginate(nil, 1, 20)
	assert.False(t, w.HasPrev())
	assert.False(t, w.HasNext())
	first, last = w.Bounds()
	assert.Zero(t, first)
	assert.Zero(t, last)

	// Appending to a page must not clobber the next one.
	records := fullDex()[:4]
	p1, _ := Paginate(records, 1, 2)
	_ = append(p1, model.Record{ID: 999})
	assert.Equal(t, 3, records[2].ID)
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	records := []model.Record{
		{ID: 1, Name: "pika"},
		{ID: 25, Name: "pikachu"},
		{ID: 26, Name: "raichu"},
		{ID: 172, Name: "pichu"},
		{ID: 2, Name: "pika"},
	}
	got := Suggest(records, "Pika", 0)
	require.Len(t, got, 3)
	assert.Equal(t, RelevanceExactName, got[0].Relevance)
	assert.Equal(t, 1, got[0].Record.ID)
	assert.Equal(t, 2, got[1].Record.ID)
	assert.Equal(t, RelevanceNamePrefix, got[2].Relevance)

	got = Suggest(records, "chu", 0)
	assert.Equal(t, []int{25, 26, 172}, []int{got[0].Record.ID, got[1].Record.ID, got[2].Record.ID})
	for _, s := range got {
		assert.Equal(t, RelevanceSubstring, s.Relevance)
	}

	got = Suggest(records, "26", 0)
	require.Len(t, got, 1)
	assert.Equal(t, RelevanceExactID, got[0].Relevance)

	assert.Nil(t, Suggest(records, "p", 0), "single character yields nothing")
}

func TestSuggest_Limit(t *testing.T) {
	t.Parallel()

	assert.Len(t, Suggest(fullDex(), "mon", 0), DefaultSuggestLimit)
	assert.Len(t, Suggest(fullDex(), "mon", 3), 3)
}

func TestCriteria_NormalizeAndIsZero(t *testing.T) {
	t.Parallel()

	assert.True(t, Criteria{}.IsZero())
	assert.True(t, Criteria{Query: "  ", Sort: SortByID, Order: Asc}.IsZero())
	assert.True(t, Criteria{Bounds: []AttributeBound{{Name: "hp", Min: 0, Max: 255}}}.IsZero())
	assert.False(t, Criteria{Group: 1}.IsZero())
	assert.False(t, Criteria{Order: Desc}.IsZero())

	n := Criteria{
		Category: " Fire ",
		Sort:     "bogus",
		Bounds:   []AttributeBound{{Name: " Attack ", Min: 90, Max: 10}},
	}.Normalize()
	assert.Equal(t, "fire", n.Category)
	assert.Equal(t, SortByID, n.Sort, "unknown keys fall back to id")
	assert.Equal(t, []AttributeBound{{Name: "attack", Min: 10, Max: 90}}, n.Bounds)

	assert.True(t, Criteria{Category: "FIRE"}.Equal(Criteria{Category: "fire", Order: Asc}))
}

func TestParseSort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		key  SortKey
		dir  Direction
		fail bool
	}{
		{in: "total-desc", key: SortByTotal, dir: Desc},
		{in: "Attack", key: SortByAttribute("attack"), dir: Asc},
		{in: "", key: SortByID, dir: Asc},
		{in: "name-asc", key: SortByName, dir: Asc},
		{in: "special-attack", key: SortByAttribute("special-attack"), dir: Asc},
		{in: "special-defense-desc", key: SortByAttribute("special-defense"), dir: Desc},
		{in: " Special-Attack-ASC ", key: SortByAttribute("special-attack"), dir: Asc},
		{in: "total-", fail: true},
		{in: "-attack", fail: true},
	}
	for _, tt := range tests {
		k, d, err := ParseSort(tt.in)
		if tt.fail {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.key, k, "input %q", tt.in)
		assert.Equal(t, tt.dir, d, "input %q", tt.in)
	}
}

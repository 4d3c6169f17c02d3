package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recordJSON = `{
  "id": 25,
  "name": "pikachu",
  "height": 4,
  "weight": 60,
  "types": [{"slot": 1, "type": {"name": "electric", "url": "https://x/api/v2/type/13/"}}],
  "stats": [
    {"base_stat": 35, "stat": {"name": "hp"}},
    {"base_stat": 55, "stat": {"name": "attack"}}
  ],
  "sprites": {
    "front_default": "https://img/25.png",
    "other": {"official-artwork": {"front_default": "https://img/art/25.png"}}
  }
}`

func TestDecodeRecord(t *testing.T) {
	r, err := DecodeRecord([]byte(recordJSON))
	require.NoError(t, err)

	assert.Equal(t, 25, r.ID)
	assert.Equal(t, "pikachu", r.Name)
	assert.Equal(t, []string{"electric"}, r.Categories)
	assert.Equal(t, []Attribute{{Name: "hp", Value: 35}, {Name: "attack", Value: 55}}, r.Attributes)
	assert.Equal(t, "https://img/art/25.png", r.Images.Artwork)
	assert.Equal(t, 90, r.AttributeTotal())
	assert.True(t, r.HasCategory("ELECTRIC"))

	v, ok := r.Attribute("Attack")
	assert.True(t, ok)
	assert.Equal(t, 55, v)
}

func TestDecodeRecord_MissingID(t *testing.T) {
	_, err := DecodeRecord([]byte(`{"name":"nobody"}`))
	assert.Error(t, err)
}

func TestDecodeSpecies_Description(t *testing.T) {
	raw := `{"id":1,"name":"bulbasaur",
	  "flavor_text_entries":[
	    {"flavor_text":"Une graine","language":{"name":"fr"}},
	    {"flavor_text":"A strange seed\nwas planted\fon its back.","language":{"name":"en"}}
	  ],
	  "evolution_chain":{"url":"https://x/api/v2/evolution-chain/1/"}}`
	s, err := DecodeSpecies([]byte(raw))
	require.NoError(t, err)

	d, ok := s.Description("en")
	require.True(t, ok)
	assert.Equal(t, "A strange seed was planted on its back.", d)

	id, ok := IDFromURL(s.EvolutionChainURL)
	assert.True(t, ok)
	assert.Equal(t, 1, id)
}

func TestDecodeEvolutionChain_Flattens(t *testing.T) {
	raw := `{"id":67,"chain":{"species":{"name":"eevee"},"evolves_to":[
	  {"species":{"name":"vaporeon"},"evolves_to":[]},
	  {"species":{"name":"jolteon"},"evolves_to":[]}
	]}}`
	ec, err := DecodeEvolutionChain([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 67, ec.ID)
	assert.Equal(t, []string{"eevee", "vaporeon", "jolteon"}, ec.Stages)
}

func TestDecodeCategories(t *testing.T) {
	raw := `{"results":[
	  {"name":"normal","url":"https://x/api/v2/type/1/"},
	  {"name":"broken","url":"https://x/api/v2/type/"}
	]}`
	cats, err := DecodeCategories([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, []Category{{ID: 1, Name: "normal"}}, cats)
}

func TestGroups_DefaultIsValid(t *testing.T) {
	g := DefaultGroups()
	require.NoError(t, g.Validate())
	assert.Equal(t, IDRange{Start: 1, End: 386}, g.Span())

	r, ok := g.Range(2)
	require.True(t, ok)
	assert.Equal(t, 100, r.Len())

	grp, ok := g.Of(252)
	require.True(t, ok)
	assert.Equal(t, 3, grp.ID)
}

func TestGroups_ValidateRejectsGapsAndOverlaps(t *testing.T) {
	gap := Groups{
		{ID: 1, Range: IDRange{Start: 1, End: 10}},
		{ID: 2, Range: IDRange{Start: 12, End: 20}},
	}
	assert.Error(t, gap.Validate())

	overlap := Groups{
		{ID: 1, Range: IDRange{Start: 1, End: 10}},
		{ID: 2, Range: IDRange{Start: 10, End: 20}},
	}
	assert.Error(t, overlap.Validate())

	dup := Groups{
		{ID: 1, Range: IDRange{Start: 1, End: 10}},
		{ID: 1, Range: IDRange{Start: 11, End: 20}},
	}
	assert.Error(t, dup.Validate())
}

func TestIDRange(t *testing.T) {
	r := IDRange{Start: 3, End: 5}
	assert.Equal(t, []int{3, 4, 5}, r.IDs())
	assert.NoError(t, r.Validate())
	assert.ErrorIs(t, IDRange{Start: 0, End: 5}.Validate(), ErrInvalidRange)
	assert.ErrorIs(t, IDRange{Start: 5, End: 4}.Validate(), ErrInvalidRange)
}

package query

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/IvanBrykalov/dexcache/model"
)

const (
	// DefaultSuggestLimit caps Suggest results for non-positive limits.
	DefaultSuggestLimit = 8
	// MinSuggestQuery is the shortest trimmed query that yields suggestions.
	MinSuggestQuery = 2
)

// Relevance scores.
const (
	RelevanceExactName  = 100
	RelevanceNamePrefix = 90
	RelevanceExactID    = 80
	RelevanceSubstring  = 70
)

// Suggestion is a scored search match.
type Suggestion struct {
	Record    model.Record
	Relevance int
}

// Suggest ranks records against q: exact name, name prefix, exact id, then
// name substring. Results are ordered by relevance descending, then id,
// and capped at limit (DefaultSuggestLimit if limit <= 0).
func Suggest(records []model.Record, q string, limit int) []Suggestion {
	q = strings.ToLower(strings.TrimSpace(q))
	if len([]rune(q)) < MinSuggestQuery {
		return nil
	}
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}

	var out []Suggestion
	for _, r := range records {
		if score := relevance(r, q); score > 0 {
			out = append(out, Suggestion{Record: r, Relevance: score})
		}
	}
	slices.SortFunc(out, func(a, b Suggestion) int {
		if c := cmp.Compare(b.Relevance, a.Relevance); c != 0 {
			return c
		}
		return cmp.Compare(a.Record.ID, b.Record.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func relevance(r model.Record, q string) int {
	name := strings.ToLower(r.Name)
	switch {
	case name == q:
		return RelevanceExactName
	case strings.HasPrefix(name, q):
		return RelevanceNamePrefix
	case strconv.Itoa(r.ID) == q:
		return RelevanceExactID
	case strings.Contains(name, q):
		return RelevanceSubstring
	}
	return 0
}

package model

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidRange is returned for ranges with Start < 1 or End < Start.
var ErrInvalidRange = errors.New("model: invalid id range")

// IDRange is an inclusive identifier range.
type IDRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Validate checks 1 <= Start <= End.
func (r IDRange) Validate() error {
	if r.Start < 1 || r.End < r.Start {
		return fmt.Errorf("%w: [%d,%d]", ErrInvalidRange, r.Start, r.End)
	}
	return nil
}

// Len returns the number of identifiers in the range (0 if invalid).
func (r IDRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether id lies in the range.
func (r IDRange) Contains(id int) bool { return id >= r.Start && id <= r.End }

// IDs expands the range in ascending order.
func (r IDRange) IDs() []int {
	ids := make([]int, 0, r.Len())
	for id := r.Start; id <= r.End; id++ {
		ids = append(ids, id)
	}
	return ids
}

// Group is a named, contiguous identifier range.
type Group struct {
	ID    int     `json:"id" yaml:"id"`
	Name  string  `json:"name" yaml:"name"`
	Range IDRange `json:"range" yaml:"range"`
}

// Groups is an ordered table of group ranges.
type Groups []Group

// DefaultGroups covers identifiers 1..386.
func DefaultGroups() Groups {
	return Groups{
		{ID: 1, Name: "Kanto", Range: IDRange{Start: 1, End: 151}},
		{ID: 2, Name: "Johto", Range: IDRange{Start: 152, End: 251}},
		{ID: 3, Name: "Hoenn", Range: IDRange{Start: 252, End: 386}},
	}
}

// Validate enforces contiguous, non-overlapping, gap-free ranges with unique ids.
func (g Groups) Validate() error {
	if len(g) == 0 {
		return errors.New("model: empty group table")
	}
	sorted := slices.Clone(g)
	slices.SortFunc(sorted, func(a, b Group) int { return a.Range.Start - b.Range.Start })
	seen := make(map[int]struct{}, len(g))
	for i, grp := range sorted {
		if err := grp.Range.Validate(); err != nil {
			return fmt.Errorf("group %d: %w", grp.ID, err)
		}
		if _, dup := seen[grp.ID]; dup {
			return fmt.Errorf("model: duplicate group id %d", grp.ID)
		}
		seen[grp.ID] = struct{}{}
		if i > 0 && grp.Range.Start != sorted[i-1].Range.End+1 {
			return fmt.Errorf("model: group %d starts at %d, want %d", grp.ID, grp.Range.Start, sorted[i-1].Range.End+1)
		}
	}
	return nil
}

// Range returns the id range of group n.
func (g Groups) Range(n int) (IDRange, bool) {
	for _, grp := range g {
		if grp.ID == n {
			return grp.Range, true
		}
	}
	return IDRange{}, false
}

// Of returns the group containing id.
func (g Groups) Of(id int) (Group, bool) {
	for _, grp := range g {
		if grp.Range.Contains(id) {
			return grp, true
		}
	}
	return Group{}, false
}

// Span returns the range covering every group.
func (g Groups) Span() IDRange {
	if len(g) == 0 {
		return IDRange{}
	}
	span := g[0].Range
	for _, grp := range g[1:] {
		span.Start = min(span.Start, grp.Range.Start)
		span.End = max(span.End, grp.Range.End)
	}
	return span
}

// Package query is the pure query pipeline over a materialized record set:
// filtering, ordering, pagination and search suggestions.
package query

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/IvanBrykalov/dexcache/model"
)

// Apply returns the records matching every filter in c, sorted. Filters
// run in order group, category, free text, attribute bounds. A nil groups
// table means model.DefaultGroups(); an unknown group matches nothing.
// The input is not modified and the result never aliases it.
func Apply(records []model.Record, c Criteria, groups model.Groups) []model.Record {
	c = c.Normalize()
	if groups == nil {
		groups = model.DefaultGroups()
	}

	keep := make([]func(model.Record) bool, 0, 4)
	if c.Group != 0 {
		rng, ok := groups.Range(c.Group)
		if !ok {
			return []model.Record{}
		}
		keep = append(keep, func(r model.Record) bool { return rng.Contains(r.ID) })
	}
	if c.Category != "" {
		keep = append(keep, func(r model.Record) bool { return r.HasCategory(c.Category) })
	}
	if c.Query != "" {
		q := strings.ToLower(c.Query)
		keep = append(keep, func(r model.Record) bool {
			return strings.Contains(strings.ToLower(r.Name), q) || strconv.Itoa(r.ID) == c.Query
		})
	}
	for _, b := range c.Bounds {
		b := b
		keep = append(keep, func(r model.Record) bool {
			v, ok := r.Attribute(b.Name)
			return ok && v >= b.Min && v <= b.Max
		})
	}

	out := make([]model.Record, 0, len(records))
next:
	for _, r := range records {
		for _, f := range keep {
			if !f(r) {
				continue next
			}
		}
		out = append(out, r)
	}

	slices.SortStableFunc(out, comparator(c.Sort, c.Order))
	return out
}

// comparator orders by key in the given direction; ties always fall back
// to ascending id.
func comparator(key SortKey, dir Direction) func(a, b model.Record) int {
	var primary func(a, b model.Record) int
	switch key {
	case SortByName:
		primary = func(a, b model.Record) int { return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)) }
	case SortByTotal:
		primary = func(a, b model.Record) int { return cmp.Compare(a.AttributeTotal(), b.AttributeTotal()) }
	case SortByID:
		primary = func(a, b model.Record) int { return cmp.Compare(a.ID, b.ID) }
	default:
		name, _ := key.Attribute()
		primary = func(a, b model.Record) int {
			va, _ := a.Attribute(name)
			vb, _ := b.Attribute(name)
			return cmp.Compare(va, vb)
		}
	}
	return func(a, b model.Record) int {
		c := primary(a, b)
		if dir == Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	}
}

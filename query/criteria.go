package query

import (
	"fmt"
	"slices"
	"strings"
)

// MaxAttributeValue is the upper end of an attribute's range.
const MaxAttributeValue = 255

// SortKey selects the primary sort field.
type SortKey string

const (
	SortByID    SortKey = "id"
	SortByName  SortKey = "name"
	SortByTotal SortKey = "total" // sum of all attributes

	attrPrefix = "attr:"
)

// SortByAttribute sorts by the value of the named attribute. Records
// without it sort as if it were zero.
func SortByAttribute(name string) SortKey {
	return SortKey(attrPrefix + strings.ToLower(strings.TrimSpace(name)))
}

// Attribute returns the attribute name of a SortByAttribute key.
func (k SortKey) Attribute() (string, bool) {
	return strings.CutPrefix(string(k), attrPrefix)
}

// Direction is the sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// AttributeBound keeps records whose named attribute lies in [Min, Max],
// both ends inclusive. A record without the attribute is excluded.
//
// Normalize drops a bound covering the whole 0..MaxAttributeValue range, so
// such a bound filters nothing, records lacking the attribute included.
type AttributeBound struct {
	Name string `json:"name"`
	Min  int    `json:"min"`
	Max  int    `json:"max"`
}

// Criteria is the full set of filters and ordering applied to the dataset.
// The zero value selects everything in ascending id order.
type Criteria struct {
	Group    int              `json:"group,omitempty"`
	Category string           `json:"category,omitempty"`
	Query    string           `json:"query,omitempty"`
	Sort     SortKey          `json:"sort,omitempty"`
	Order    Direction        `json:"order,omitempty"`
	Bounds   []AttributeBound `json:"bounds,omitempty"`
}

// Normalize returns c in canonical form: trimmed lower-case text fields,
// explicit default sort and order, bounds with Min <= Max, and bounds that
// cover the whole attribute range dropped.
func (c Criteria) Normalize() Criteria {
	out := Criteria{
		Group:    max(c.Group, 0),
		Category: strings.ToLower(strings.TrimSpace(c.Category)),
		Query:    strings.TrimSpace(c.Query),
		Sort:     c.Sort,
		Order:    c.Order,
	}
	switch out.Sort {
	case SortByID, SortByName, SortByTotal:
	default:
		if name, ok := out.Sort.Attribute(); !ok || name == "" {
			out.Sort = SortByID
		}
	}
	if out.Order != Desc {
		out.Order = Asc
	}
	for _, b := range c.Bounds {
		b.Name = strings.ToLower(strings.TrimSpace(b.Name))
		if b.Min > b.Max {
			b.Min, b.Max = b.Max, b.Min
		}
		if b.Name == "" || (b.Min <= 0 && b.Max >= MaxAttributeValue) {
			continue
		}
		out.Bounds = append(out.Bounds, b)
	}
	return out
}

// IsZero reports whether c selects the whole dataset in default order.
func (c Criteria) IsZero() bool {
	n := c.Normalize()
	return n.Group == 0 && n.Category == "" && n.Query == "" &&
		n.Sort == SortByID && n.Order == Asc && len(n.Bounds) == 0
}

// Equal reports whether a and b select the same records in the same order.
func (c Criteria) Equal(o Criteria) bool {
	a, b := c.Normalize(), o.Normalize()
	return a.Group == b.Group && a.Category == b.Category && a.Query == b.Query &&
		a.Sort == b.Sort && a.Order == b.Order && slices.Equal(a.Bounds, b.Bounds)
}

// ParseSort parses "field" or "field-order", e.g. "total-desc", "name",
// "special-attack-asc". Only a trailing "-asc" or "-desc" is an order, so
// hyphenated attribute names parse as fields. Unknown fields are taken as
// attribute names.
func ParseSort(s string) (SortKey, Direction, error) {
	field := strings.ToLower(strings.TrimSpace(s))
	dir := Asc
	if i := strings.LastIndexByte(field, '-'); i >= 0 {
		switch field[i+1:] {
		case "asc":
			field = field[:i]
		case "desc":
			field, dir = field[:i], Desc
		}
	}
	if strings.HasPrefix(field, "-") || strings.HasSuffix(field, "-") {
		return "", "", fmt.Errorf("query: invalid sort field %q", field)
	}
	switch SortKey(field) {
	case "", SortByID:
		return SortByID, dir, nil
	case SortByName, SortByTotal:
		return SortKey(field), dir, nil
	}
	return SortByAttribute(field), dir, nil
}

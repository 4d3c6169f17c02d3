package query

import "github.com/IvanBrykalov/dexcache/model"

// CompareAttributes are the attributes compared row by row, in display order.
var CompareAttributes = []string{"hp", "attack", "defense", "special-attack", "special-defense", "speed"}

// Side names the record that holds the larger value in a comparison.
type Side int

const (
	Tie Side = iota
	Left
	Right
)

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "tie"
	}
}

// CompareRow is one compared value.
type CompareRow struct {
	Name   string
	Left   int
	Right  int
	Winner Side
}

// Comparison is the side-by-side result of Compare.
type Comparison struct {
	Left, Right model.Record
	Rows        []CompareRow
	LeftTotal   int
	RightTotal  int
	Winner      Side
}

// Compare ranks a against b on CompareAttributes (missing counts as 0),
// then height and weight. The larger value wins each row. The overall
// winner has the larger attribute total over all of its attributes.
func Compare(a, b model.Record) Comparison {
	c := Comparison{
		Left:       a,
		Right:      b,
		Rows:       make([]CompareRow, 0, len(CompareAttributes)+2),
		LeftTotal:  a.AttributeTotal(),
		RightTotal: b.AttributeTotal(),
	}
	for _, name := range CompareAttributes {
		l, _ := a.Attribute(name)
		r, _ := b.Attribute(name)
		c.Rows = append(c.Rows, CompareRow{Name: name, Left: l, Right: r, Winner: larger(l, r)})
	}
	c.Rows = append(c.Rows,
		CompareRow{Name: "height", Left: a.Height, Right: b.Height, Winner: larger(a.Height, b.Height)},
		CompareRow{Name: "weight", Left: a.Weight, Right: b.Weight, Winner: larger(a.Weight, b.Weight)},
	)
	c.Winner = larger(c.LeftTotal, c.RightTotal)
	return c
}

func larger(l, r int) Side {
	switch {
	case l > r:
		return Left
	case r > l:
		return Right
	default:
		return Tie
	}
}

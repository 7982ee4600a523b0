package pixel

import (
	"fmt"
	"math"
)

// Region is a rectangle of pixels. X and Y are the top-left corner, Columns
// and Rows the size.
type Region struct {
	X       int `json:"x"`
	Y       int `json:"y"`
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

// Len returns the number of pixels in the region, saturating at math.MaxInt.
func (r Region) Len() int {
	if r.Empty() {
		return 0
	}
	if r.Columns > math.MaxInt/r.Rows {
		return math.MaxInt
	}
	return r.Columns * r.Rows
}

// Empty reports whether the region covers no pixels.
func (r Region) Empty() bool {
	return r.Columns <= 0 || r.Rows <= 0
}

// Within reports whether the region lies entirely inside an image of the
// given size.
func (r Region) Within(columns, rows int) bool {
	return !r.Empty() && r.X >= 0 && r.Y >= 0 &&
		r.X <= columns-r.Columns && r.Y <= rows-r.Rows
}

// Addressable reports whether the far edges of the region, X+Columns and
// Y+Rows, fit in an int. Empty regions are addressable.
func (r Region) Addressable() bool {
	return r.Empty() || (r.X <= math.MaxInt-r.Columns && r.Y <= math.MaxInt-r.Rows)
}

func (r Region) String() string {
	return fmt.Sprintf("%dx%d%+d%+d", r.Columns, r.Rows, r.X, r.Y)
}

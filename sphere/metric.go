package sphere

import "math"

// A Metric relates a geometric quantity of cells to the subdivision level.
// Dim is 1 for lengths and 2 for areas; Deriv is the value at level 0, and
// each further level divides the value by 2^Dim.
type Metric struct {
	Dim   int
	Deriv float64
}

// Length metrics of the quadratic projection, in radians on the unit
// sphere. Min and Max bound the quantity over all cells at a level; the
// width of a cell is the distance between its two opposite edges.
var (
	MinWidth = Metric{1, 2 * math.Sqrt2 / 3}
	MaxWidth = Metric{1, 1.704897179199218452}
	MinDiag  = Metric{1, 8 * math.Sqrt2 / 9}
	MaxDiag  = Metric{1, 2.438654594434021145}
)

// Value returns the metric value at the given level.
func (m Metric) Value(level int) float64 {
	return math.Ldexp(m.Deriv, -m.Dim*level)
}

// MinLevel returns the minimum level such that the metric is at most val,
// or MaxLevel if no such level exists.
func (m Metric) MinLevel(val float64) int {
	if val < 0 {
		return MaxLevel
	}
	level := -(math.Ilogb(val/m.Deriv) >> uint(m.Dim-1))
	if level > MaxLevel {
		level = MaxLevel
	}
	if level < 0 {
		level = 0
	}
	return level
}

// MaxLevel returns the maximum level such that the metric is at least val,
// or zero if no such level exists. For MinWidth this is the finest level
// whose cells are everywhere at least val wide.
func (m Metric) MaxLevel(val float64) int {
	if val <= 0 {
		return MaxLevel
	}
	level := math.Ilogb(m.Deriv/val) >> uint(m.Dim-1)
	if level > MaxLevel {
		level = MaxLevel
	}
	if level < 0 {
		level = 0
	}
	return level
}

// Package filter narrows a dataset to an inclusive range of years.
package filter

import (
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/icco/specimens/lib/dataset"
)

// YearField is the column the range applies to.
const YearField = "year"

// Bounds is the observed span of the year column.
type Bounds struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Range is a selected inclusive span of years.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// YearBounds returns the minimum and maximum of the year column, truncated
// to whole years. ok is false when the column is absent or holds no
// numeric value, in which case no range control applies.
func YearBounds(t *dataset.Table) (Bounds, bool) {
	if !t.Has(YearField) {
		return Bounds{}, false
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, y := range t.Floats(YearField) {
		if math.IsNaN(y) {
			continue
		}
		lo = math.Min(lo, y)
		hi = math.Max(hi, y)
	}
	if math.IsInf(lo, 1) {
		return Bounds{}, false
	}
	return Bounds{Min: int(lo), Max: int(hi)}, true
}

// Default returns the range spanning all of b.
func Default(b Bounds) Range {
	return Range{Min: b.Min, Max: b.Max}
}

// Clamp moves both ends of r into b. An inverted range, as left by a
// lower handle dragged past the upper one, has its ends swapped first.
func Clamp(b Bounds, r Range) Range {
	if r.Max < r.Min {
		r.Min, r.Max = r.Max, r.Min
	}
	r.Min = clamp(r.Min, b.Min, b.Max)
	r.Max = clamp(r.Max, b.Min, b.Max)
	return r
}

// Select builds the range for optional user bounds. Unset ends take the
// observed value.
func Select(b Bounds, lo, hi *int) Range {
	r := Default(b)
	if lo != nil {
		r.Min = *lo
	}
	if hi != nil {
		r.Max = *hi
	}
	return Clamp(b, r)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Apply keeps the rows whose year lies within r. A nil range, or a table
// without a year column, is returned unchanged. Rows with a missing year
// never satisfy the comparison and are dropped.
func Apply(t *dataset.Table, r *Range) (*dataset.Table, error) {
	if r == nil || !t.Has(YearField) {
		return t, nil
	}
	t, err := t.CoerceNumeric(YearField)
	if err != nil {
		return nil, err
	}
	return t.Filter(
		dataframe.F{Colname: YearField, Comparator: series.GreaterEq, Comparando: float64(r.Min)},
		dataframe.F{Colname: YearField, Comparator: series.LessEq, Comparando: float64(r.Max)},
	)
}

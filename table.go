package measplot

import (
	"fmt"
)

// A single sample: X is the timestamp (column 0 of the table), Ys are the
// measurement columns in order.
type DataRow struct {
	X  float64
	Ys []float64
}

// Table is a time-ordered list of samples. All rows are expected to carry the
// same number of measurements; Validate checks that.
type Table []DataRow

// Validate checks that the table is rectangular and contains at least two
// rows. The returned error wraps ErrFormat.
func (t Table) Validate() error {
	if len(t) < 2 {
		return fmt.Errorf("%w: table must contain at least 2 rows, got %d", ErrFormat, len(t))
	}

	width := len(t[0].Ys)
	for i, row := range t {
		if len(row.Ys) != width {
			return fmt.Errorf("%w: row %d has %d columns, expected %d", ErrFormat, i, len(row.Ys)+1, width+1)
		}
	}

	return nil
}

// Width returns the number of columns including the timestamp column.
func (t Table) Width() int {
	if len(t) == 0 {
		return 0
	}
	return len(t[0].Ys) + 1
}

// Column returns a copy of column i. Column 0 is the timestamp.
func (t Table) Column(i int) []float64 {
	return Map(t, func(row DataRow) float64 {
		if i == 0 {
			return row.X
		}
		return row.Ys[i-1]
	})
}

// Bounds returns the first and last timestamp. The table must not be empty.
func (t Table) Bounds() (first, last float64) {
	return t[0].X, t[len(t)-1].X
}

// CheckWindow returns an error wrapping ErrRange unless
// first <= start <= end <= last.
func (t Table) CheckWindow(start, end float64) error {
	first, last := t.Bounds()
	if start > last || start < first || end < first || end > last || start > end {
		return fmt.Errorf("%w: [%g, %g] is not within data range [%g, %g]", ErrRange, start, end, first, last)
	}
	return nil
}

// Scale returns a new table where column i is multiplied by factors[i]. The
// first factor applies to the timestamp. len(factors) must equal t.Width().
func (t Table) Scale(factors []float64) Table {
	scaled := make(Table, len(t))
	for i, row := range t {
		ys := make([]float64, len(row.Ys))
		for j, y := range row.Ys {
			ys[j] = y * factors[j+1]
		}
		scaled[i] = DataRow{X: row.X * factors[0], Ys: ys}
	}
	return scaled
}

// Window returns the rows whose timestamp lies in [start, end], inclusive.
// Row order is preserved.
func (t Table) Window(start, end float64) Table {
	return Filter(t, func(row DataRow) bool {
		return row.X >= start && row.X <= end
	})
}

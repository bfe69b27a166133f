package measplot

import (
	"fmt"
)

const defaultFormat = "r-"

// Per-column plot metadata. Titles and Formats describe the measurement
// columns only; Scaling also covers the timestamp column at index 0. Nil
// slices get defaults.
type Columns struct {
	Titles  []string
	Formats []string
	Scaling []float64
}

func defaultTitles(n int) []string {
	titles := make([]string, n)
	for i := range titles {
		titles[i] = fmt.Sprintf("Measurement %d", i+1)
	}
	return titles
}

func defaultFormats(n int) []string {
	formats := make([]string, n)
	for i := range formats {
		formats[i] = defaultFormat
	}
	return formats
}

func unitScaling(n int) []float64 {
	scaling := make([]float64, n)
	for i := range scaling {
		scaling[i] = 1
	}
	return scaling
}

// resolve fills in defaults for a table with n measurement columns and checks
// that every sequence has the right length.
func (c Columns) resolve(n int) (Columns, error) {
	if c.Titles == nil {
		c.Titles = defaultTitles(n)
	}
	if c.Formats == nil {
		c.Formats = defaultFormats(n)
	}
	if c.Scaling == nil {
		c.Scaling = unitScaling(n + 1)
	}

	if len(c.Titles) != n {
		return Columns{}, fmt.Errorf("%w: got %d titles for %d data columns", ErrConfig, len(c.Titles), n)
	}
	if len(c.Formats) != n {
		return Columns{}, fmt.Errorf("%w: got %d format strings for %d data columns", ErrConfig, len(c.Formats), n)
	}
	if len(c.Scaling) != n+1 {
		return Columns{}, fmt.Errorf("%w: got %d scale factors for %d columns", ErrConfig, len(c.Scaling), n+1)
	}

	return c, nil
}

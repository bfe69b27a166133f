package measplot

import (
	"context"
	"fmt"

	"gonum.org/v1/plot"
)

type GraphOptions struct {
	Columns

	// Bounds of the plotted time range. Nil means the first/last timestamp
	// of the table.
	Start *float64
	End   *float64

	// Zero means 15in wide and 2.5in per measurement column.
	Size Size

	Flair Flair
}

// Prepare validates table and the column metadata, checks the time bounds and
// returns the scaled rows within [start, end] together with the resolved
// metadata. The bounds are checked against the unscaled timestamps but
// applied to the scaled ones. table is not modified.
func Prepare(table Table, cols Columns, start, end *float64) (Table, Columns, error) {
	if err := table.Validate(); err != nil {
		return nil, Columns{}, err
	}

	n := table.Width() - 1
	if n < 1 {
		return nil, Columns{}, fmt.Errorf("%w: table has no measurement columns", ErrFormat)
	}

	cols, err := cols.resolve(n)
	if err != nil {
		return nil, Columns{}, err
	}

	first, last := table.Bounds()
	stime, etime := first, last
	if start != nil {
		stime = *start
	}
	if end != nil {
		etime = *end
	}

	if err := table.CheckWindow(stime, etime); err != nil {
		return nil, Columns{}, err
	}

	return table.Scale(cols.Scaling).Window(stime, etime), cols, nil
}

// Graph plots every measurement column of table against its timestamp, one
// stacked axis per column.
func Graph(table Table, opts GraphOptions) (*Figure, error) {
	windowed, cols, err := Prepare(table, opts.Columns, opts.Start, opts.End)
	if err != nil {
		return nil, err
	}

	styles, err := parseFormats(cols.Formats)
	if err != nil {
		return nil, err
	}

	n := len(cols.Titles)
	size := opts.Size
	if size.isZero() {
		size = Inches(15, 2.5*float64(n))
	}

	fig := NewFigure(n, size)
	if _, err := redraw(fig, windowed, cols.Titles, styles, opts.Flair); err != nil {
		return nil, err
	}
	return fig, nil
}

// GraphFile loads a whitespace delimited text file and plots it like Graph.
// The default height is 2in per measurement column.
func GraphFile(ctx context.Context, path string, opts GraphOptions) (*Figure, error) {
	table, err := FileTableSource{Path: path}.Load(ctx)
	if err != nil {
		return nil, err
	}

	if opts.Size.isZero() {
		opts.Size = Inches(15, 2*float64(table.Width()-1))
	}

	return Graph(table, opts)
}

// redraw clears every axis of fig and draws column i+1 of table on axis i.
// The same figure is returned, also on error, so the caller keeps owning it.
func redraw(fig *Figure, table Table, titles []string, styles []Style, flair Flair) (*Figure, error) {
	t := table.Column(0)
	for i := range fig.Axes {
		p := plot.New()
		p.Title.Text = titles[i]

		if _, err := addSeries(p, toXYs(t, table.Column(i+1)), styles[i]); err != nil {
			return fig, fmt.Errorf("%w: column %d: %v", ErrFormat, i+1, err)
		}

		fig.Axes[i] = p
	}

	fig.Start, fig.End = 0, 0
	if len(table) > 0 {
		fig.Start, fig.End = table.Bounds()
	}

	if flair != nil {
		flair(fig.Axes)
	}

	return fig, nil
}

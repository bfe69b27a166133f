package measplot

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Size of a rendered figure.
type Size struct {
	Width  vg.Length
	Height vg.Length
}

// Inches is a shorthand for building a Size.
func Inches(width, height float64) Size {
	return Size{Width: vg.Length(width) * vg.Inch, Height: vg.Length(height) * vg.Inch}
}

func (s Size) isZero() bool {
	return s.Width == 0 && s.Height == 0
}

// Flair is called with the axes of a figure after the data has been drawn.
// Use it to add annotations such as threshold lines.
type Flair func(axes []*plot.Plot)

// Figure is a stack of axes rendered into one image, top to bottom. It is
// owned by the caller: the live loop hands the same Figure to every redraw
// instead of keeping a "current figure".
type Figure struct {
	Axes []*plot.Plot
	Size Size

	// Time range of the data currently drawn, if any.
	Start float64
	End   float64
}

func NewFigure(n int, size Size) *Figure {
	f := &Figure{
		Axes: make([]*plot.Plot, n),
		Size: size,
	}
	for i := range f.Axes {
		f.Axes[i] = plot.New()
	}
	return f
}

// Spacing between stacked axes.
var figureTiles = draw.Tiles{
	PadTop:    vg.Points(4),
	PadBottom: vg.Points(4),
	PadLeft:   vg.Points(4),
	PadRight:  vg.Points(8),
	PadY:      vg.Points(12),
}

// Encode draws the figure and writes it in the given format (png, svg, pdf,
// jpg, tiff, eps).
func (f *Figure) Encode(w io.Writer, format string) error {
	if len(f.Axes) == 0 {
		return fmt.Errorf("%w: figure has no axes", ErrConfig)
	}

	c, err := draw.NewFormattedCanvas(f.Size.Width, f.Size.Height, format)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	tiles := figureTiles
	tiles.Rows = len(f.Axes)
	tiles.Cols = 1

	plots := make([][]*plot.Plot, len(f.Axes))
	for i, p := range f.Axes {
		plots[i] = []*plot.Plot{p}
	}

	canvases := plot.Align(plots, tiles, draw.New(c))
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	_, err = c.WriteTo(w)
	return err
}

// Save encodes the figure to path, picking the format from the extension.
func (f *Figure) Save(path string) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		format = "png"
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := f.Encode(file, format); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}

// addSeries draws xys on p with the given style and returns the thumbnails
// to use in a legend.
func addSeries(p *plot.Plot, xys plotter.XYs, style Style) ([]plot.Thumbnailer, error) {
	var thumbs []plot.Thumbnailer

	if style.Line {
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, err
		}
		line.LineStyle = style.lineStyle()
		p.Add(line)
		thumbs = append(thumbs, line)
	}

	if style.Marker != nil {
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, err
		}
		scatter.GlyphStyle = style.glyphStyle()
		p.Add(scatter)
		thumbs = append(thumbs, scatter)
	}

	return thumbs, nil
}

func toXYs(xs, ys []float64) plotter.XYs {
	xys := make(plotter.XYs, len(xs))
	for i := range xs {
		xys[i].X = xs[i]
		xys[i].Y = ys[i]
	}
	return xys
}

// parseLineFormat is ParseFormat for things that can only be drawn as a
// line. Marker-only formats are rejected.
func parseLineFormat(format string) (Style, error) {
	style, err := ParseFormat(format)
	if err != nil {
		return Style{}, err
	}
	if !style.Line {
		return Style{}, fmt.Errorf("%w: format %q has no line style", ErrConfig, format)
	}
	return style, nil
}

// HorizontalLine draws a line at y across the whole of p. It is meant to be
// called from a Flair. format must not be marker-only.
func HorizontalLine(p *plot.Plot, y float64, format string) error {
	style, err := parseLineFormat(format)
	if err != nil {
		return err
	}

	fn := plotter.NewFunction(func(float64) float64 { return y })
	fn.LineStyle = style.lineStyle()
	p.Add(fn)
	return nil
}

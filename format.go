package measplot

import (
	"fmt"
	"image/color"
	"strings"

	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Style is a parsed format specifier. Formats use the short
// "[marker][line][color]" notation, e.g. "r-", "b--", "k.", "go:".
//
//	colors:  b g r c m y k w
//	lines:   -  --  -.  :
//	markers: .  o  ^  s  +  x
//
// A format with a marker and no line style draws only points. A format with
// neither draws a solid line.
type Style struct {
	Color  color.Color
	Line   bool
	Dashes []vg.Length
	Marker draw.GlyphDrawer
	Radius vg.Length
}

var formatColors = map[byte]color.Color{
	'b': color.RGBA{B: 255, A: 255},
	'g': color.RGBA{G: 128, A: 255},
	'r': color.RGBA{R: 255, A: 255},
	'c': color.RGBA{G: 191, B: 191, A: 255},
	'm': color.RGBA{R: 191, B: 191, A: 255},
	'y': color.RGBA{R: 191, G: 191, A: 255},
	'k': color.Black,
	'w': color.White,
}

type formatMarker struct {
	glyph  draw.GlyphDrawer
	radius vg.Length
}

var formatMarkers = map[byte]formatMarker{
	'.': {draw.CircleGlyph{}, vg.Points(1)},
	'o': {draw.CircleGlyph{}, vg.Points(3)},
	'^': {draw.TriangleGlyph{}, vg.Points(3)},
	's': {draw.BoxGlyph{}, vg.Points(3)},
	'+': {draw.PlusGlyph{}, vg.Points(3)},
	'x': {draw.CrossGlyph{}, vg.Points(3)},
}

// Ordered so that two-character styles are matched first.
var formatLines = []struct {
	token  string
	dashes []vg.Length
}{
	{"--", []vg.Length{vg.Points(6), vg.Points(3)}},
	{"-.", []vg.Length{vg.Points(6), vg.Points(2), vg.Points(1), vg.Points(2)}},
	{"-", nil},
	{":", []vg.Length{vg.Points(1), vg.Points(2)}},
}

// ParseFormat parses a format specifier. Unknown or repeated specifiers return
// an error wrapping ErrConfig.
func ParseFormat(format string) (Style, error) {
	style := Style{Color: formatColors['b']}
	var haveColor, haveLine bool

	rest := format
outer:
	for len(rest) > 0 {
		for _, l := range formatLines {
			if strings.HasPrefix(rest, l.token) {
				if haveLine {
					return Style{}, fmt.Errorf("%w: format %q has more than one line style", ErrConfig, format)
				}
				haveLine = true
				style.Line = true
				style.Dashes = l.dashes
				rest = rest[len(l.token):]
				continue outer
			}
		}

		c := rest[0]
		rest = rest[1:]

		if col, ok := formatColors[c]; ok {
			if haveColor {
				return Style{}, fmt.Errorf("%w: format %q has more than one color", ErrConfig, format)
			}
			haveColor = true
			style.Color = col
			continue
		}

		if m, ok := formatMarkers[c]; ok {
			if style.Marker != nil {
				return Style{}, fmt.Errorf("%w: format %q has more than one marker", ErrConfig, format)
			}
			style.Marker = m.glyph
			style.Radius = m.radius
			continue
		}

		return Style{}, fmt.Errorf("%w: unrecognized character %q in format %q", ErrConfig, c, format)
	}

	if !haveLine && style.Marker == nil {
		style.Line = true
	}

	return style, nil
}

func (s Style) lineStyle() draw.LineStyle {
	return draw.LineStyle{
		Color:  s.Color,
		Width:  vg.Points(1),
		Dashes: s.Dashes,
	}
}

func (s Style) glyphStyle() draw.GlyphStyle {
	return draw.GlyphStyle{
		Color:  s.Color,
		Radius: s.Radius,
		Shape:  s.Marker,
	}
}

func parseFormats(formats []string) ([]Style, error) {
	styles := make([]Style, len(formats))
	for i, f := range formats {
		style, err := ParseFormat(f)
		if err != nil {
			return nil, err
		}
		styles[i] = style
	}
	return styles, nil
}

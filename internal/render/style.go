// Package render turns the editor's working points into draw commands and
// executes them against a drawing surface. Compilation is pure; the canvases
// in this package rasterize to images (RasterCanvas), PDF (PDFCanvas) or
// record calls (RecordingCanvas). The browser executes the JSON form of the
// same commands on a Canvas2D context.
package render

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// Style holds the visual parameters for rule overlays. Colors are CSS color
// strings so the same values can be shipped to the browser untouched.
type Style struct {
	Stroke      string  `json:"stroke" yaml:"stroke"`
	StrokeWidth float64 `json:"strokeWidth" yaml:"strokeWidth"`
	Fill        string  `json:"fill" yaml:"fill"`

	HandleRadius      float64 `json:"handleRadius" yaml:"handleRadius"`
	HandleFill        string  `json:"handleFill" yaml:"handleFill"`
	HandleStroke      string  `json:"handleStroke" yaml:"handleStroke"`
	HandleStrokeWidth float64 `json:"handleStrokeWidth" yaml:"handleStrokeWidth"`
}

// DefaultStyle is the operator console look: red outline, faint red zone fill
// and white handles ringed in red.
func DefaultStyle() Style {
	return Style{
		Stroke:            "#E50914",
		StrokeWidth:       3,
		Fill:              "rgba(229,9,20,0.1)",
		HandleRadius:      6,
		HandleFill:        "#FFFFFF",
		HandleStroke:      "#E50914",
		HandleStrokeWidth: 2,
	}
}

// Validate checks that every color in the style parses.
func (s Style) Validate() error {
	for _, c := range []string{s.Stroke, s.Fill, s.HandleFill, s.HandleStroke} {
		if _, err := ParseColor(c); err != nil {
			return err
		}
	}
	return nil
}

// ParseColor accepts CSS color names, #rgb, #rrggbb, #rrggbbaa, rgb(r,g,b)
// and rgba(r,g,b,a) with a in [0,1]. "none" and "transparent" parse to a
// fully transparent color.
func ParseColor(s string) (color.NRGBA, error) {
	spec := strings.ToLower(strings.TrimSpace(s))
	switch spec {
	case "":
		return color.NRGBA{}, fmt.Errorf("color cannot be empty")
	case "none", "transparent":
		return color.NRGBA{}, nil
	}
	if c, ok := colornames.Map[spec]; ok {
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, nil
	}
	if strings.HasPrefix(spec, "#") {
		return parseHex(s, spec[1:])
	}
	if strings.HasPrefix(spec, "rgb") {
		return parseFunc(s, spec)
	}
	return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
}

func parseHex(orig, hex string) (color.NRGBA, error) {
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 && len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", orig)
	}
	var ch [4]uint8
	ch[3] = 255
	for i := 0; i < len(hex)/2; i++ {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid color %q", orig)
		}
		ch[i] = uint8(v)
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

func parseFunc(orig, spec string) (color.NRGBA, error) {
	open := strings.IndexByte(spec, '(')
	if open < 0 || !strings.HasSuffix(spec, ")") {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", orig)
	}
	name := spec[:open]
	parts := strings.Split(spec[open+1:len(spec)-1], ",")
	want := 3
	if name == "rgba" {
		want = 4
	} else if name != "rgb" {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", orig)
	}
	if len(parts) != want {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: want %d components", orig, want)
	}
	var ch [4]uint8
	ch[3] = 255
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(strings.TrimSpace(parts[i]), 10, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid color %q", orig)
		}
		ch[i] = uint8(v)
	}
	if want == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return color.NRGBA{}, fmt.Errorf("invalid color %q: alpha must be in [0,1]", orig)
		}
		ch[3] = uint8(math.Round(a * 255))
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

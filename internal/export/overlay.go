// Package export renders a camera's stored rule over its reference frame as
// a PNG preview or a printable PDF sheet.
package export

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/inamate/tripwire/internal/editor"
	"github.com/inamate/tripwire/internal/geometry"
	"github.com/inamate/tripwire/internal/render"
	"github.com/inamate/tripwire/internal/rules"
)

const (
	DefaultWidth  = 1280
	DefaultHeight = 720
	maxDimension  = 4096
)

// Overlay is a stored rule resolved onto a surface of a given size.
type Overlay struct {
	Zone []geometry.Point
	Line []geometry.Point
	Size geometry.Size
}

// Resolve denormalizes rs onto a width×height surface.
func Resolve(rs rules.RuleState, width, height int) (Overlay, error) {
	if width <= 0 || height <= 0 || width > maxDimension || height > maxDimension {
		return Overlay{}, fmt.Errorf("size %dx%d out of range", width, height)
	}
	size := geometry.Sz(float64(width), float64(height))
	zone, err := rs.Points(editor.ModePolygon, size)
	if err != nil {
		return Overlay{}, err
	}
	line, err := rs.Points(editor.ModeLine, size)
	if err != nil {
		return Overlay{}, err
	}
	return Overlay{Zone: zone, Line: line, Size: size}, nil
}

// WritePNG draws o over background (stretched to fit, or black when nil).
func WritePNG(w io.Writer, r *render.Renderer, o Overlay, background image.Image) error {
	c := render.NewRasterCanvas(int(o.Size.W), int(o.Size.H))
	if background != nil {
		c.SetBackground(background)
	} else {
		c.SetBackgroundColor(color.Black)
	}
	if err := r.DrawRule(c, o.Zone, o.Line); err != nil {
		return err
	}
	return c.EncodePNG(w)
}

// WritePDF draws o onto a single page sized to the surface in points.
func WritePDF(w io.Writer, r *render.Renderer, o Overlay, background image.Image, title string) error {
	c := render.NewPDFCanvas(o.Size, title)
	if background != nil {
		if err := c.SetBackground(background); err != nil {
			return err
		}
	}
	if err := r.DrawRule(c, o.Zone, o.Line); err != nil {
		return err
	}
	return c.Output(w)
}

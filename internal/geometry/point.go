// Package geometry holds the point, shape and coordinate-space types shared by
// the rule editor, the renderer and the rule service.
//
// Two coordinate spaces exist. Pixel space is relative to the top-left corner of
// a drawing surface and measured in that surface's device pixels. Normalized
// space expresses each component as a fraction of the surface width (x) or
// height (y) and is always within [0,1].
package geometry

import (
	"fmt"
	"math"
)

// Point is a pixel-space position on a drawing surface.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// DistanceTo returns the Euclidean distance between p and q.
func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("(%g,%g)", p.X, p.Y)
}

// NormalizedPoint is a resolution-independent position; both components are
// fractions in [0,1].
type NormalizedPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Valid reports whether both components are finite and within [0,1].
func (n NormalizedPoint) Valid() bool {
	return inUnit(n.X) && inUnit(n.Y)
}

func (n NormalizedPoint) clamped() NormalizedPoint {
	return NormalizedPoint{X: clamp01(n.X), Y: clamp01(n.Y)}
}

// Size is the rendered width and height of a drawing surface.
type Size struct {
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Sz is shorthand for Size{W: w, H: h}.
func Sz(w, h float64) Size { return Size{W: w, H: h} }

// Valid reports whether the surface has positive, finite dimensions.
func (s Size) Valid() bool {
	return finite(s.W) && finite(s.H) && s.W > 0 && s.H > 0
}

func (s Size) String() string {
	return fmt.Sprintf("%gx%g", s.W, s.H)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func inUnit(v float64) bool {
	return finite(v) && v >= 0 && v <= 1
}

// clamp01 bounds a float to the [0..1] range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

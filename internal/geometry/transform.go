package geometry

import (
	"fmt"
)

// GeometryError reports a coordinate transform that cannot produce valid
// coordinates, typically because the surface has not been sized yet.
type GeometryError struct {
	Op      string // "normalize" or "denormalize"
	Surface Size
	Reason  string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry: cannot %s against surface %s: %s", e.Op, e.Surface, e.Reason)
}

func checkSurface(op string, s Size) error {
	if !s.Valid() {
		return &GeometryError{Op: op, Surface: s, Reason: "surface has no usable dimensions"}
	}
	return nil
}

// Normalize converts a pixel point into a fraction of the surface dimensions.
// Results are clamped to [0,1] so a drag that overshoots the surface edge still
// yields a persistable coordinate.
func Normalize(p Point, s Size) (NormalizedPoint, error) {
	if err := checkSurface("normalize", s); err != nil {
		return NormalizedPoint{}, err
	}
	if !finite(p.X) || !finite(p.Y) {
		return NormalizedPoint{}, &GeometryError{Op: "normalize", Surface: s, Reason: fmt.Sprintf("point %s is not finite", p)}
	}
	return NormalizedPoint{X: p.X / s.W, Y: p.Y / s.H}.clamped(), nil
}

// Denormalize converts a normalized point into pixels of the current surface.
// No aspect correction is applied: a rule saved against one aspect ratio and
// loaded against another is stretched along with the surface.
func Denormalize(n NormalizedPoint, s Size) (Point, error) {
	if err := checkSurface("denormalize", s); err != nil {
		return Point{}, err
	}
	return Point{X: n.X * s.W, Y: n.Y * s.H}, nil
}

// NormalizePoints normalizes every point against the same surface.
func NormalizePoints(points []Point, s Size) ([]NormalizedPoint, error) {
	if err := checkSurface("normalize", s); err != nil {
		return nil, err
	}
	out := make([]NormalizedPoint, len(points))
	for i, p := range points {
		n, err := Normalize(p, s)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// DenormalizePoints maps every normalized point onto the surface.
func DenormalizePoints(points []NormalizedPoint, s Size) ([]Point, error) {
	if err := checkSurface("denormalize", s); err != nil {
		return nil, err
	}
	out := make([]Point, len(points))
	for i, n := range points {
		out[i], _ = Denormalize(n, s)
	}
	return out, nil
}

// NormalizePolygon converts a pixel polygon to normalized space.
func NormalizePolygon(p Polygon, s Size) (NormalizedPolygon, error) {
	pts, err := NormalizePoints(p.Points, s)
	if err != nil {
		return NormalizedPolygon{}, err
	}
	return NormalizedPolygon{Points: pts}, nil
}

// NormalizeLine converts a pixel line to normalized space.
func NormalizeLine(l Line, s Size) (NormalizedLine, error) {
	pts, err := NormalizePoints([]Point{l.P1, l.P2}, s)
	if err != nil {
		return NormalizedLine{}, err
	}
	return NormalizedLine{P1: pts[0], P2: pts[1]}, nil
}

// DenormalizePolygon maps a stored polygon onto the surface.
func DenormalizePolygon(p NormalizedPolygon, s Size) (Polygon, error) {
	pts, err := DenormalizePoints(p.Points, s)
	if err != nil {
		return Polygon{}, err
	}
	return Polygon{Points: pts}, nil
}

// DenormalizeLine maps a stored line onto the surface.
func DenormalizeLine(l NormalizedLine, s Size) (Line, error) {
	pts, err := DenormalizePoints([]NormalizedPoint{l.P1, l.P2}, s)
	if err != nil {
		return Line{}, err
	}
	return Line{P1: pts[0], P2: pts[1]}, nil
}

// Rescale moves pixel points drawn on one surface size onto another, keeping
// their normalized position.
func Rescale(points []Point, from, to Size) ([]Point, error) {
	n, err := NormalizePoints(points, from)
	if err != nil {
		return nil, err
	}
	return DenormalizePoints(n, to)
}

package geometry

import (
	"encoding/json"
	"errors"
	"slices"
)

// Shape is a rule shape in pixel space: either a Polygon or a Line.
type Shape interface {
	// Vertices returns the shape's points in order.
	Vertices() []Point
	isShape()
}

// Polygon is a closed zone; insertion order defines the boundary and the
// closing edge runs from the last point back to the first.
type Polygon struct {
	Points []Point
}

// Line is a directional crossing line from P1 to P2.
type Line struct {
	P1, P2 Point
}

func (p Polygon) Vertices() []Point { return slices.Clone(p.Points) }
func (l Line) Vertices() []Point    { return []Point{l.P1, l.P2} }

func (Polygon) isShape() {}
func (Line) isShape()    {}

// NormalizedPolygon is a Polygon expressed in normalized space.
type NormalizedPolygon struct {
	Points []NormalizedPoint `json:"points"`
}

// NormalizedLine is a Line expressed in normalized space. It encodes as
// {"x1":..,"y1":..,"x2":..,"y2":..}.
type NormalizedLine struct {
	P1, P2 NormalizedPoint
}

type linePayload struct {
	X1 *float64 `json:"x1"`
	Y1 *float64 `json:"y1"`
	X2 *float64 `json:"x2"`
	Y2 *float64 `json:"y2"`
}

func (l NormalizedLine) MarshalJSON() ([]byte, error) {
	return json.Marshal(linePayload{X1: &l.P1.X, Y1: &l.P1.Y, X2: &l.P2.X, Y2: &l.P2.Y})
}

var errIncompleteLine = errors.New("line requires x1, y1, x2 and y2")

func (l *NormalizedLine) UnmarshalJSON(data []byte) error {
	var p linePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.X1 == nil || p.Y1 == nil || p.X2 == nil || p.Y2 == nil {
		return errIncompleteLine
	}
	l.P1 = NormalizedPoint{X: *p.X1, Y: *p.Y1}
	l.P2 = NormalizedPoint{X: *p.X2, Y: *p.Y2}
	return nil
}

// Valid reports whether every point is within [0,1].
func (p NormalizedPolygon) Valid() bool {
	for _, pt := range p.Points {
		if !pt.Valid() {
			return false
		}
	}
	return true
}

// Valid reports whether both endpoints are within [0,1].
func (l NormalizedLine) Valid() bool {
	return l.P1.Valid() && l.P2.Valid()
}

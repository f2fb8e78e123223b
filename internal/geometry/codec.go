package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ParseStoredPolygon decodes a stored zone value ([{"x":..,"y":..},...]).
// Absent, empty, malformed or out-of-range data yields ok == false; the
// caller treats that as "no zone defined".
func ParseStoredPolygon(raw string) (NormalizedPolygon, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return NormalizedPolygon{}, false
	}
	var pts []NormalizedPoint
	if err := json.Unmarshal([]byte(raw), &pts); err != nil {
		return NormalizedPolygon{}, false
	}
	poly := NormalizedPolygon{Points: pts}
	if len(pts) == 0 || !poly.Valid() {
		return NormalizedPolygon{}, false
	}
	return poly, true
}

// ParseStoredLine decodes a stored crossing line value
// ({"x1":..,"y1":..,"x2":..,"y2":..}). See ParseStoredPolygon for leniency.
func ParseStoredLine(raw string) (NormalizedLine, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return NormalizedLine{}, false
	}
	var l NormalizedLine
	if err := json.Unmarshal([]byte(raw), &l); err != nil {
		return NormalizedLine{}, false
	}
	if !l.Valid() {
		return NormalizedLine{}, false
	}
	return l, true
}

// EncodePolygon returns the stored representation of a zone.
func EncodePolygon(p NormalizedPolygon) string {
	pts := p.Points
	if pts == nil {
		pts = []NormalizedPoint{}
	}
	data, _ := json.Marshal(pts)
	return string(data)
}

// EncodeLine returns the stored representation of a crossing line.
func EncodeLine(l NormalizedLine) string {
	data, _ := json.Marshal(l)
	return string(data)
}

// FlexPoint decodes either {"x":..,"y":..} or [x, y].
type FlexPoint struct {
	X, Y float64
}

var errBadPoint = errors.New("point must be {\"x\",\"y\"} or [x, y]")

func (p *FlexPoint) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return errBadPoint
		}
		p.X, p.Y = pair[0], pair[1]
		return nil
	}
	var obj struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("%w: %v", errBadPoint, err)
	}
	if obj.X == nil || obj.Y == nil {
		return errBadPoint
	}
	p.X, p.Y = *obj.X, *obj.Y
	return nil
}

// AutoNormalize interprets a coordinate greater than 1 as an absolute pixel
// value and divides it by span; values already within [0,1] are kept.
func AutoNormalize(v, span float64) (float64, error) {
	if !finite(v) || v < 0 {
		return 0, fmt.Errorf("coordinate %g is not usable", v)
	}
	if v <= 1 {
		return v, nil
	}
	if !finite(span) || span <= 0 {
		return 0, &GeometryError{Op: "normalize", Reason: fmt.Sprintf("absolute coordinate %g needs a positive resolution", v)}
	}
	return clamp01(v / span), nil
}

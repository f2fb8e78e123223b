package editor

import (
	"fmt"
	"slices"

	"github.com/inamate/tripwire/internal/geometry"
)

// ValidationError reports a working shape that does not meet the minimum
// point rules for persistence. It never reaches the network layer.
type ValidationError struct {
	Mode  Mode
	Count int
}

func (e *ValidationError) Error() string {
	switch e.Mode {
	case ModeLine:
		return fmt.Sprintf("validation: line requires exactly 2 points (have %d)", e.Count)
	default:
		return fmt.Sprintf("validation: polygon requires at least 3 points (have %d)", e.Count)
	}
}

// Validate checks the point count for the mode.
func Validate(mode Mode, points []geometry.Point) error {
	n := len(points)
	switch mode {
	case ModeLine:
		if n != 2 {
			return &ValidationError{Mode: mode, Count: n}
		}
	default:
		if n < 3 {
			return &ValidationError{Mode: mode, Count: n}
		}
	}
	return nil
}

// BuildShape validates the working points and returns the typed shape.
func BuildShape(mode Mode, points []geometry.Point) (geometry.Shape, error) {
	if err := Validate(mode, points); err != nil {
		return nil, err
	}
	if mode == ModeLine {
		return geometry.Line{P1: points[0], P2: points[1]}, nil
	}
	return geometry.Polygon{Points: slices.Clone(points)}, nil
}

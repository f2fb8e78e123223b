package render

import (
	"encoding/json"
	"slices"

	"github.com/inamate/tripwire/internal/editor"
	"github.com/inamate/tripwire/internal/geometry"
)

// Draw operations understood by every canvas and by the browser bridge.
const (
	OpClear  = "clear"
	OpPath   = "path"
	OpCircle = "circle"
)

// DrawCommand represents a single drawing operation. A list of these is a
// complete frame: it always begins with a clear.
type DrawCommand struct {
	Op          string           `json:"op"`
	Points      []geometry.Point `json:"points,omitempty"` // path vertices
	Closed      bool             `json:"closed,omitempty"` // edge from last vertex back to first
	Center      *geometry.Point  `json:"center,omitempty"` // circle center
	Radius      float64          `json:"radius,omitempty"`
	Fill        string           `json:"fill,omitempty"`
	Stroke      string           `json:"stroke,omitempty"`
	StrokeWidth float64          `json:"strokeWidth,omitempty"`
}

// Compile generates the frame for the editor's working points in the given
// mode. Commands are in painter's order (back to front). Zero points yields a
// lone clear. The input slice is never modified.
func Compile(mode editor.Mode, points []geometry.Point, style Style) []DrawCommand {
	commands := []DrawCommand{{Op: OpClear}}
	commands = appendShape(commands, mode, points, style)
	for _, p := range points {
		commands = append(commands, handle(p, style))
	}
	return commands
}

// Overlay generates a frame showing a complete rule: the zone polygon and the
// crossing line together, without handles. Either may be empty.
func Overlay(zone, line []geometry.Point, style Style) []DrawCommand {
	commands := []DrawCommand{{Op: OpClear}}
	commands = appendShape(commands, editor.ModePolygon, zone, style)
	commands = appendShape(commands, editor.ModeLine, line, style)
	return commands
}

func appendShape(commands []DrawCommand, mode editor.Mode, points []geometry.Point, style Style) []DrawCommand {
	switch mode {
	case editor.ModeLine:
		if len(points) != 2 {
			return commands
		}
		return append(commands, DrawCommand{
			Op:          OpPath,
			Points:      slices.Clone(points),
			Stroke:      style.Stroke,
			StrokeWidth: style.StrokeWidth,
		})
	default:
		if len(points) == 0 {
			return commands
		}
		return append(commands, DrawCommand{
			Op:          OpPath,
			Points:      slices.Clone(points),
			Closed:      true,
			Fill:        style.Fill,
			Stroke:      style.Stroke,
			StrokeWidth: style.StrokeWidth,
		})
	}
}

func handle(p geometry.Point, style Style) DrawCommand {
	center := p
	return DrawCommand{
		Op:          OpCircle,
		Center:      &center,
		Radius:      style.HandleRadius,
		Fill:        style.HandleFill,
		Stroke:      style.HandleStroke,
		StrokeWidth: style.HandleStrokeWidth,
	}
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

package render

import (
	"fmt"
	"image/color"
	"slices"

	"github.com/inamate/tripwire/internal/editor"
	"github.com/inamate/tripwire/internal/geometry"
)

// Brush is a resolved paint for one primitive. A nil Fill or Stroke (or a
// zero Width) means that part is not painted.
type Brush struct {
	Fill   color.Color
	Stroke color.Color
	Width  float64
}

// Canvas is an opaque drawing surface. Implementations draw in the surface's
// own pixel space, origin top-left.
type Canvas interface {
	Size() geometry.Size
	Clear()
	Path(points []geometry.Point, closed bool, b Brush)
	Circle(center geometry.Point, radius float64, b Brush)
}

// Execute runs a frame of commands against c.
func Execute(c Canvas, commands []DrawCommand) error {
	for i, cmd := range commands {
		switch cmd.Op {
		case OpClear:
			c.Clear()
		case OpPath:
			b, err := brush(cmd)
			if err != nil {
				return fmt.Errorf("command %d: %w", i, err)
			}
			c.Path(cmd.Points, cmd.Closed, b)
		case OpCircle:
			if cmd.Center == nil {
				return fmt.Errorf("command %d: circle without center", i)
			}
			b, err := brush(cmd)
			if err != nil {
				return fmt.Errorf("command %d: %w", i, err)
			}
			c.Circle(*cmd.Center, cmd.Radius, b)
		default:
			return fmt.Errorf("command %d: unknown op %q", i, cmd.Op)
		}
	}
	return nil
}

func brush(cmd DrawCommand) (Brush, error) {
	var b Brush
	if cmd.Fill != "" {
		c, err := ParseColor(cmd.Fill)
		if err != nil {
			return b, err
		}
		b.Fill = c
	}
	if cmd.Stroke != "" && cmd.StrokeWidth > 0 {
		c, err := ParseColor(cmd.Stroke)
		if err != nil {
			return b, err
		}
		b.Stroke = c
		b.Width = cmd.StrokeWidth
	}
	return b, nil
}

// Renderer draws editor state onto a canvas. It only reads the points it is
// given.
type Renderer struct {
	style Style
}

// NewRenderer creates a renderer with the given style.
func NewRenderer(style Style) *Renderer {
	return &Renderer{style: style}
}

// Style returns the renderer's style.
func (r *Renderer) Style() Style { return r.style }

// Commands compiles the frame without executing it.
func (r *Renderer) Commands(mode editor.Mode, points []geometry.Point) []DrawCommand {
	return Compile(mode, points, r.style)
}

// Draw clears c and redraws the working shape with handles.
func (r *Renderer) Draw(c Canvas, mode editor.Mode, points []geometry.Point) error {
	return Execute(c, Compile(mode, points, r.style))
}

// DrawRule clears c and draws a stored rule's zone and line.
func (r *Renderer) DrawRule(c Canvas, zone, line []geometry.Point) error {
	return Execute(c, Overlay(zone, line, r.style))
}

// Call is one primitive captured by a RecordingCanvas.
type Call struct {
	Op     string
	Points []geometry.Point
	Closed bool
	Center geometry.Point
	Radius float64
	Brush  Brush
}

// RecordingCanvas captures primitives instead of drawing them. Clear
// discards everything recorded so far, so Calls always describes the
// visible frame.
type RecordingCanvas struct {
	W, H   float64
	Calls  []Call
	Clears int
}

// NewRecordingCanvas creates a recorder reporting the given surface size.
func NewRecordingCanvas(w, h float64) *RecordingCanvas {
	return &RecordingCanvas{W: w, H: h}
}

func (c *RecordingCanvas) Size() geometry.Size { return geometry.Sz(c.W, c.H) }

func (c *RecordingCanvas) Clear() {
	c.Calls = c.Calls[:0]
	c.Clears++
}

func (c *RecordingCanvas) Path(points []geometry.Point, closed bool, b Brush) {
	c.Calls = append(c.Calls, Call{Op: OpPath, Points: slices.Clone(points), Closed: closed, Brush: b})
}

func (c *RecordingCanvas) Circle(center geometry.Point, radius float64, b Brush) {
	c.Calls = append(c.Calls, Call{Op: OpCircle, Center: center, Radius: radius, Brush: b})
}

// Count returns how many recorded calls have the given op.
func (c *RecordingCanvas) Count(op string) int {
	n := 0
	for _, call := range c.Calls {
		if call.Op == op {
			n++
		}
	}
	return n
}

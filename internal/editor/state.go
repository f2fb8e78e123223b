// Package editor implements the rule drawing surface's model and input state
// machine. Everything here is synchronous and free of I/O: Transition is a pure
// function from (State, Event) to (State, Effect), and Session wraps it for a
// single open editing surface.
package editor

import (
	"fmt"
	"slices"
	"strings"

	"github.com/inamate/tripwire/internal/geometry"
)

// Mode selects which shape the working point list describes.
type Mode int

const (
	ModePolygon Mode = iota
	ModeLine
)

func (m Mode) String() string {
	switch m {
	case ModePolygon:
		return "polygon"
	case ModeLine:
		return "line"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "polygon"/"zone" and "line".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "polygon", "zone":
		return ModePolygon, nil
	case "line":
		return ModeLine, nil
	}
	return 0, fmt.Errorf("unknown draw mode %q", s)
}

// HitRadius is the pixel distance within which a pointer-down grabs an
// existing point instead of placing a new one.
const HitRadius = 10.0

// NoDrag marks a State that is not dragging.
const NoDrag = -1

// State is the full editor model: the active mode, the working points in
// pixel space, and the drag selection. The zero value is not usable; start
// from NewState.
type State struct {
	Mode   Mode
	Points []geometry.Point
	// Drag is the index of the point under pointer capture, or NoDrag.
	Drag int

	// A browser fires click after the mouseup that ends a drag. When armed,
	// the next Click at exactly suppressAt is dropped.
	suppressArmed bool
	suppressAt    geometry.Point
}

// NewState returns an Idle state with no points.
func NewState(mode Mode) State {
	return State{Mode: mode, Drag: NoDrag}
}

// Dragging returns the captured point index, if any.
func (s State) Dragging() (int, bool) {
	if s.Drag == NoDrag {
		return 0, false
	}
	return s.Drag, true
}

// Idle reports whether no drag is in progress.
func (s State) Idle() bool { return s.Drag == NoDrag }

// Clone returns a copy that shares no memory with s.
func (s State) Clone() State {
	c := s
	c.Points = slices.Clone(s.Points)
	return c
}

func (s State) String() string {
	phase := "idle"
	if i, ok := s.Dragging(); ok {
		phase = fmt.Sprintf("dragging(%d)", i)
	}
	return fmt.Sprintf("%s/%s/%d points", s.Mode, phase, len(s.Points))
}

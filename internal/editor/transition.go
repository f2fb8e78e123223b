package editor

import (
	"slices"

	"github.com/inamate/tripwire/internal/geometry"
)

// Event is an input delivered to the state machine.
type Event interface{ isEvent() }

type (
	// ModeSwitch changes the draw mode; points are cleared and any drag is cancelled.
	ModeSwitch struct{ Mode Mode }
	// Click is a primary click that places a point.
	Click struct{ At geometry.Point }
	// PointerDown may start a drag when it lands within HitRadius of a point.
	PointerDown struct{ At geometry.Point }
	// PointerMove moves the dragged point, if any.
	PointerMove struct{ At geometry.Point }
	// PointerUp ends a drag at the given position.
	PointerUp struct{ At geometry.Point }
	// PointerLeave ends a drag because the pointer left the surface.
	PointerLeave struct{}
	// Reset clears the working points regardless of mode.
	Reset struct{}
	// Seed replaces the working points wholesale (used when loading a rule).
	Seed struct{ Points []geometry.Point }
)

func (ModeSwitch) isEvent()   {}
func (Click) isEvent()        {}
func (PointerDown) isEvent()  {}
func (PointerMove) isEvent()  {}
func (PointerUp) isEvent()    {}
func (PointerLeave) isEvent() {}
func (Reset) isEvent()        {}
func (Seed) isEvent()         {}

// Effect tells the caller what to do after a transition.
type Effect int

const (
	EffectNone Effect = iota
	EffectRedraw
)

func (e Effect) String() string {
	if e == EffectRedraw {
		return "redraw"
	}
	return "none"
}

// Transition applies ev to s and returns the next state. s is never mutated;
// the returned state owns its own point slice.
func Transition(s State, ev Event) (State, Effect) {
	switch e := ev.(type) {
	case ModeSwitch:
		return NewState(e.Mode), EffectRedraw

	case Reset:
		return NewState(s.Mode), EffectRedraw

	case Seed:
		next := NewState(s.Mode)
		next.Points = slices.Clone(e.Points)
		return next, EffectRedraw

	case Click:
		if !s.Idle() {
			return s, EffectNone
		}
		if s.suppressArmed {
			next := s
			next.suppressArmed = false
			if e.At == s.suppressAt {
				return next, EffectNone
			}
			s = next
		}
		next := s
		switch s.Mode {
		case ModeLine:
			if len(s.Points) >= 2 {
				next.Points = []geometry.Point{e.At}
			} else {
				next.Points = append(slices.Clone(s.Points), e.At)
			}
		default:
			next.Points = append(slices.Clone(s.Points), e.At)
		}
		return next, EffectRedraw

	case PointerDown:
		if !s.Idle() {
			return s, EffectNone
		}
		next := s
		next.suppressArmed = false
		if i, ok := HitTest(s.Points, e.At, HitRadius); ok {
			next.Drag = i
		}
		return next, EffectNone

	case PointerMove:
		i, ok := s.Dragging()
		if !ok {
			return s, EffectNone
		}
		next := s
		next.Points = slices.Clone(s.Points)
		next.Points[i] = e.At
		return next, EffectRedraw

	case PointerUp:
		if s.Idle() {
			return s, EffectNone
		}
		next := s
		next.Drag = NoDrag
		next.suppressArmed = true
		next.suppressAt = e.At
		return next, EffectNone

	case PointerLeave:
		if s.Idle() {
			return s, EffectNone
		}
		next := s
		next.Drag = NoDrag
		next.suppressArmed = false
		return next, EffectNone
	}
	return s, EffectNone
}

// HitTest returns the index of the point nearest to at, provided it lies
// within radius. Equidistant candidates resolve to the lowest index.
func HitTest(points []geometry.Point, at geometry.Point, radius float64) (int, bool) {
	best := NoDrag
	bestDist := 0.0
	for i, p := range points {
		d := p.DistanceTo(at)
		if d > radius {
			continue
		}
		if best == NoDrag || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, best != NoDrag
}

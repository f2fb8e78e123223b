package editor

import (
	"slices"

	"github.com/inamate/tripwire/internal/geometry"
)

// Session is the editing state for one camera's drawing surface. It is created
// when the surface opens and discarded when it closes or the camera changes.
//
// A Session is not safe for concurrent use; all events must be delivered from
// the goroutine that owns the surface.
type Session struct {
	cameraID string
	state    State
	onChange func(State)
}

// NewSession opens an Idle session in the given mode.
func NewSession(cameraID string, mode Mode) *Session {
	return &Session{cameraID: cameraID, state: NewState(mode)}
}

// OnChange registers fn to run after every transition whose effect is a
// redraw. fn receives a copy of the new state.
func (s *Session) OnChange(fn func(State)) {
	s.onChange = fn
}

// Handle feeds one event through the state machine.
func (s *Session) Handle(ev Event) Effect {
	next, eff := Transition(s.state, ev)
	s.state = next
	if eff == EffectRedraw && s.onChange != nil {
		s.onChange(s.state.Clone())
	}
	return eff
}

// CameraID returns the camera being edited.
func (s *Session) CameraID() string { return s.cameraID }

// State returns a copy of the current model.
func (s *Session) State() State { return s.state.Clone() }

// Mode returns the active draw mode.
func (s *Session) Mode() Mode { return s.state.Mode }

// Points returns a copy of the working points.
func (s *Session) Points() []geometry.Point { return slices.Clone(s.state.Points) }

// SetMode switches draw mode, clearing the working points.
func (s *Session) SetMode(m Mode) { s.Handle(ModeSwitch{Mode: m}) }

// Reset clears the working points.
func (s *Session) Reset() { s.Handle(Reset{}) }

// Seed replaces the working points.
func (s *Session) Seed(points []geometry.Point) { s.Handle(Seed{Points: points}) }

// Shape validates the working points and returns the typed shape.
func (s *Session) Shape() (geometry.Shape, error) {
	return BuildShape(s.state.Mode, s.state.Points)
}

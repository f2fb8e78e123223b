package rules

import (
	"errors"
	"fmt"

	"github.com/inamate/tripwire/internal/editor"
	"github.com/inamate/tripwire/internal/geometry"
)

// Phase names the step of a save action that failed.
type Phase string

const (
	PhaseValidation Phase = "validation"
	PhaseTransform  Phase = "transform"
	PhaseSave       Phase = "save"
	PhaseActivation Phase = "activation"
)

// PersistenceError means the rule service rejected or never received the
// submitted shape. Nothing was persisted and no redeploy was attempted.
type PersistenceError struct {
	CameraID string
	Mode     editor.Mode
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("save: %s for camera %s was not saved: %v", e.Mode, e.CameraID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ActivationError means the shape was persisted but the redeploy that should
// have made it live failed.
type ActivationError struct {
	CameraID string
	Mode     editor.Mode
	Err      error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("activation: %s for camera %s was saved but not activated: %v", e.Mode, e.CameraID, e.Err)
}

func (e *ActivationError) Unwrap() error { return e.Err }

// PhaseOf reports which save phase err belongs to.
func PhaseOf(err error) (Phase, bool) {
	var (
		verr *editor.ValidationError
		gerr *geometry.GeometryError
		perr *PersistenceError
		aerr *ActivationError
	)
	switch {
	case err == nil:
		return "", false
	case errors.As(err, &aerr):
		return PhaseActivation, true
	case errors.As(err, &perr):
		return PhaseSave, true
	case errors.As(err, &verr):
		return PhaseValidation, true
	case errors.As(err, &gerr):
		return PhaseTransform, true
	}
	return "", false
}

// Persisted reports whether the geometry reached the rule service despite
// err. It is true for a nil error and for activation failures.
func Persisted(err error) bool {
	if err == nil {
		return true
	}
	var aerr *ActivationError
	return errors.As(err, &aerr)
}

package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixCamera     = "cam"
	PrefixOperator   = "op"
	PrefixDeployment = "dep"
	PrefixFrame      = "frame"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewCameraID() string     { return New(PrefixCamera) }
func NewOperatorID() string   { return New(PrefixOperator) }
func NewDeploymentID() string { return New(PrefixDeployment) }
func NewFrameID() string      { return New(PrefixFrame) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}

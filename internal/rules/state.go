// Package rules orchestrates loading and saving one camera's detection rule:
// it seeds the editor from the stored rule, and on save validates the working
// shape, normalizes it, submits it to the rule service and triggers a
// redeploy.
package rules

import (
	"context"

	"github.com/inamate/tripwire/internal/editor"
	"github.com/inamate/tripwire/internal/geometry"
)

// Camera is the rule service's view of a camera. Polygon and Line hold the
// stored encodings and are nil when the rule part was never defined.
type Camera struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	URL     string  `json:"url,omitempty"`
	Polygon *string `json:"polygon"`
	Line    *string `json:"line"`
}

// Collaborator is the rule service as seen by a Session. Implementations own
// transport, encoding and any timeout policy.
type Collaborator interface {
	GetCamera(ctx context.Context, cameraID string) (Camera, error)
	SubmitPolygon(ctx context.Context, cameraID string, zone geometry.NormalizedPolygon) error
	SubmitLine(ctx context.Context, cameraID string, line geometry.NormalizedLine) error
	Redeploy(ctx context.Context, cameraID string) error
}

// RuleState is the decoded stored rule for one camera. A nil part is not
// defined yet, which is a valid state.
type RuleState struct {
	Zone *geometry.NormalizedPolygon
	Line *geometry.NormalizedLine
}

// ParseRuleState decodes a camera's stored rule. Unparsable parts are
// treated as absent.
func ParseRuleState(c Camera) RuleState {
	var rs RuleState
	if c.Polygon != nil {
		if zone, ok := geometry.ParseStoredPolygon(*c.Polygon); ok {
			rs.Zone = &zone
		}
	}
	if c.Line != nil {
		if line, ok := geometry.ParseStoredLine(*c.Line); ok {
			rs.Line = &line
		}
	}
	return rs
}

// Missing names the rule parts that are not defined, in display order.
func (r RuleState) Missing() []string {
	var missing []string
	if r.Zone == nil {
		missing = append(missing, "zone")
	}
	if r.Line == nil {
		missing = append(missing, "line")
	}
	return missing
}

// Ready reports whether both parts are defined, which activation requires.
func (r RuleState) Ready() bool { return r.Zone != nil && r.Line != nil }

// Points returns the stored part for mode in pixel space on a surface of the
// given size. An undefined part yields no points.
func (r RuleState) Points(mode editor.Mode, size geometry.Size) ([]geometry.Point, error) {
	switch mode {
	case editor.ModeLine:
		if r.Line == nil {
			return nil, nil
		}
		l, err := geometry.DenormalizeLine(*r.Line, size)
		if err != nil {
			return nil, err
		}
		return l.Vertices(), nil
	default:
		if r.Zone == nil {
			return nil, nil
		}
		p, err := geometry.DenormalizePolygon(*r.Zone, size)
		if err != nil {
			return nil, err
		}
		return p.Points, nil
	}
}

// Encode returns the stored encodings of the defined parts.
func (r RuleState) Encode() (polygon, line *string) {
	if r.Zone != nil {
		s := geometry.EncodePolygon(*r.Zone)
		polygon = &s
	}
	if r.Line != nil {
		s := geometry.EncodeLine(*r.Line)
		line = &s
	}
	return polygon, line
}

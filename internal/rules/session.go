package rules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/inamate/tripwire/internal/editor"
	"github.com/inamate/tripwire/internal/geometry"
)

// SaveResult is the outcome of one save action. Err is nil on full success,
// a *PersistenceError when nothing was saved, or an *ActivationError when
// the shape was saved but not made live.
type SaveResult struct {
	Seq      uint64
	CameraID string
	Mode     editor.Mode
	Zone     *geometry.NormalizedPolygon // submitted zone, polygon saves only
	Line     *geometry.NormalizedLine    // submitted line, line saves only
	Err      error

	// Camera is the canonical rule reloaded after a full success. It is nil
	// when the reload failed or was not attempted.
	Camera *Camera
}

// Phase returns the failed phase, or "" when the save succeeded.
func (r SaveResult) Phase() Phase {
	p, _ := PhaseOf(r.Err)
	return p
}

// Persisted reports whether the submitted shape reached the rule service.
func (r SaveResult) Persisted() bool { return Persisted(r.Err) }

// Activated reports whether the full save cycle succeeded.
func (r SaveResult) Activated() bool { return r.Err == nil }

// Session binds an editor session to one camera's stored rule. Like the
// editor session it wraps, it must be driven from a single goroutine; only
// the network part of SaveAsync runs elsewhere.
type Session struct {
	collab Collaborator
	editor *editor.Session
	size   geometry.Size
	rule   RuleState
	issued uint64
	logger *slog.Logger
}

// Open loads the camera's stored rule and seeds the editor with the part for
// mode. Unparsable stored data is treated as absent. If size is not yet
// valid the editor starts empty and is seeded on the first valid Resize.
func Open(ctx context.Context, collab Collaborator, cameraID string, mode editor.Mode, size geometry.Size) (*Session, error) {
	cam, err := collab.GetCamera(ctx, cameraID)
	if err != nil {
		return nil, fmt.Errorf("load camera %s: %w", cameraID, err)
	}
	s := &Session{
		collab: collab,
		editor: editor.NewSession(cameraID, mode),
		size:   size,
		rule:   ParseRuleState(cam),
		logger: slog.Default().With("camera", cameraID),
	}
	if size.Valid() {
		if err := s.Reseed(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Editor returns the editor session for delivering input events.
func (s *Session) Editor() *editor.Session { return s.editor }

// CameraID returns the camera being edited.
func (s *Session) CameraID() string { return s.editor.CameraID() }

// Rule returns the last known stored rule.
func (s *Session) Rule() RuleState { return s.rule }

// Size returns the current surface size.
func (s *Session) Size() geometry.Size { return s.size }

// Reseed replaces the working points with the stored part for the current
// mode, in current surface pixels.
func (s *Session) Reseed() error {
	pts, err := s.rule.Points(s.editor.Mode(), s.size)
	if err != nil {
		return err
	}
	s.editor.Seed(pts)
	return nil
}

// Resize records a new surface size. Working points keep their normalized
// position; a session opened before the surface was sized is seeded now.
func (s *Session) Resize(size geometry.Size) error {
	if !size.Valid() {
		return &geometry.GeometryError{Op: "resize", Surface: size, Reason: "surface has no area"}
	}
	prev := s.size
	s.size = size
	if !prev.Valid() {
		return s.Reseed()
	}
	pts, err := geometry.Rescale(s.editor.Points(), prev, size)
	if err != nil {
		return err
	}
	s.editor.Seed(pts)
	return nil
}

// Reload fetches the canonical rule and reseeds the editor from it.
func (s *Session) Reload(ctx context.Context) error {
	cam, err := s.collab.GetCamera(ctx, s.CameraID())
	if err != nil {
		return fmt.Errorf("reload camera %s: %w", s.CameraID(), err)
	}
	s.rule = ParseRuleState(cam)
	return s.Reseed()
}

// Save runs a full save cycle and blocks until it completes. Validation and
// transform failures are returned before any network call.
func (s *Session) Save(ctx context.Context) (SaveResult, error) {
	job, err := s.prepare()
	if err != nil {
		return SaveResult{}, err
	}
	res := job.run(ctx, s.collab, s.logger)
	s.Apply(res)
	return res, res.Err
}

// SaveAsync validates and normalizes the working shape on the calling
// goroutine, then submits and redeploys on another. The result arrives on
// the returned channel and must be handed back to Apply on the owning
// goroutine.
func (s *Session) SaveAsync(ctx context.Context) (<-chan SaveResult, error) {
	job, err := s.prepare()
	if err != nil {
		return nil, err
	}
	ch := make(chan SaveResult, 1)
	go func() {
		ch <- job.run(ctx, s.collab, s.logger)
	}()
	return ch, nil
}

// Apply folds a save result into the session. Only the most recently issued
// save is applied; results of earlier saves are ignored and Apply reports
// false. On full success the editor is reseeded from the reloaded rule if it
// is still in the mode that was saved. On activation failure the stored
// rule is updated with the submitted shape and the working points are kept.
func (s *Session) Apply(res SaveResult) bool {
	if res.Seq != s.issued || res.CameraID != s.CameraID() {
		s.logger.Debug("dropping stale save result", "seq", res.Seq, "latest", s.issued)
		return false
	}
	if !res.Persisted() {
		return true
	}
	if res.Zone != nil {
		s.rule.Zone = res.Zone
	}
	if res.Line != nil {
		s.rule.Line = res.Line
	}
	if res.Camera != nil {
		s.rule = ParseRuleState(*res.Camera)
	}
	if res.Activated() && res.Mode == s.editor.Mode() {
		if err := s.Reseed(); err != nil {
			s.logger.Warn("reseed after save failed", "error", err)
		}
	}
	return true
}

type saveJob struct {
	seq      uint64
	cameraID string
	mode     editor.Mode
	zone     *geometry.NormalizedPolygon
	line     *geometry.NormalizedLine
}

func (s *Session) prepare() (saveJob, error) {
	shape, err := s.editor.Shape()
	if err != nil {
		return saveJob{}, err
	}
	job := saveJob{cameraID: s.CameraID(), mode: s.editor.Mode()}
	switch sh := shape.(type) {
	case geometry.Polygon:
		zone, err := geometry.NormalizePolygon(sh, s.size)
		if err != nil {
			return saveJob{}, err
		}
		job.zone = &zone
	case geometry.Line:
		line, err := geometry.NormalizeLine(sh, s.size)
		if err != nil {
			return saveJob{}, err
		}
		job.line = &line
	}
	s.issued++
	job.seq = s.issued
	return job, nil
}

// run submits the shape, then redeploys, then reloads. Each step starts only
// after the previous one resolved.
func (j saveJob) run(ctx context.Context, collab Collaborator, logger *slog.Logger) SaveResult {
	res := SaveResult{Seq: j.seq, CameraID: j.cameraID, Mode: j.mode, Zone: j.zone, Line: j.line}

	var err error
	if j.zone != nil {
		err = collab.SubmitPolygon(ctx, j.cameraID, *j.zone)
	} else {
		err = collab.SubmitLine(ctx, j.cameraID, *j.line)
	}
	if err != nil {
		res.Err = &PersistenceError{CameraID: j.cameraID, Mode: j.mode, Err: err}
		logger.Warn("rule save failed", "mode", j.mode, "error", err)
		return res
	}

	if err := collab.Redeploy(ctx, j.cameraID); err != nil {
		res.Err = &ActivationError{CameraID: j.cameraID, Mode: j.mode, Err: err}
		logger.Warn("rule saved but activation failed", "mode", j.mode, "error", err)
		return res
	}
	logger.Info("rule saved and activated", "mode", j.mode)

	cam, err := collab.GetCamera(ctx, j.cameraID)
	if err != nil {
		logger.Warn("reload after save failed", "error", err)
		return res
	}
	res.Camera = &cam
	return res
}

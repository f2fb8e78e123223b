// Package camera is the camera registry. It stores each camera's stream URL
// and rule (zone polygon and crossing line) and activates rules through the
// deployer.
package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/inamate/tripwire/internal/deploy"
	"github.com/inamate/tripwire/internal/geometry"
	"github.com/inamate/tripwire/internal/store"
	"github.com/inamate/tripwire/internal/typeid"
)

var (
	ErrNotFound    = errors.New("camera not found")
	ErrNameTaken   = errors.New("camera name exists")
	ErrInvalidRule = errors.New("invalid rule")
)

// Events receives rule changes so live editors can refresh.
type Events interface {
	RuleSaved(cameraID, part string)
}

type Service struct {
	store    store.Querier
	deployer *deploy.Deployer
	events   Events
	onDelete []func(id string)
}

func NewService(q store.Querier, deployer *deploy.Deployer) *Service {
	return &Service{store: q, deployer: deployer}
}

// SetEvents installs the rule change listener.
func (s *Service) SetEvents(e Events) { s.events = e }

// OnDelete registers fn to run after a camera is deleted.
func (s *Service) OnDelete(fn func(id string)) { s.onDelete = append(s.onDelete, fn) }

// Exists returns ErrNotFound for unknown cameras.
func (s *Service) Exists(ctx context.Context, id string) error {
	_, err := s.Get(ctx, id)
	return err
}

type Camera struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	URL       string  `json:"url"`
	Polygon   *string `json:"polygon"`
	Line      *string `json:"line"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

// Deployment is one entry of the active deployments listing.
type Deployment struct {
	CameraID   string              `json:"camera_id"`
	CameraName string              `json:"camera_name"`
	URL        string              `json:"url"`
	Status     string              `json:"status"`
	Config     deploy.ActiveConfig `json:"config"`
}

// ImportRequest is an externally produced rule. Coordinates greater than 1
// are absolute pixels.
type ImportRequest struct {
	Polygon []geometry.FlexPoint `json:"polygon"`
	Line    struct {
		X1 float64 `json:"x1"`
		Y1 float64 `json:"y1"`
		X2 float64 `json:"x2"`
		Y2 float64 `json:"y2"`
	} `json:"line"`
}

func (s *Service) Create(ctx context.Context, name, url string) (*Camera, error) {
	c, err := s.store.CreateCamera(ctx, store.CreateCameraParams{
		ID:   typeid.NewCameraID(),
		Name: name,
		URL:  url,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("create camera: %w", err)
	}
	return fromStore(c), nil
}

func (s *Service) Get(ctx context.Context, id string) (*Camera, error) {
	c, err := s.store.GetCamera(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get camera: %w", err)
	}
	return fromStore(c), nil
}

func (s *Service) List(ctx context.Context) ([]Camera, error) {
	rows, err := s.store.ListCameras(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	cameras := make([]Camera, len(rows))
	for i, c := range rows {
		cameras[i] = *fromStore(c)
	}
	return cameras, nil
}

// Delete removes the camera and deactivates its rule.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteCamera(ctx, id); err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("delete camera: %w", err)
	}
	if err := s.deployer.Remove(id); err != nil {
		slog.Warn("deactivate deleted camera", "camera", id, "error", err)
	}
	for _, fn := range s.onDelete {
		fn(id)
	}
	return nil
}

func (s *Service) SavePolygon(ctx context.Context, id string, points []geometry.NormalizedPoint) error {
	poly := geometry.NormalizedPolygon{Points: points}
	if len(points) < 3 {
		return fmt.Errorf("%w: polygon needs at least 3 points, got %d", ErrInvalidRule, len(points))
	}
	if !poly.Valid() {
		return fmt.Errorf("%w: polygon points must be within [0,1]", ErrInvalidRule)
	}
	if err := s.store.UpdateCameraPolygon(ctx, id, geometry.EncodePolygon(poly)); err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("save polygon: %w", err)
	}
	slog.Info("polygon saved", "camera", id, "points", len(points))
	s.notify(id, "zone")
	return nil
}

func (s *Service) SaveLine(ctx context.Context, id string, line geometry.NormalizedLine) error {
	if !line.Valid() {
		return fmt.Errorf("%w: line endpoints must be within [0,1]", ErrInvalidRule)
	}
	if err := s.store.UpdateCameraLine(ctx, id, geometry.EncodeLine(line)); err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("save line: %w", err)
	}
	slog.Info("line saved", "camera", id)
	s.notify(id, "line")
	return nil
}

// Deploy activates the camera's stored rule.
func (s *Service) Deploy(ctx context.Context, id string) (deploy.ActiveConfig, error) {
	c, err := s.store.GetCamera(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return deploy.ActiveConfig{}, ErrNotFound
		}
		return deploy.ActiveConfig{}, fmt.Errorf("get camera: %w", err)
	}
	rule := deploy.Rule{CameraID: c.ID, URL: c.URL}
	if c.Polygon != nil {
		if zone, ok := geometry.ParseStoredPolygon(*c.Polygon); ok {
			rule.Zone = &zone
		}
	}
	if c.Line != nil {
		if line, ok := geometry.ParseStoredLine(*c.Line); ok {
			rule.Line = &line
		}
	}
	return s.deployer.Deploy(rule)
}

func (s *Service) ActiveConfig(ctx context.Context, id string) (deploy.ActiveConfig, error) {
	return s.deployer.Active(id)
}

// PortableConfig resolves the active rule to pixels for a width×height stream.
func (s *Service) PortableConfig(ctx context.Context, id string, width, height int) (deploy.PortableConfig, error) {
	cfg, err := s.deployer.Active(id)
	if err != nil {
		return deploy.PortableConfig{}, err
	}
	p, err := deploy.Portable(cfg, width, height)
	if err != nil {
		return deploy.PortableConfig{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return p, nil
}

// ImportConfig normalizes an uploaded rule against width×height, saves both
// shapes and redeploys.
func (s *Service) ImportConfig(ctx context.Context, id string, req ImportRequest, width, height int) (deploy.ActiveConfig, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return deploy.ActiveConfig{}, err
	}
	w, h := float64(width), float64(height)

	points := make([]geometry.NormalizedPoint, 0, len(req.Polygon))
	for _, p := range req.Polygon {
		x, err := geometry.AutoNormalize(p.X, w)
		if err != nil {
			return deploy.ActiveConfig{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		y, err := geometry.AutoNormalize(p.Y, h)
		if err != nil {
			return deploy.ActiveConfig{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		points = append(points, geometry.NormalizedPoint{X: x, Y: y})
	}

	var coords [4]float64
	for i, v := range [4]float64{req.Line.X1, req.Line.Y1, req.Line.X2, req.Line.Y2} {
		span := w
		if i%2 == 1 {
			span = h
		}
		n, err := geometry.AutoNormalize(v, span)
		if err != nil {
			return deploy.ActiveConfig{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		coords[i] = n
	}
	line := geometry.NormalizedLine{
		P1: geometry.NormalizedPoint{X: coords[0], Y: coords[1]},
		P2: geometry.NormalizedPoint{X: coords[2], Y: coords[3]},
	}

	if err := s.SavePolygon(ctx, id, points); err != nil {
		return deploy.ActiveConfig{}, err
	}
	if err := s.SaveLine(ctx, id, line); err != nil {
		return deploy.ActiveConfig{}, err
	}
	return s.Deploy(ctx, id)
}

// Status reports whether a camera has a live rule and which stored parts are
// missing for the next deploy.
type Status struct {
	CameraID     string     `json:"camera_id"`
	Deployed     bool       `json:"deployed"`
	DeploymentID string     `json:"deployment_id,omitempty"`
	DeployedAt   *time.Time `json:"deployed_at,omitempty"`
	Ready        bool       `json:"ready"`
	Missing      []string   `json:"missing"`
}

func (s *Service) Status(ctx context.Context, id string) (Status, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return Status{}, err
	}
	st := Status{CameraID: c.ID, Missing: []string{}}
	if c.Polygon == nil {
		st.Missing = append(st.Missing, "polygon")
	} else if _, ok := geometry.ParseStoredPolygon(*c.Polygon); !ok {
		st.Missing = append(st.Missing, "polygon")
	}
	if c.Line == nil {
		st.Missing = append(st.Missing, "line")
	} else if _, ok := geometry.ParseStoredLine(*c.Line); !ok {
		st.Missing = append(st.Missing, "line")
	}
	st.Ready = len(st.Missing) == 0
	if cfg, err := s.deployer.Active(id); err == nil {
		st.Deployed = true
		st.DeploymentID = cfg.DeploymentID
		at := cfg.DeployedAt
		st.DeployedAt = &at
	}
	return st, nil
}

// ConfigFiles lists the config files the detector reads.
func (s *Service) ConfigFiles(ctx context.Context) ([]deploy.ConfigFile, error) {
	return s.deployer.Files()
}

// ConfigFile returns one config file's raw contents.
func (s *Service) ConfigFile(ctx context.Context, name string) ([]byte, error) {
	return s.deployer.File(name)
}

// ActiveDeployments lists live rules joined with their camera names.
func (s *Service) ActiveDeployments(ctx context.Context) ([]Deployment, error) {
	configs := s.deployer.List()
	out := make([]Deployment, 0, len(configs))
	for _, cfg := range configs {
		d := Deployment{CameraID: cfg.CameraID, URL: cfg.URL, Status: "Running", Config: cfg}
		c, err := s.store.GetCamera(ctx, cfg.CameraID)
		switch {
		case err == nil:
			d.CameraName = c.Name
		case errors.Is(err, store.ErrNoRows):
			d.CameraName = "Unknown"
		default:
			return nil, fmt.Errorf("get camera: %w", err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Service) notify(id, part string) {
	if s.events != nil {
		s.events.RuleSaved(id, part)
	}
}

func fromStore(c store.Camera) *Camera {
	return &Camera{
		ID:        c.ID,
		Name:      c.Name,
		URL:       c.URL,
		Polygon:   c.Polygon,
		Line:      c.Line,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

// Package deploy activates camera rules. An activation writes the rule as
// camera_<id>.json under the config directory, where the detector picks it
// up, and keeps an in-memory index of what is live.
package deploy

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/inamate/tripwire/internal/geometry"
	"github.com/inamate/tripwire/internal/typeid"
)

var (
	ErrIncompleteRule = errors.New("rule needs both polygon and line before deploying")
	ErrNotActive      = errors.New("no active configuration for camera")
	ErrInvalidConfig  = errors.New("active config failed schema validation")
	ErrNoConfigFile   = errors.New("config file not found")
)

var configFileName = regexp.MustCompile(`^camera_[A-Za-z0-9_-]+\.json$`)

// ConfigFile describes one file in the config directory.
type ConfigFile struct {
	Name     string    `json:"filename"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

//go:embed active_config.schema.json
var schemaJSON []byte

// ActiveConfig is the file the detector consumes.
type ActiveConfig struct {
	CameraID     string                     `json:"camera_id"`
	DeploymentID string                     `json:"deployment_id"`
	URL          string                     `json:"url"`
	Polygon      []geometry.NormalizedPoint `json:"polygon"`
	Line         geometry.NormalizedLine    `json:"line"`
	DeployedAt   time.Time                  `json:"deployed_at"`
}

// Rule is what a deploy request carries. Nil parts are undefined.
type Rule struct {
	CameraID string
	URL      string
	Zone     *geometry.NormalizedPolygon
	Line     *geometry.NormalizedLine
}

type Deployer struct {
	dir    string
	schema *gojsonschema.Schema

	mu        sync.RWMutex
	active    map[string]ActiveConfig
	listeners []func(ActiveConfig)
}

// NewDeployer prepares dir and restores the active set from files found in
// it.
func NewDeployer(dir string) (*Deployer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile active config schema: %w", err)
	}
	d := &Deployer{dir: dir, schema: schema, active: make(map[string]ActiveConfig)}
	if err := d.restore(); err != nil {
		return nil, err
	}
	return d, nil
}

// OnDeploy registers fn to run after every successful activation.
func (d *Deployer) OnDeploy(fn func(ActiveConfig)) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

// Deploy activates r, replacing any previous activation for the camera.
func (d *Deployer) Deploy(r Rule) (ActiveConfig, error) {
	if r.Zone == nil || r.Line == nil {
		return ActiveConfig{}, ErrIncompleteRule
	}
	cfg := ActiveConfig{
		CameraID:     r.CameraID,
		DeploymentID: typeid.NewDeploymentID(),
		URL:          r.URL,
		Polygon:      r.Zone.Points,
		Line:         *r.Line,
		DeployedAt:   time.Now().UTC(),
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return ActiveConfig{}, fmt.Errorf("marshal active config: %w", err)
	}
	if err := d.validate(data); err != nil {
		return ActiveConfig{}, err
	}
	if err := writeFileAtomic(d.path(r.CameraID), data); err != nil {
		return ActiveConfig{}, fmt.Errorf("write active config: %w", err)
	}

	d.mu.Lock()
	d.active[r.CameraID] = cfg
	listeners := append([]func(ActiveConfig){}, d.listeners...)
	d.mu.Unlock()

	slog.Info("rule deployed", "camera", r.CameraID, "deployment", cfg.DeploymentID, "points", len(cfg.Polygon))
	for _, fn := range listeners {
		fn(cfg)
	}
	return cfg, nil
}

// Active returns the live configuration for a camera.
func (d *Deployer) Active(cameraID string) (ActiveConfig, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cfg, ok := d.active[cameraID]
	if !ok {
		return ActiveConfig{}, ErrNotActive
	}
	return cfg, nil
}

// List returns every live configuration ordered by camera ID.
func (d *Deployer) List() []ActiveConfig {
	d.mu.RLock()
	out := make([]ActiveConfig, 0, len(d.active))
	for _, cfg := range d.active {
		out = append(out, cfg)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CameraID < out[j].CameraID })
	return out
}

// Remove deactivates a camera. Removing an inactive camera is not an error.
func (d *Deployer) Remove(cameraID string) error {
	d.mu.Lock()
	delete(d.active, cameraID)
	d.mu.Unlock()
	if err := os.Remove(d.path(cameraID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove active config: %w", err)
	}
	return nil
}

// Files lists the config files on disk ordered by name. Files the detector
// would skip are listed too.
func (d *Deployer) Files() ([]ConfigFile, error) {
	matches, err := filepath.Glob(filepath.Join(d.dir, "camera_*.json"))
	if err != nil {
		return nil, fmt.Errorf("scan config dir: %w", err)
	}
	out := make([]ConfigFile, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat config file: %w", err)
		}
		out = append(out, ConfigFile{Name: info.Name(), Size: info.Size(), Modified: info.ModTime().UTC()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// File returns the raw bytes of a config file. Only bare camera_<id>.json
// names resolve.
func (d *Deployer) File(name string) ([]byte, error) {
	if !configFileName.MatchString(name) {
		return nil, ErrNoConfigFile
	}
	data, err := os.ReadFile(filepath.Join(d.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoConfigFile
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return data, nil
}

func (d *Deployer) path(cameraID string) string {
	return filepath.Join(d.dir, "camera_"+cameraID+".json")
}

func (d *Deployer) validate(data []byte) error {
	result, err := d.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate active config: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
	}
	return nil
}

// restore loads previously written files. Files that fail to parse or
// validate are skipped with a warning.
func (d *Deployer) restore() error {
	matches, err := filepath.Glob(filepath.Join(d.dir, "camera_*.json"))
	if err != nil {
		return fmt.Errorf("scan config dir: %w", err)
	}
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skip active config", "path", path, "error", err)
			continue
		}
		if err := d.validate(data); err != nil {
			slog.Warn("skip active config", "path", path, "error", err)
			continue
		}
		var cfg ActiveConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			slog.Warn("skip active config", "path", path, "error", err)
			continue
		}
		d.active[cfg.CameraID] = cfg
	}
	if len(d.active) > 0 {
		slog.Info("restored active deployments", "count", len(d.active))
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

package deploy

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/inamate/tripwire/internal/geometry"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

func testRule(id string) Rule {
	return Rule{
		CameraID: id,
		URL:      "rtsp://" + id,
		Zone: &geometry.NormalizedPolygon{Points: []geometry.NormalizedPoint{
			{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.1}, {X: 0.5, Y: 0.9},
		}},
		Line: &geometry.NormalizedLine{P1: geometry.NormalizedPoint{X: 0, Y: 0.5}, P2: geometry.NormalizedPoint{X: 1, Y: 0.5}},
	}
}

func TestDeployWritesConfig(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDeployer(dir)
	if err != nil {
		t.Fatal(err)
	}
	var notified []string
	d.OnDeploy(func(cfg ActiveConfig) { notified = append(notified, cfg.CameraID) })

	cfg, err := d.Deploy(testRule("cam_a"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(cfg.DeploymentID, "dep_") || cfg.DeployedAt.IsZero() {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(notified) != 1 || notified[0] != "cam_a" {
		t.Fatalf("notified = %v", notified)
	}

	data, err := os.ReadFile(filepath.Join(dir, "camera_cam_a.json"))
	if err != nil {
		t.Fatal(err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatal(err)
	}
	if onDisk["url"] != "rtsp://cam_a" {
		t.Fatalf("url = %v", onDisk["url"])
	}
	line := onDisk["line"].(map[string]any)
	if line["x2"] != 1.0 || line["y1"] != 0.5 {
		t.Fatalf("line = %v", line)
	}

	got, err := d.Active("cam_a")
	if err != nil || got.DeploymentID != cfg.DeploymentID {
		t.Fatalf("active = %+v, %v", got, err)
	}
}

func TestDeployIncomplete(t *testing.T) {
	d, err := NewDeployer(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for name, mutate := range map[string]func(*Rule){
		"no zone": func(r *Rule) { r.Zone = nil },
		"no line": func(r *Rule) { r.Line = nil },
		"neither": func(r *Rule) { r.Zone, r.Line = nil, nil },
	} {
		t.Run(name, func(t *testing.T) {
			r := testRule("cam_x")
			mutate(&r)
			if _, err := d.Deploy(r); !errors.Is(err, ErrIncompleteRule) {
				t.Fatalf("err = %v", err)
			}
		})
	}
	if _, err := d.Active("cam_x"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("active err = %v", err)
	}
}

func TestDeploySchemaRejects(t *testing.T) {
	d, err := NewDeployer(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := testRule("cam_a")
	r.Zone.Points = r.Zone.Points[:2]
	if _, err := d.Deploy(r); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("two-point zone: err = %v", err)
	}

	r = testRule("cam_a")
	r.Line.P2.X = 1.5
	if _, err := d.Deploy(r); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("out of range line: err = %v", err)
	}
}

func TestRestoreAndRemove(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDeployer(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"cam_b", "cam_a"} {
		if _, err := d.Deploy(testRule(id)); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "camera_bad.json"), []byte(`{"camera_id":"bad"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	restored, err := NewDeployer(dir)
	if err != nil {
		t.Fatal(err)
	}
	list := restored.List()
	if len(list) != 2 || list[0].CameraID != "cam_a" || list[1].CameraID != "cam_b" {
		t.Fatalf("list = %+v", list)
	}

	if err := restored.Remove("cam_a"); err != nil {
		t.Fatal(err)
	}
	if err := restored.Remove("cam_a"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "camera_cam_a.json")); !os.IsNotExist(err) {
		t.Fatalf("file still present: %v", err)
	}
	if len(restored.List()) != 1 {
		t.Fatalf("list after remove = %+v", restored.List())
	}
}

func TestPortable(t *testing.T) {
	d, err := NewDeployer(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := d.Deploy(testRule("cam_a"))
	if err != nil {
		t.Fatal(err)
	}
	p, err := Portable(cfg, 1920, 1080)
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]int{{192, 108}, {1728, 108}, {960, 972}}
	for i, pt := range p.Polygon {
		if pt != want[i] {
			t.Fatalf("polygon[%d] = %v, want %v", i, pt, want[i])
		}
	}
	if p.Line != (PixelLine{X1: 0, Y1: 540, X2: 1920, Y2: 540}) {
		t.Fatalf("line = %+v", p.Line)
	}

	if _, err := Portable(cfg, 0, 1080); err == nil {
		t.Fatal("expected error for zero width")
	}

	data, ct, err := p.Encode("yaml")
	if err != nil || ct != "application/yaml" {
		t.Fatalf("yaml: %q, %v", ct, err)
	}
	var back PortableConfig
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Width != 1920 || len(back.Polygon) != 3 || back.Line.Y2 != 540 {
		t.Fatalf("yaml round trip = %+v", back)
	}

	if _, ct, err := p.Encode(""); err != nil || ct != "application/json" {
		t.Fatalf("json: %q, %v", ct, err)
	}
	if _, _, err := p.Encode("toml"); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestConfigFiles(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDeployer(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"cam_b", "cam_a"} {
		if _, err := d.Deploy(testRule(id)); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := d.Files()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].Name != "camera_cam_a.json" || files[1].Name != "camera_cam_b.json" {
		t.Fatalf("files = %+v", files)
	}
	if files[0].Size == 0 || files[0].Modified.IsZero() {
		t.Fatalf("file info = %+v", files[0])
	}

	data, err := d.File("camera_cam_a.json")
	if err != nil {
		t.Fatal(err)
	}
	onDisk, _ := os.ReadFile(filepath.Join(dir, "camera_cam_a.json"))
	if string(data) != string(onDisk) {
		t.Fatal("File should return the bytes on disk")
	}

	for _, name := range []string{"camera_cam_c.json", "notes.txt", "../camera_cam_a.json", "sub/camera_cam_a.json", ""} {
		if _, err := d.File(name); !errors.Is(err, ErrNoConfigFile) {
			t.Errorf("File(%q): err = %v, want ErrNoConfigFile", name, err)
		}
	}
}

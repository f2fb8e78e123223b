package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"

	"github.com/inamate/tripwire/internal/auth"
	"github.com/inamate/tripwire/internal/camera"
	"github.com/inamate/tripwire/internal/deploy"
	"github.com/inamate/tripwire/internal/editor"
	"github.com/inamate/tripwire/internal/geometry"
	"github.com/inamate/tripwire/internal/rules"
	"github.com/inamate/tripwire/internal/store"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

var _ rules.Collaborator = (*Client)(nil)

// newServer runs the camera and auth routes against a SQLite store.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	db, err := store.OpenSQLite(ctx, filepath.Join(dir, "tripwire.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)
	deployer, err := deploy.NewDeployer(filepath.Join(dir, "configs"))
	if err != nil {
		t.Fatal(err)
	}

	authSvc := auth.NewService(db, "client-secret")
	if _, err := authSvc.Register(ctx, "ana", "password123", "Ana"); err != nil {
		t.Fatal(err)
	}
	authHandler := auth.NewHandler(authSvc)

	r := mux.NewRouter()
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authSvc.AuthMiddleware)
	camera.NewHandler(camera.NewService(db, deployer)).Register(api)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func login(t *testing.T, c *Client) {
	t.Helper()
	res, err := c.Login(context.Background(), "ana", "password123")
	if err != nil {
		t.Fatal(err)
	}
	if res.Operator.DisplayName != "Ana" {
		t.Fatalf("login = %+v", res)
	}
}

func TestAuthErrors(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL)

	_, err := c.ListCameras(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Detail != "missing authorization header" {
		t.Fatalf("err = %v", err)
	}

	if _, err := c.Login(context.Background(), "ana", "wrong-password"); !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("bad login: err = %v", err)
	}
}

func TestCameraCalls(t *testing.T) {
	ctx := context.Background()
	c := New(newServer(t).URL)
	login(t, c)

	cam, err := c.CreateCamera(ctx, "Gate", "rtsp://gate")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.CreateCamera(ctx, "Gate", ""); err == nil || err.(*APIError).Detail != "Camera name exists" {
		t.Fatalf("duplicate: err = %v", err)
	}
	list, err := c.ListCameras(ctx)
	if err != nil || len(list) != 1 || list[0].ID != cam.ID {
		t.Fatalf("list = %+v, %v", list, err)
	}
	if _, err := c.GetCamera(ctx, "cam_missing"); !IsNotFound(err) {
		t.Fatalf("missing: err = %v", err)
	}
	if _, err := c.ActiveConfig(ctx, cam.ID); !IsNotFound(err) {
		t.Fatalf("active before deploy: err = %v", err)
	}
}

func clicks(s *editor.Session, pts ...geometry.Point) {
	for _, p := range pts {
		s.Handle(editor.Click{At: p})
	}
}

// A zone saved before any line exists persists but cannot be activated;
// adding the line completes the rule.
func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := New(newServer(t).URL)
	login(t, c)
	cam, err := c.CreateCamera(ctx, "Dock", "rtsp://dock")
	if err != nil {
		t.Fatal(err)
	}

	size := geometry.Sz(800, 600)
	s, err := rules.Open(ctx, c, cam.ID, editor.ModePolygon, size)
	if err != nil {
		t.Fatal(err)
	}
	clicks(s.Editor(), geometry.Pt(40, 30), geometry.Pt(760, 30), geometry.Pt(400, 570))

	res, err := s.Save(ctx)
	var actErr *rules.ActivationError
	if !errors.As(err, &actErr) {
		t.Fatalf("err = %v", err)
	}
	if !res.Persisted() || res.Phase() != rules.PhaseActivation {
		t.Fatalf("res = %+v", res)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Detail != "Please configure both polygon and line before deploying" {
		t.Fatalf("detail = %v", err)
	}
	if len(s.Editor().Points()) != 3 {
		t.Fatalf("working points lost: %v", s.Editor().Points())
	}

	s.Editor().SetMode(editor.ModeLine)
	clicks(s.Editor(), geometry.Pt(0, 300), geometry.Pt(800, 300))
	res, err = s.Save(ctx)
	if err != nil {
		t.Fatalf("line save: %v", err)
	}
	if !res.Activated() || res.Camera == nil || !s.Rule().Ready() {
		t.Fatalf("res = %+v, rule = %+v", res, s.Rule())
	}

	stored, err := c.GetCamera(ctx, cam.ID)
	if err != nil {
		t.Fatal(err)
	}
	zone, ok := geometry.ParseStoredPolygon(*stored.Polygon)
	if !ok || !near(zone.Points[0].X, 0.05) || !near(zone.Points[0].Y, 0.05) {
		t.Fatalf("stored zone = %v", *stored.Polygon)
	}
	if _, err := c.ActiveConfig(ctx, cam.ID); err != nil {
		t.Fatalf("active config: %v", err)
	}

	reopened, err := rules.Open(ctx, c, cam.ID, editor.ModePolygon, geometry.Sz(400, 300))
	if err != nil {
		t.Fatal(err)
	}
	if p := reopened.Editor().Points(); len(p) != 3 || !near(p[1].X, 380) || !near(p[1].Y, 15) {
		t.Fatalf("reopened points = %v", p)
	}
}

func near(a, b float64) bool {
	d := a - b
	return d < 1e-6 && d > -1e-6
}

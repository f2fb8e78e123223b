package main

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/zalando/go-keyring"

	"github.com/inamate/tripwire/internal/auth"
	"github.com/inamate/tripwire/internal/camera"
	"github.com/inamate/tripwire/internal/client"
	"github.com/inamate/tripwire/internal/credentials"
	"github.com/inamate/tripwire/internal/deploy"
	"github.com/inamate/tripwire/internal/discovery"
	"github.com/inamate/tripwire/internal/rules"
	"github.com/inamate/tripwire/internal/store"
)

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
	authSvc := auth.NewService(db, "rulectl-secret")
	if _, err := authSvc.Register(ctx, "ana", "password123", "Ana"); err != nil {
		t.Fatal(err)
	}

	r := mux.NewRouter()
	r.HandleFunc("/auth/login", auth.NewHandler(authSvc).Login).Methods("POST")
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authSvc.AuthMiddleware)
	camera.NewHandler(camera.NewService(db, deployer)).Register(api)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type harness struct {
	t     *testing.T
	creds *credentials.Store
	out   bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	keyring.MockInit()
	return &harness{t: t, creds: credentials.NewStore(filepath.Join(t.TempDir(), "rulectl.yaml"))}
}

func (h *harness) run(args ...string) error {
	h.out.Reset()
	return newRoot(h.creds, &h.out).Run(args)
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	if err := h.run(args...); err != nil {
		h.t.Fatalf("rulectl %s: %v", strings.Join(args, " "), err)
	}
	return h.out.String()
}

func TestOperatorWorkflow(t *testing.T) {
	srv := newServer(t)
	h := newHarness(t)

	if err := h.run("cameras"); !errors.Is(err, credentials.ErrNotLoggedIn) {
		t.Fatalf("cameras before login: err = %v", err)
	}

	out := h.mustRun("login", "-server", srv.URL, "-user", "ana", "-password", "password123")
	if !strings.Contains(out, "as Ana") {
		t.Fatalf("login output = %q", out)
	}

	_, token, err := h.creds.Load()
	if err != nil {
		t.Fatal(err)
	}
	cam, err := client.New(srv.URL, client.WithToken(token)).CreateCamera(context.Background(), "Gate", "rtsp://gate")
	if err != nil {
		t.Fatal(err)
	}

	out = h.mustRun("cameras")
	if !strings.Contains(out, cam.ID) || !strings.Contains(out, "missing zone, line") {
		t.Fatalf("cameras output = %q", out)
	}

	// Saving only the zone persists it but cannot activate yet.
	err = h.run("draw", "-size", "400x300", cam.ID, "40,30", "360,30", "200,270")
	var actErr *rules.ActivationError
	if !errors.As(err, &actErr) || !strings.Contains(err.Error(), "saved but not activated") {
		t.Fatalf("draw polygon: err = %v", err)
	}

	out = h.mustRun("draw", "-mode", "line", "-size", "400x300", cam.ID, "0,150", "400,150")
	if !strings.Contains(out, "redeployed") || strings.Contains(out, "Still missing") {
		t.Fatalf("draw line output = %q", out)
	}

	out = h.mustRun("show", "-active", cam.ID)
	for _, want := range []string{"Gate", "(0.100, 0.100)", "(0.000, 0.500) -> (1.000, 0.500)", "deployment_id"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q:\n%s", want, out)
		}
	}

	pngPath := filepath.Join(t.TempDir(), "gate.png")
	h.mustRun("preview", "-size", "640x360", "-o", pngPath, cam.ID)
	f, err := os.Open(pngPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 640 || b.Dy() != 360 {
		t.Fatalf("preview size = %v", b)
	}

	h.mustRun("logout")
	if err := h.run("show", cam.ID); !errors.Is(err, credentials.ErrNotLoggedIn) {
		t.Fatalf("show after logout: err = %v", err)
	}
}

func TestDrawRejectsIncompleteShape(t *testing.T) {
	srv := newServer(t)
	h := newHarness(t)
	h.mustRun("login", "-server", srv.URL, "-user", "ana", "-password", "password123")
	_, token, _ := h.creds.Load()
	cam, err := client.New(srv.URL, client.WithToken(token)).CreateCamera(context.Background(), "Dock", "")
	if err != nil {
		t.Fatal(err)
	}

	err = h.run("draw", cam.ID, "10,10", "20,20")
	if phase, ok := rules.PhaseOf(err); !ok || phase != rules.PhaseValidation {
		t.Fatalf("err = %v", err)
	}
}

func TestUsageErrors(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		args []string
		want string
	}{
		{nil, "Commands:"},
		{[]string{"bogus"}, "Commands:"},
		{[]string{"login", "-user", "ana"}, "-server is required"},
		{[]string{"show"}, "expected one camera id"},
		{[]string{"draw", "-mode", "circle", "cam_x"}, "circle"},
		{[]string{"draw", "cam_x", "10;10"}, "want x,y"},
		{[]string{"draw", "-size", "100", "cam_x"}, "WIDTHxHEIGHT"},
		{[]string{"preview", "-o", "out.gif", "cam_x"}, ".png or .pdf"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			err := h.run(tt.args...)
			var uerr *UsageError
			if !errors.As(err, &uerr) {
				t.Fatalf("err = %v, want usage error", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("usage = %q, want %q", err.Error(), tt.want)
			}
		})
	}
}

func TestDiscover(t *testing.T) {
	original := browse
	t.Cleanup(func() { browse = original })

	browse = func(ctx context.Context, timeout time.Duration) ([]discovery.Instance, error) {
		if timeout != 500*time.Millisecond {
			t.Errorf("timeout = %v", timeout)
		}
		return []discovery.Instance{{Name: "lobby", Host: "lobby.local.", Addr: "10.0.0.5:8080"}}, nil
	}
	h := newHarness(t)
	out := h.mustRun("discover", "-wait", "500ms")
	if !strings.Contains(out, "http://10.0.0.5:8080") || !strings.Contains(out, "lobby") {
		t.Fatalf("discover output = %q", out)
	}

	browse = func(context.Context, time.Duration) ([]discovery.Instance, error) { return nil, nil }
	if out := h.mustRun("discover"); !strings.Contains(out, "No rule services found") {
		t.Fatalf("empty discover output = %q", out)
	}
}

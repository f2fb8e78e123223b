package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/inamate/tripwire/internal/camera"
	"github.com/inamate/tripwire/internal/frame"
	"github.com/inamate/tripwire/internal/render"
	"github.com/inamate/tripwire/internal/rules"
)

// CameraGetter loads a camera by ID.
type CameraGetter func(ctx context.Context, id string) (*camera.Camera, error)

type Handler struct {
	cameras  CameraGetter
	frames   *frame.Store
	renderer *render.Renderer
}

func NewHandler(cameras CameraGetter, frames *frame.Store, renderer *render.Renderer) *Handler {
	return &Handler{cameras: cameras, frames: frames, renderer: renderer}
}

// Register mounts the export routes on an authenticated /api subrouter.
func (h *Handler) Register(api *mux.Router) {
	api.HandleFunc("/camera/{id}/preview.png", h.Preview).Methods("GET")
	api.HandleFunc("/camera/{id}/rules.pdf", h.PDF).Methods("GET")
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	cam, overlay, bg, ok := h.prepare(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := WritePNG(w, h.renderer, overlay, bg); err != nil {
		slog.Error("render preview", "camera", cam.ID, "error", err)
	}
}

func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	cam, overlay, bg, ok := h.prepare(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, sanitize(cam.Name)))
	if err := WritePDF(w, h.renderer, overlay, bg, cam.Name+" rules"); err != nil {
		slog.Error("render pdf", "camera", cam.ID, "error", err)
	}
}

// prepare loads the camera, its frame and resolves the overlay size. The
// frame's own size is used when the request gives none.
func (h *Handler) prepare(w http.ResponseWriter, r *http.Request) (*camera.Camera, Overlay, image.Image, bool) {
	cam, err := h.cameras(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, camera.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": camera.DetailNotFound})
		} else {
			slog.Error("get camera", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return nil, Overlay{}, nil, false
	}

	bg, err := h.frames.Load(cam.ID)
	if err != nil && !errors.Is(err, frame.ErrNoFrame) {
		slog.Warn("load frame", "camera", cam.ID, "error", err)
	}

	width, height := DefaultWidth, DefaultHeight
	if bg != nil {
		width, height = bg.Bounds().Dx(), bg.Bounds().Dy()
	}
	q := r.URL.Query()
	if v := q.Get("width"); v != "" {
		width, err = strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid width"})
			return nil, Overlay{}, nil, false
		}
	}
	if v := q.Get("height"); v != "" {
		height, err = strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid height"})
			return nil, Overlay{}, nil, false
		}
	}

	rs := rules.ParseRuleState(rules.Camera{ID: cam.ID, Name: cam.Name, Polygon: cam.Polygon, Line: cam.Line})
	overlay, err := Resolve(rs, width, height)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, Overlay{}, nil, false
	}
	return cam, overlay, bg, true
}

func sanitize(name string) string {
	if name == "" {
		return "camera"
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

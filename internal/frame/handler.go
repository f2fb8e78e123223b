package frame

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/inamate/tripwire/internal/typeid"
)

const maxUploadSize = 10 << 20 // 10MB

// UploadResponse is returned from the upload endpoint.
type UploadResponse struct {
	ID       string `json:"id"`
	CameraID string `json:"camera_id"`
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Name     string `json:"name"`
}

// CameraLookup reports whether a camera exists.
type CameraLookup func(ctx context.Context, id string) error

// Handler serves frame upload and retrieval endpoints.
type Handler struct {
	store  *Store
	lookup CameraLookup
}

func NewHandler(store *Store, lookup CameraLookup) *Handler {
	return &Handler{store: store, lookup: lookup}
}

// Upload handles POST /api/camera/{id}/frame (multipart form with "file" field).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	cameraID := mux.Vars(r)["id"]
	if err := h.lookup(r.Context(), cameraID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Camera not found"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file too large (max 10MB)"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file field"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/png") && !strings.HasPrefix(contentType, "image/jpeg") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "only PNG and JPEG images are supported"})
		return
	}

	img, err := h.store.Save(cameraID, file)
	if err != nil {
		slog.Error("save frame", "camera", cameraID, "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid image"})
		return
	}

	bounds := img.Bounds()
	slog.Info("frame uploaded", "camera", cameraID, "width", bounds.Dx(), "height", bounds.Dy())
	writeJSON(w, http.StatusOK, UploadResponse{
		ID:       typeid.NewFrameID(),
		CameraID: cameraID,
		URL:      fmt.Sprintf("/frames/%s", Filename(cameraID)),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Name:     header.Filename,
	})
}

// Serve returns an http.Handler that serves stored frames under /frames/.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.store.Dir()))
	return http.StripPrefix("/frames/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Frames are replaced in place.
		w.Header().Set("Cache-Control", "no-cache")
		fs.ServeHTTP(w, r)
	}))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

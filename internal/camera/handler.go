package camera

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/inamate/tripwire/internal/auth"
	"github.com/inamate/tripwire/internal/deploy"
	"github.com/inamate/tripwire/internal/geometry"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the camera routes on an authenticated /api subrouter.
func (h *Handler) Register(api *mux.Router) {
	api.HandleFunc("/cameras", h.List).Methods("GET")
	api.HandleFunc("/cameras", h.Create).Methods("POST")
	api.HandleFunc("/camera/{id}", h.Get).Methods("GET")
	api.HandleFunc("/camera/{id}", h.Delete).Methods("DELETE")
	api.HandleFunc("/camera/{id}/polygon", h.SavePolygon).Methods("POST")
	api.HandleFunc("/camera/{id}/line", h.SaveLine).Methods("POST")
	api.HandleFunc("/camera/{id}/deploy", h.Deploy).Methods("POST")
	api.HandleFunc("/camera/{id}/upload_config", h.UploadConfig).Methods("POST")
	api.HandleFunc("/camera/{id}/active-config", h.ActiveConfig).Methods("GET")
	api.HandleFunc("/camera/{id}/portable-config", h.PortableConfig).Methods("GET")
	api.HandleFunc("/camera/{id}/status", h.Status).Methods("GET")
	api.HandleFunc("/deployments/active", h.ActiveDeployments).Methods("GET")
	api.HandleFunc("/configs", h.ConfigFiles).Methods("GET")
	api.HandleFunc("/configs/{filename}", h.ConfigFile).Methods("GET")
}

type createRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type polygonRequest struct {
	Points []geometry.NormalizedPoint `json:"points"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	cam, err := h.service.Create(r.Context(), req.Name, req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	slog.Info("camera created", "camera", cam.ID, "operator", auth.OperatorIDFromContext(r.Context()))
	writeJSON(w, http.StatusCreated, cam)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	cameras, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cameras)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	cam, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cam)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}
	slog.Info("camera deleted", "camera", id, "operator", auth.OperatorIDFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SavePolygon(w http.ResponseWriter, r *http.Request) {
	var req polygonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.service.SavePolygon(r.Context(), mux.Vars(r)["id"], req.Points); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Polygon saved"})
}

func (h *Handler) SaveLine(w http.ResponseWriter, r *http.Request) {
	var line geometry.NormalizedLine
	if err := json.NewDecoder(r.Body).Decode(&line); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.service.SaveLine(r.Context(), mux.Vars(r)["id"], line); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Line saved"})
}

func (h *Handler) Deploy(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.Deploy(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Deployment triggered. Rule engine restarted.",
		"deployment_id": cfg.DeploymentID,
	})
}

func (h *Handler) UploadConfig(w http.ResponseWriter, r *http.Request) {
	width, height, ok := dimensions(w, r, false)
	if !ok {
		return
	}
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	cfg, err := h.service.ImportConfig(r.Context(), mux.Vars(r)["id"], req, width, height)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Configuration uploaded and engine restarted successfully!",
		"deployment_id": cfg.DeploymentID,
	})
}

func (h *Handler) ActiveConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.ActiveConfig(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) PortableConfig(w http.ResponseWriter, r *http.Request) {
	width, height, ok := dimensions(w, r, true)
	if !ok {
		return
	}
	p, err := h.service.PortableConfig(r.Context(), mux.Vars(r)["id"], width, height)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	data, contentType, err := p.Encode(r.URL.Query().Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) ActiveDeployments(w http.ResponseWriter, r *http.Request) {
	deployments, err := h.service.ActiveDeployments(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deployments)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) ConfigFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.service.ConfigFiles(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// ConfigFile serves a config file byte for byte, as the detector reads it.
func (h *Handler) ConfigFile(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.ConfigFile(r.Context(), mux.Vars(r)["filename"])
	if err != nil {
		handleServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// dimensions reads the width and height query parameters.
func dimensions(w http.ResponseWriter, r *http.Request, required bool) (int, int, bool) {
	q := r.URL.Query()
	if !required && q.Get("width") == "" && q.Get("height") == "" {
		return 0, 0, true
	}
	width, errW := strconv.Atoi(q.Get("width"))
	height, errH := strconv.Atoi(q.Get("height"))
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "width and height must be positive integers"})
		return 0, 0, false
	}
	return width, height, true
}

// Detail messages shown to operators as-is.
const (
	DetailNotFound       = "Camera not found"
	DetailNameTaken      = "Camera name exists"
	DetailIncompleteRule = "Please configure both polygon and line before deploying"
	DetailNotActive      = "No active configuration found for this camera"
	DetailNoConfigFile   = "Config file not found"
)

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": DetailNotFound})
	case errors.Is(err, ErrNameTaken):
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": DetailNameTaken})
	case errors.Is(err, ErrInvalidRule):
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
	case errors.Is(err, deploy.ErrIncompleteRule):
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": DetailIncompleteRule})
	case errors.Is(err, deploy.ErrNotActive):
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": DetailNotActive})
	case errors.Is(err, deploy.ErrNoConfigFile):
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": DetailNoConfigFile})
	case errors.Is(err, deploy.ErrInvalidConfig):
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

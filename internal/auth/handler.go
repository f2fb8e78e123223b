package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// bcrypt only hashes the first 72 bytes of a password.
const (
	minPasswordLen = 8
	maxPasswordLen = 72
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}
	username, err := NormalizeUsername(req.Username)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	switch {
	case len(req.Password) < minPasswordLen:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	case len(req.Password) > maxPasswordLen:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at most 72 bytes"})
		return
	case strings.EqualFold(strings.TrimSpace(req.Password), username):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must not match the username"})
		return
	}

	result, err := h.service.Register(r.Context(), username, req.Password, req.DisplayName)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "username already registered"})
			return
		}
		slog.Error("register failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	slog.Info("operator registered", "operator", result.Operator.ID, "username", result.Operator.Username)
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}

	username, err := NormalizeUsername(req.Username)
	if err != nil {
		slog.Warn("login rejected", "reason", "malformed username", "remote", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	result, err := h.service.Login(r.Context(), username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			slog.Warn("login rejected", "username", username, "remote", r.RemoteAddr)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		slog.Error("login failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Me returns the operator behind the request's token.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	op, err := h.service.GetOperator(r.Context(), OperatorIDFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, ErrOperatorNotFound) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "operator no longer exists"})
			return
		}
		slog.Error("get operator failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

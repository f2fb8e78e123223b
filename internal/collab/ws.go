package collab

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/inamate/tripwire/internal/auth"
)

// WSHandler upgrades GET /ws/camera/{id}?token= to a room connection.
type WSHandler struct {
	hub            *Hub
	auth           *auth.Service
	cameraExists   func(ctx context.Context, id string) error
	originPatterns []string
}

func NewWSHandler(hub *Hub, authSvc *auth.Service, cameraExists func(ctx context.Context, id string) error, originPatterns []string) *WSHandler {
	return &WSHandler{hub: hub, auth: authSvc, cameraExists: cameraExists, originPatterns: originPatterns}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cameraID := mux.Vars(r)["id"]

	// Browsers cannot set headers on a websocket handshake.
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	operatorID, err := h.auth.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	op, err := h.auth.GetOperator(r.Context(), operatorID)
	if err != nil {
		http.Error(w, "operator not found", http.StatusUnauthorized)
		return
	}
	if err := h.cameraExists(r.Context(), cameraID); err != nil {
		http.Error(w, "camera not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := NewClient(h.hub, conn, op.ID, op.DisplayName, cameraID, uuid.New().String())
	h.hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

// Package collab lets several operators edit the same camera's rule at once.
// Each camera has a room; connections in a room see each other's pointer
// and drag state and are told when the rule is saved or deployed.
package collab

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/inamate/tripwire/internal/deploy"
)

// room is the set of editors connected to one camera.
type room struct {
	clients  map[string]*Client // clientID -> client
	presence *presenceSet
}

func newRoom() *room {
	return &room{clients: make(map[string]*Client), presence: newPresenceSet()}
}

type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*room // cameraID -> room
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]*room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.done:
			h.closeAll()
			return
		}
	}
}

// Stop disconnects every client and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.closeSend()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// RoomSize returns the number of connections editing a camera.
func (h *Hub) RoomSize(cameraID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if rm, ok := h.rooms[cameraID]; ok {
		return len(rm.clients)
	}
	return 0
}

// RuleSaved broadcasts a rule.saved message to the camera's room.
func (h *Hub) RuleSaved(cameraID, part string) {
	h.broadcastToRoom(cameraID, newMessage(TypeRuleSaved, cameraID, RuleSavedPayload{Part: part}), "")
}

// RuleDeployed broadcasts a rule.deployed message to the camera's room.
func (h *Hub) RuleDeployed(cfg deploy.ActiveConfig) {
	msg := newMessage(TypeRuleDeployed, cfg.CameraID, RuleDeployedPayload{
		DeploymentID: cfg.DeploymentID,
		DeployedAt:   cfg.DeployedAt.Format(time.RFC3339),
	})
	h.broadcastToRoom(cfg.CameraID, msg, "")
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	rm, ok := h.rooms[client.CameraID]
	if !ok {
		rm = newRoom()
		h.rooms[client.CameraID] = rm
	}
	rm.clients[client.ClientID] = client
	h.mu.Unlock()

	client.Send(newMessage(TypeWelcome, client.CameraID, WelcomePayload{ClientID: client.ClientID}))
	client.Send(newMessage(TypePresenceState, client.CameraID, PresenceStatePayload{Presences: rm.presence.snapshot()}))

	joinMsg := newMessage(TypePresenceJoin, client.CameraID, PresenceJoinPayload{
		ClientID:    client.ClientID,
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	joinMsg.UserID = client.UserID
	h.broadcastToRoom(client.CameraID, joinMsg, client.ClientID)

	slog.Info("client joined", "user", client.UserID, "camera", client.CameraID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	rm, ok := h.rooms[client.CameraID]
	if !ok || rm.clients[client.ClientID] != client {
		h.mu.Unlock()
		return
	}

	delete(rm.clients, client.ClientID)
	client.closeSend()
	rm.presence.remove(client.ClientID)

	if len(rm.clients) == 0 {
		delete(h.rooms, client.CameraID)
	}
	h.mu.Unlock()

	leaveMsg := newMessage(TypePresenceLeave, client.CameraID, PresenceLeavePayload{
		ClientID: client.ClientID,
		UserID:   client.UserID,
	})
	leaveMsg.UserID = client.UserID
	h.broadcastToRoom(client.CameraID, leaveMsg, "")

	slog.Info("client left", "user", client.UserID, "camera", client.CameraID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, rm := range h.rooms {
		for _, c := range rm.clients {
			c.closeSend()
		}
		delete(h.rooms, id)
	}
}

// updatePresence records sender's presence and fans it out to the rest of
// the room.
func (h *Hub) updatePresence(sender *Client, presence PresencePayload) {
	h.mu.RLock()
	rm, ok := h.rooms[sender.CameraID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	presence.Contested = rm.presence.update(sender.ClientID, presence)

	out := newMessage(TypePresenceUpdate, sender.CameraID, presence)
	out.UserID = sender.UserID
	out.ClientID = sender.ClientID
	h.broadcastToRoom(sender.CameraID, out, sender.ClientID)
}

func (h *Hub) broadcastToRoom(cameraID string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	rm, ok := h.rooms[cameraID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(rm.clients))
	for _, c := range rm.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "type", msg.Type, "error", err)
		return
	}
	for _, c := range clients {
		c.enqueue(data)
	}
}

package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/inamate/tripwire/internal/editor"
	"github.com/inamate/tripwire/internal/geometry"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 16 * 1024
	sendBuffer = 64

	// presenceInterval bounds how often one editor's pointer is fanned out
	// to the room. Updates that start or end a drag or switch mode always
	// go through.
	presenceInterval = 40 * time.Millisecond
)

// Client is one editor connected to a camera room.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	UserID      string
	DisplayName string
	CameraID    string
	ClientID    string

	mu     sync.Mutex
	closed bool

	// read side only
	last     PresencePayload
	lastSent time.Time
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, displayName, cameraID, clientID string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		UserID:      userID,
		DisplayName: displayName,
		CameraID:    cameraID,
		ClientID:    clientID,
	}
}

// ReadPump consumes editor messages until the connection ends.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()
	c.conn.SetReadLimit(maxMsgSize)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				slog.Debug("editor disconnected", "camera", c.CameraID, "client", c.ClientID, "error", err)
			}
			return
		}
		if err := c.receive(data, time.Now()); err != nil {
			slog.Warn("rejected editor message", "camera", c.CameraID, "client", c.ClientID, "error", err)
			c.Send(newMessage(TypeError, c.CameraID, map[string]string{"error": err.Error()}))
		}
	}
}

var errUnknownType = errors.New("unknown message type")

// receive decodes one frame. Only presence updates are accepted from
// editors; rule changes travel through the HTTP API.
func (c *Client) receive(data []byte, now time.Time) error {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	if msg.Type != TypePresenceUpdate {
		return fmt.Errorf("%w %q", errUnknownType, msg.Type)
	}
	var p PresencePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return fmt.Errorf("invalid presence payload: %w", err)
	}
	if err := sanitizePresence(&p); err != nil {
		return err
	}
	p.UserID = c.UserID
	p.DisplayName = c.DisplayName

	if !c.shouldForward(p, now) {
		return nil
	}
	c.last, c.lastSent = p, now
	c.hub.updatePresence(c, p)
	return nil
}

// shouldForward throttles pointer motion but never drops a change of drag
// target or mode.
func (c *Client) shouldForward(p PresencePayload, now time.Time) bool {
	if c.lastSent.IsZero() || now.Sub(c.lastSent) >= presenceInterval {
		return true
	}
	return p.Mode != c.last.Mode || !sameIndex(p.Dragging, c.last.Dragging)
}

// sanitizePresence canonicalizes the mode name and drops a cursor that is
// off the surface.
func sanitizePresence(p *PresencePayload) error {
	if p.Mode != "" {
		m, err := editor.ParseMode(p.Mode)
		if err != nil {
			return err
		}
		p.Mode = m.String()
	}
	if p.Cursor != nil && !(geometry.NormalizedPoint{X: p.Cursor.X, Y: p.Cursor.Y}).Valid() {
		p.Cursor = nil
	}
	if p.Dragging != nil && *p.Dragging < 0 {
		p.Dragging = nil
	}
	return nil
}

func sameIndex(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// WritePump delivers queued frames and keeps the connection alive.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				slog.Debug("write to editor failed", "client", c.ClientID, "error", err)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// Send queues msg for this client.
func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "type", msg.Type, "error", err)
		return
	}
	c.enqueue(data)
}

// enqueue drops the frame when the client has fallen behind; presence is
// superseded by the next update anyway.
func (c *Client) enqueue(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
		slog.Warn("editor send buffer full, dropping frame", "camera", c.CameraID, "client", c.ClientID)
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

package collab

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"

	"github.com/inamate/tripwire/internal/auth"
	"github.com/inamate/tripwire/internal/deploy"
	"github.com/inamate/tripwire/internal/store"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

type fixture struct {
	hub    *Hub
	srv    *httptest.Server
	tokens map[string]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "collab.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)

	authSvc := auth.NewService(db, "collab-secret")
	tokens := make(map[string]string)
	for _, name := range []string{"ana", "bo"} {
		res, err := authSvc.Register(ctx, name, "password123", strings.ToUpper(name))
		if err != nil {
			t.Fatal(err)
		}
		tokens[name] = res.Token
	}

	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	exists := func(ctx context.Context, id string) error {
		if id == "cam_gate" {
			return nil
		}
		return errors.New("not found")
	}
	r := mux.NewRouter()
	r.Handle("/ws/camera/{id}", NewWSHandler(hub, authSvc, exists, nil))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &fixture{hub: hub, srv: srv, tokens: tokens}
}

func (f *fixture) dial(t *testing.T, camera, user string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/camera/" + camera + "?token=" + f.tokens[user]
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func expect(t *testing.T, conn *websocket.Conn, typ string) *Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read %s: %v", typ, err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != typ {
		t.Fatalf("got %s (%s), want %s", msg.Type, msg.Payload, typ)
	}
	return &msg
}

func TestRoomPresenceAndRuleEvents(t *testing.T) {
	f := newFixture(t)

	a := f.dial(t, "cam_gate", "ana")
	expect(t, a, TypeWelcome)
	expect(t, a, TypePresenceState)

	b := f.dial(t, "cam_gate", "bo")
	expect(t, b, TypeWelcome)
	expect(t, b, TypePresenceState)

	join := expect(t, a, TypePresenceJoin)
	var jp PresenceJoinPayload
	if err := json.Unmarshal(join.Payload, &jp); err != nil {
		t.Fatal(err)
	}
	if jp.DisplayName != "BO" {
		t.Fatalf("join = %+v", jp)
	}

	dragging := 2
	update, _ := json.Marshal(Message{
		Type:    TypePresenceUpdate,
		Payload: mustJSON(t, PresencePayload{Cursor: &CursorPos{X: 0.4, Y: 0.6}, Dragging: &dragging, Mode: "polygon", DisplayName: "spoofed"}),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.Write(ctx, websocket.MessageText, update); err != nil {
		t.Fatal(err)
	}
	got := expect(t, a, TypePresenceUpdate)
	var pp PresencePayload
	if err := json.Unmarshal(got.Payload, &pp); err != nil {
		t.Fatal(err)
	}
	if pp.DisplayName != "BO" || pp.Dragging == nil || *pp.Dragging != 2 || pp.Cursor.X != 0.4 {
		t.Fatalf("presence = %+v", pp)
	}

	if n := f.hub.RoomSize("cam_gate"); n != 2 {
		t.Fatalf("room size = %d", n)
	}

	f.hub.RuleSaved("cam_gate", "zone")
	for _, conn := range []*websocket.Conn{a, b} {
		msg := expect(t, conn, TypeRuleSaved)
		var rs RuleSavedPayload
		if err := json.Unmarshal(msg.Payload, &rs); err != nil || rs.Part != "zone" {
			t.Fatalf("rule.saved = %s", msg.Payload)
		}
	}

	f.hub.RuleDeployed(deploy.ActiveConfig{CameraID: "cam_gate", DeploymentID: "dep_1", DeployedAt: time.Now()})
	msg := expect(t, a, TypeRuleDeployed)
	if msg.CameraID != "cam_gate" {
		t.Fatalf("camera = %q", msg.CameraID)
	}
	expect(t, b, TypeRuleDeployed)

	b.Close(websocket.StatusNormalClosure, "")
	expect(t, a, TypePresenceLeave)
}

func TestRoomsAreIsolated(t *testing.T) {
	f := newFixture(t)
	a := f.dial(t, "cam_gate", "ana")
	expect(t, a, TypeWelcome)
	expect(t, a, TypePresenceState)

	f.hub.RuleSaved("cam_other", "line")
	f.hub.RuleSaved("cam_gate", "line")
	msg := expect(t, a, TypeRuleSaved)
	if msg.CameraID != "cam_gate" {
		t.Fatalf("camera = %q", msg.CameraID)
	}
}

func TestHandshakeRejects(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		path string
		want int
	}{
		{"no token", "/ws/camera/cam_gate", http.StatusUnauthorized},
		{"bad token", "/ws/camera/cam_gate?token=nope", http.StatusUnauthorized},
		{"unknown camera", "/ws/camera/cam_x?token=" + f.tokens["ana"], http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(f.srv.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestStopDisconnects(t *testing.T) {
	f := newFixture(t)
	a := f.dial(t, "cam_gate", "ana")
	expect(t, a, TypeWelcome)
	expect(t, a, TypePresenceState)

	f.hub.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, _, err := a.Read(ctx); err == nil {
		t.Fatal("expected connection to close")
	}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestSanitizePresence(t *testing.T) {
	neg := -1
	p := PresencePayload{Cursor: &CursorPos{X: 1.2, Y: 0.5}, Dragging: &neg, Mode: "Zone"}
	if err := sanitizePresence(&p); err != nil {
		t.Fatal(err)
	}
	if p.Cursor != nil || p.Dragging != nil || p.Mode != "polygon" {
		t.Fatalf("presence = %+v", p)
	}

	p = PresencePayload{Mode: "circle"}
	if err := sanitizePresence(&p); err == nil {
		t.Fatal("expected unknown mode error")
	}
}

func TestReceiveThrottlesPointerMotion(t *testing.T) {
	c := NewClient(NewHub(), nil, "op_1", "Ana", "cam_gate", "c1")
	frame := func(x float64, dragging *int) []byte {
		data, _ := json.Marshal(Message{
			Type:    TypePresenceUpdate,
			Payload: mustJSON(t, PresencePayload{Cursor: &CursorPos{X: x, Y: 0.5}, Dragging: dragging, Mode: "line"}),
		})
		return data
	}
	t0 := time.Unix(100, 0)
	idx := 1

	steps := []struct {
		at       time.Duration
		x        float64
		dragging *int
		sent     bool
	}{
		{0, 0.1, nil, true},
		{10 * time.Millisecond, 0.2, nil, false},
		{20 * time.Millisecond, 0.3, &idx, true},
		{30 * time.Millisecond, 0.4, &idx, false},
		{20*time.Millisecond + presenceInterval, 0.5, &idx, true},
		{70 * time.Millisecond, 0.6, nil, true},
	}
	for i, s := range steps {
		before := c.lastSent
		if err := c.receive(frame(s.x, s.dragging), t0.Add(s.at)); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if sent := c.lastSent != before; sent != s.sent {
			t.Fatalf("step %d: forwarded = %v, want %v", i, sent, s.sent)
		}
	}
	if c.last.Cursor.X != 0.6 || c.last.UserID != "op_1" {
		t.Fatalf("last = %+v", c.last)
	}
}

func TestReceiveRejectsEditorRuleMessages(t *testing.T) {
	c := NewClient(NewHub(), nil, "op_1", "Ana", "cam_gate", "c1")
	data, _ := json.Marshal(Message{Type: TypeRuleSaved, Payload: json.RawMessage(`{"part":"zone"}`)})
	if err := c.receive(data, time.Now()); !errors.Is(err, errUnknownType) {
		t.Fatalf("err = %v", err)
	}
	if err := c.receive([]byte("{"), time.Now()); err == nil || !strings.Contains(err.Error(), "invalid message") {
		t.Fatalf("err = %v", err)
	}
}

func TestPresenceContestedVertex(t *testing.T) {
	ps := newPresenceSet()
	one, two := 1, 2
	if ps.update("a", PresencePayload{Mode: "polygon", Dragging: &one}) {
		t.Fatal("first drag contested")
	}
	if !ps.update("b", PresencePayload{Mode: "polygon", Dragging: &one}) {
		t.Fatal("same vertex not contested")
	}
	if ps.update("b", PresencePayload{Mode: "polygon", Dragging: &two}) {
		t.Fatal("other vertex contested")
	}
	if ps.update("c", PresencePayload{Mode: "line", Dragging: &one}) {
		t.Fatal("other shape contested")
	}
	ps.remove("a")
	if ps.update("b", PresencePayload{Mode: "polygon", Dragging: &one}) {
		t.Fatal("vertex still held after remove")
	}
	if snap := ps.snapshot(); len(snap) != 2 || *snap["c"].Dragging != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

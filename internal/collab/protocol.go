package collab

import "encoding/json"

type Message struct {
	Type     string          `json:"type"`
	CameraID string          `json:"cameraId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// PresencePayload is what one editor shows the others: where its pointer
// is, which vertex it is dragging and which shape it is editing. Cursor is
// in normalized space so peers with different surface sizes agree.
type PresencePayload struct {
	Cursor      *CursorPos `json:"cursor,omitempty"`
	Dragging    *int       `json:"dragging,omitempty"`
	Mode        string     `json:"mode,omitempty"`
	Contested   bool       `json:"contested,omitempty"` // another editor holds the same vertex
	UserID      string     `json:"userId,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
}

type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	ClientID    string `json:"clientId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	ClientID string `json:"clientId"`
	UserID   string `json:"userId"`
}

type WelcomePayload struct {
	ClientID string `json:"clientId"`
}

// RuleSavedPayload tells editors that a rule part changed on the server.
type RuleSavedPayload struct {
	Part string `json:"part"`
}

// RuleDeployedPayload tells editors that a rule went live.
type RuleDeployedPayload struct {
	DeploymentID string `json:"deploymentId"`
	DeployedAt   string `json:"deployedAt"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Server pushed rule changes
	TypeRuleSaved    = "rule.saved"
	TypeRuleDeployed = "rule.deployed"
)

func newMessage(typ, cameraID string, payload any) *Message {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("null")
	}
	return &Message{Type: typ, CameraID: cameraID, Payload: data}
}

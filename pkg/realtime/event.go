package realtime

import (
	"encoding/json"
	"strings"

	"github.com/plankhq/plank/pkg/models"
)

// Event names shared by the hub and the sync client. Requests flow
// client to server, everything else is relayed or broadcast.
const (
	EventPresenceJoin      = "presence:join"
	EventPresenceLeave     = "presence:leave"
	EventPresenceUpdate    = "presence:update"
	EventPresenceHeartbeat = "presence:heartbeat"

	EventTaskCreated = "task:created"
	EventTaskUpdated = "task:updated"
	EventTaskDeleted = "task:deleted"

	EventColumnCreated   = "column:created"
	EventColumnUpdated   = "column:updated"
	EventColumnDeleted   = "column:deleted"
	EventColumnReordered = "column:reordered"

	EventCursorMove  = "cursor:move"
	EventCursorLeave = "cursor:leave"

	EventStrokeStart = "stroke:start"
	EventStrokePoint = "stroke:point"
	EventStrokeEnd   = "stroke:end"
	EventStrokeUndo  = "stroke:undo"
	EventCanvasClear = "canvas:clear"
)

// Envelope frames every message on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope marshals data into an envelope. Marshal failures are a
// programming error on the caller's side and surface as an error here
// rather than a panic.
func NewEnvelope(event string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: raw}, nil
}

// PresenceRequest is the payload of presence:join and presence:leave.
type PresenceRequest struct {
	ProjectID string `json:"projectId"`
}

// PresenceUpdate is broadcast to a whole room whenever its roster
// changes, including to the member that caused the change.
type PresenceUpdate struct {
	ProjectID string              `json:"projectId"`
	Users     []models.OnlineUser `json:"users"`
}

// HeartbeatAck is the unicast reply to presence:heartbeat.
type HeartbeatAck struct {
	OK bool `json:"ok"`
}

// CursorMove carries a peer's pointer position and, mid drag, the item
// being dragged so peers can render a soft lock on it.
type CursorMove struct {
	UserID        string            `json:"userId"`
	User          models.OnlineUser `json:"user"`
	X             float64           `json:"x"`
	Y             float64           `json:"y"`
	IsDragging    bool              `json:"isDragging"`
	DragTaskID    string            `json:"dragTaskId,omitempty"`
	DragTaskTitle string            `json:"dragTaskTitle,omitempty"`
}

// CursorLeave announces an explicit pointer departure. Peers must also
// expire cursors by staleness, because an ungraceful disconnect sends
// nothing.
type CursorLeave struct {
	UserID string `json:"userId"`
}

// actor is the identity document the hub stamps into relayed payloads.
type actor struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// stampIdentity rewrites the identity fields of a relayed payload with
// the sender's verified identity. Whatever the client put there is
// discarded: identity on the wire is always server-asserted.
func stampIdentity(event string, data json.RawMessage, user models.User, color string) (json.RawMessage, error) {
	payload := map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
	}

	who := actor{ID: user.ID.String(), Email: user.Email, Name: user.Name}

	switch {
	case event == EventCursorMove:
		payload["userId"] = user.ID.String()
		payload["user"] = models.OnlineUser{ID: user.ID, Email: user.Email, Name: user.Name, Color: color}
	case event == EventCursorLeave:
		payload["userId"] = user.ID.String()
	case strings.HasSuffix(event, ":created"):
		payload["createdBy"] = who
	case strings.HasSuffix(event, ":updated"), strings.HasSuffix(event, ":reordered"):
		payload["updatedBy"] = who
	case strings.HasSuffix(event, ":deleted"):
		payload["deletedBy"] = who
	default:
		// stroke and canvas events carry only a generic user field
		payload["user"] = who
	}

	return json.Marshal(payload)
}

// projectIDOf pulls the room key out of a request payload, or "" when
// the payload has none.
func projectIDOf(data json.RawMessage) string {
	var req PresenceRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return ""
	}
	return req.ProjectID
}

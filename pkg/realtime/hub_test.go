package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plankhq/plank/pkg/auth"
	"github.com/plankhq/plank/pkg/models"
)

const testSecret = "hub-test-secret"

func newTestServer(t *testing.T) (*httptest.Server, *auth.HMACTokens) {
	t.Helper()
	tokens := auth.NewHMACTokens([]byte(testSecret), time.Hour)
	hub := NewHub(NewRegistry(), tokens, zerolog.Nop())
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return srv, tokens
}

func wsURL(srv *httptest.Server, token string) string {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	if token != "" {
		url += "?token=" + token
	}
	return url
}

func dial(t *testing.T, srv *httptest.Server, tokens *auth.HMACTokens, user models.User) *websocket.Conn {
	t.Helper()
	token, err := tokens.Issue(user)
	require.NoError(t, err)

	ws, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendEvent(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	env, err := NewEnvelope(event, data)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(env))
}

// readUntil reads envelopes until one matches the wanted event,
// discarding interleaved presence traffic.
func readUntil(t *testing.T, ws *websocket.Conn, event string) Envelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var env Envelope
		require.NoError(t, ws.ReadJSON(&env), "waiting for %s", event)
		if env.Event == event {
			return env
		}
	}
}

func expectSilence(t *testing.T, ws *websocket.Conn, d time.Duration) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(d)))
	var env Envelope
	err := ws.ReadJSON(&env)
	require.Error(t, err, "expected no message, got %s", env.Event)
	netErr, ok := err.(interface{ Timeout() bool })
	require.True(t, ok && netErr.Timeout(), "expected read timeout, got %v", err)
}

func TestHandshakeRejectsBadTokens(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, token := range []string{"", "garbage"} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestJoinBroadcastsRosterIncludingJoiner(t *testing.T) {
	srv, tokens := newTestServer(t)
	alice := newUser("alice")
	ws := dial(t, srv, tokens, alice)

	sendEvent(t, ws, EventPresenceJoin, PresenceRequest{ProjectID: "project-1"})

	env := readUntil(t, ws, EventPresenceUpdate)
	var update PresenceUpdate
	require.NoError(t, json.Unmarshal(env.Data, &update))
	assert.Equal(t, "project-1", update.ProjectID)
	require.Len(t, update.Users, 1)
	assert.Equal(t, alice.ID, update.Users[0].ID)
	assert.NotEmpty(t, update.Users[0].Color)
}

func TestHeartbeatIsUnicastEcho(t *testing.T) {
	srv, tokens := newTestServer(t)
	ws := dial(t, srv, tokens, newUser("alice"))

	// A heartbeat before any join is a valid no-op, not an error.
	sendEvent(t, ws, EventPresenceHeartbeat, struct{}{})

	env := readUntil(t, ws, EventPresenceHeartbeat)
	var ack HeartbeatAck
	require.NoError(t, json.Unmarshal(env.Data, &ack))
	assert.True(t, ack.OK)
}

func TestMutationRelayExcludesSenderAndStampsIdentity(t *testing.T) {
	srv, tokens := newTestServer(t)
	alice := newUser("alice")
	bob := newUser("bob")

	wsAlice := dial(t, srv, tokens, alice)
	wsBob := dial(t, srv, tokens, bob)

	sendEvent(t, wsAlice, EventPresenceJoin, PresenceRequest{ProjectID: "p"})
	sendEvent(t, wsBob, EventPresenceJoin, PresenceRequest{ProjectID: "p"})
	waitForRosterSize(t, wsAlice, "p", 2)
	waitForRosterSize(t, wsBob, "p", 2)

	// The client-supplied createdBy must be discarded in favor of the
	// authenticated identity.
	sendEvent(t, wsAlice, EventTaskCreated, map[string]any{
		"projectId": "p",
		"task":      map[string]any{"id": models.NewTaskID(), "title": "write spec"},
		"createdBy": map[string]any{"id": "forged", "name": "Mallory"},
	})

	env := readUntil(t, wsBob, EventTaskCreated)
	var payload struct {
		ProjectID string `json:"projectId"`
		CreatedBy struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"createdBy"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "p", payload.ProjectID)
	assert.Equal(t, alice.ID.String(), payload.CreatedBy.ID)
	assert.Equal(t, alice.Email, payload.CreatedBy.Email)
	assert.Equal(t, alice.Name, payload.CreatedBy.Name)

	// The sender never receives its own echo.
	expectSilence(t, wsAlice, 300*time.Millisecond)
}

func TestCursorRelayCarriesDragPayload(t *testing.T) {
	srv, tokens := newTestServer(t)
	alice := newUser("alice")
	bob := newUser("bob")

	wsAlice := dial(t, srv, tokens, alice)
	wsBob := dial(t, srv, tokens, bob)

	sendEvent(t, wsAlice, EventPresenceJoin, PresenceRequest{ProjectID: "p"})
	sendEvent(t, wsBob, EventPresenceJoin, PresenceRequest{ProjectID: "p"})
	waitForRosterSize(t, wsAlice, "p", 2)
	waitForRosterSize(t, wsBob, "p", 2)

	sendEvent(t, wsAlice, EventCursorMove, map[string]any{
		"x": 10.5, "y": 20.0,
		"isDragging":    true,
		"dragTaskId":    "task-9",
		"dragTaskTitle": "ship it",
	})

	env := readUntil(t, wsBob, EventCursorMove)
	var cursor CursorMove
	require.NoError(t, json.Unmarshal(env.Data, &cursor))
	assert.Equal(t, alice.ID.String(), cursor.UserID)
	assert.Equal(t, alice.ID, cursor.User.ID)
	assert.Equal(t, ColorFor(alice.ID), cursor.User.Color)
	assert.True(t, cursor.IsDragging)
	assert.Equal(t, "task-9", cursor.DragTaskID)
	assert.Equal(t, "ship it", cursor.DragTaskTitle)
}

func TestJoiningSecondRoomNotifiesVacatedRoom(t *testing.T) {
	srv, tokens := newTestServer(t)
	alice := newUser("alice")
	bob := newUser("bob")

	wsAlice := dial(t, srv, tokens, alice)
	wsBob := dial(t, srv, tokens, bob)

	sendEvent(t, wsAlice, EventPresenceJoin, PresenceRequest{ProjectID: "room-a"})
	sendEvent(t, wsBob, EventPresenceJoin, PresenceRequest{ProjectID: "room-a"})

	// Wait until alice sees both members.
	waitForRosterSize(t, wsAlice, "room-a", 2)

	sendEvent(t, wsBob, EventPresenceJoin, PresenceRequest{ProjectID: "room-b"})

	// Alice gets a refreshed room-a roster without bob.
	update := waitForRosterSize(t, wsAlice, "room-a", 1)
	assert.Equal(t, alice.ID, update.Users[0].ID)
}

func TestDisconnectBroadcastsRosterToRemainingMembers(t *testing.T) {
	srv, tokens := newTestServer(t)
	alice := newUser("alice")
	bob := newUser("bob")

	wsAlice := dial(t, srv, tokens, alice)
	wsBob := dial(t, srv, tokens, bob)

	sendEvent(t, wsAlice, EventPresenceJoin, PresenceRequest{ProjectID: "p"})
	sendEvent(t, wsBob, EventPresenceJoin, PresenceRequest{ProjectID: "p"})
	waitForRosterSize(t, wsAlice, "p", 2)

	wsBob.Close()

	update := waitForRosterSize(t, wsAlice, "p", 1)
	assert.Equal(t, alice.ID, update.Users[0].ID)
}

func TestMutationBeforeJoinIsDropped(t *testing.T) {
	srv, tokens := newTestServer(t)
	ws := dial(t, srv, tokens, newUser("alice"))

	sendEvent(t, ws, EventTaskCreated, map[string]any{"projectId": "p"})

	// The connection stays healthy: the stray mutation is silently
	// ignored and a heartbeat still round-trips.
	sendEvent(t, ws, EventPresenceHeartbeat, struct{}{})
	readUntil(t, ws, EventPresenceHeartbeat)
}

func waitForRosterSize(t *testing.T, ws *websocket.Conn, projectID string, n int) PresenceUpdate {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var env Envelope
		require.NoError(t, ws.ReadJSON(&env), "waiting for %s roster of size %d", projectID, n)
		if env.Event != EventPresenceUpdate {
			continue
		}
		var update PresenceUpdate
		require.NoError(t, json.Unmarshal(env.Data, &update))
		if update.ProjectID == projectID && len(update.Users) == n {
			return update
		}
	}
}

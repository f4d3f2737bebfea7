// Package realtime implements the room-scoped relay protocol behind
// collaborative boards: presence rosters, cursor sharing, and
// best-effort fan-out of entity mutations.
//
// The hub never interprets, validates, or persists relayed payloads.
// Persistence happens through the separate CRUD API; the relay is a
// hint that lets peers update optimistically before their next fetch.
// Delivery is send-and-forget: there is no acknowledgement, no retry,
// and no buffering for absent peers. The transport preserves the order
// of events from a single sender, but there is no cross-sender
// ordering: concurrent edits land in arrival order at each peer.
package realtime

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/plankhq/plank/internal/rand"
	"github.com/plankhq/plank/pkg/auth"
	"github.com/plankhq/plank/pkg/models"
)

const (
	connIDLength = 16

	// sendBuffer bounds the per-connection outbound queue. A peer that
	// cannot drain it loses messages rather than stalling the room.
	sendBuffer = 256

	writeWait = 10 * time.Second
)

// Hub owns the websocket endpoint: it authenticates handshakes, tracks
// connections, and applies the relay policy on top of the Registry.
type Hub struct {
	registry *Registry
	verifier auth.TokenVerifier
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*conn
}

// conn is one live websocket connection with its verified identity.
// All writes go through the buffered send channel and a single write
// pump, because gorilla connections allow only one concurrent writer.
type conn struct {
	id   string
	user models.User
	ws   *websocket.Conn
	send chan Envelope

	mu     sync.Mutex
	closed bool
}

// enqueue hands an envelope to the write pump. It reports false when
// the connection is closed or its queue is full; either way the message
// is dropped, per the send-and-forget delivery model.
func (c *conn) enqueue(env Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func NewHub(registry *Registry, verifier auth.TokenVerifier, logger zerolog.Logger) *Hub {
	return &Hub{
		registry: registry,
		verifier: verifier,
		logger:   logger.With().Str("component", "hub").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:    4096,
			WriteBufferSize:   4096,
			EnableCompression: true,
			// The browser client connects cross-origin from the app host.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[string]*conn),
	}
}

// ServeHTTP upgrades a handshake into a live connection.
//
// The credential travels in a connection-time field: either the token
// query parameter or an Authorization bearer header. A missing,
// malformed, expired, or unresolvable token terminates the handshake
// with no message back; the failure is observable to the client only as
// a connection that failed to establish, and is logged server-side.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.Verify(bearerToken(r))
	if err != nil {
		h.logger.Warn().Str("remote", r.RemoteAddr).Msg("rejected handshake: bad token")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}

	c := &conn{
		id:   rand.NewConnectionID(connIDLength),
		user: user,
		ws:   ws,
		send: make(chan Envelope, sendBuffer),
	}

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	h.logger.Debug().Str("conn", c.id).Str("user", user.ID.String()).Msg("connected")

	go h.writePump(c)
	h.readLoop(c)
}

func bearerToken(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}

// readLoop drives the connection until the transport drops, then runs
// the implicit leave.
func (h *Hub) readLoop(c *conn) {
	defer h.disconnect(c)

	for {
		var env Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Str("conn", c.id).Err(err).Msg("read error")
			}
			return
		}
		h.dispatch(c, env)
	}
}

func (h *Hub) dispatch(c *conn, env Envelope) {
	switch env.Event {
	case EventPresenceJoin:
		h.handleJoin(c, env)
	case EventPresenceLeave:
		h.handleLeave(c, env)
	case EventPresenceHeartbeat:
		// Pure liveness echo: no registry side effects, and missed
		// heartbeats never evict a connection server-side.
		h.reply(c, EventPresenceHeartbeat, HeartbeatAck{OK: true})
	default:
		h.relay(c, env)
	}
}

// handleJoin moves the connection into a room. If it was in another
// room, that room's remaining members get a refreshed roster first.
// The new room's roster goes to every member including the joiner, so
// the joiner renders the list without a special case.
func (h *Hub) handleJoin(c *conn, env Envelope) {
	roomID := projectIDOf(env.Data)
	if roomID == "" {
		return
	}

	if vacated := h.registry.LeaveByConnection(c.id); vacated != "" && vacated != roomID {
		h.broadcastRoster(vacated)
	}

	users := h.registry.Join(c.id, roomID, c.user)
	h.broadcastRosterWith(roomID, users)

	h.logger.Debug().Str("conn", c.id).Str("room", roomID).Msg("joined room")
}

func (h *Hub) handleLeave(c *conn, env Envelope) {
	roomID := projectIDOf(env.Data)
	if roomID == "" {
		return
	}
	users := h.registry.Leave(c.id, roomID)
	h.broadcastRosterWith(roomID, users)
}

// disconnect handles a transport-level drop: identical to an implicit
// leave, except the vanished client receives nothing.
func (h *Hub) disconnect(c *conn) {
	if vacated := h.registry.LeaveByConnection(c.id); vacated != "" {
		h.broadcastRoster(vacated)
	}

	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()

	c.close()
	h.logger.Debug().Str("conn", c.id).Msg("disconnected")
}

// relay forwards a mutation or cursor event to every other connection
// in the sender's room. The payload passes through verbatim except for
// the identity fields, which are overwritten with the sender's verified
// identity. A sender that is not in any room is a no-op, not an error.
func (h *Hub) relay(c *conn, env Envelope) {
	roomID := h.registry.RoomOf(c.id)
	if roomID == "" {
		return
	}

	data, err := stampIdentity(env.Event, env.Data, c.user, ColorFor(c.user.ID))
	if err != nil {
		h.logger.Warn().Str("conn", c.id).Str("event", env.Event).Err(err).Msg("dropping malformed payload")
		return
	}

	out := Envelope{Event: env.Event, Data: data}
	for _, connID := range h.registry.ConnectionsInRoom(roomID) {
		if connID == c.id {
			continue
		}
		h.send(connID, out)
	}
}

func (h *Hub) broadcastRoster(roomID string) {
	h.broadcastRosterWith(roomID, h.registry.OnlineUsers(roomID))
}

func (h *Hub) broadcastRosterWith(roomID string, users []models.OnlineUser) {
	env, err := NewEnvelope(EventPresenceUpdate, PresenceUpdate{ProjectID: roomID, Users: users})
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal roster")
		return
	}
	for _, connID := range h.registry.ConnectionsInRoom(roomID) {
		h.send(connID, env)
	}
}

func (h *Hub) reply(c *conn, event string, data any) {
	env, err := NewEnvelope(event, data)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal reply")
		return
	}
	h.send(c.id, env)
}

// send queues an envelope for one connection, dropping it if the peer
// is gone or its queue is full.
func (h *Hub) send(connID string, env Envelope) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	h.mu.Unlock()
	if !ok {
		return
	}

	if !c.enqueue(env) {
		h.logger.Warn().Str("conn", connID).Msg("dropping message for slow or closed connection")
	}
}

func (h *Hub) writePump(c *conn) {
	defer c.ws.Close()

	for env := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteJSON(env); err != nil {
			h.logger.Debug().Str("conn", c.id).Err(err).Msg("write error")
			return
		}
	}

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

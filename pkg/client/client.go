// Package client is the browser-session side of the realtime protocol:
// it opens the websocket channel, emits local mutations, dispatches
// remote events to subscribers, and keeps the connection alive.
//
// A user action is applied optimistically to local state, pushed onto
// the history stack, emitted over the channel, and persisted through
// the CRUD collaborator; the hub relays it to every other participant.
// See Board and Canvas for the reconciliation side.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/plankhq/plank/pkg/realtime"
)

const (
	// DefaultHeartbeatInterval is how often the client pings the hub.
	// The hub never evicts on missed heartbeats; a silent channel is
	// purely the client's cue to reconnect.
	DefaultHeartbeatInterval = 10 * time.Second

	// DefaultReconnectInterval is how often the reconnection loop
	// checks for a dropped connection.
	DefaultReconnectInterval = 5 * time.Second
)

// ErrClosed is returned by operations on a client that was closed.
var ErrClosed = errors.New("client: closed")

type Config struct {
	// URL of the hub endpoint, e.g. ws://host/ws.
	URL string
	// Token is the bearer credential for the handshake.
	Token string

	HeartbeatInterval time.Duration
	ReconnectInterval time.Duration

	Logger zerolog.Logger
}

// Client is the sync adapter. It is safe for concurrent use.
type Client struct {
	config Config
	bus    *Bus
	logger zerolog.Logger

	mu        sync.Mutex
	ws        *websocket.Conn
	writeMu   sync.Mutex
	connected bool
	closed    bool
	project   string // current room, rejoined after a reconnect

	lastAck time.Time

	closeCh chan struct{}
}

func New(config Config) *Client {
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if config.ReconnectInterval <= 0 {
		config.ReconnectInterval = DefaultReconnectInterval
	}
	return &Client{
		config:  config,
		bus:     NewBus(),
		logger:  config.Logger.With().Str("component", "sync-client").Logger(),
		closeCh: make(chan struct{}),
	}
}

// Bus exposes the subscription surface for remote events.
func (c *Client) Bus() *Bus { return c.bus }

// Connect dials the hub and starts the read, heartbeat, and
// reconnection loops. The initial dial failing is returned to the
// caller; only drops after a successful connect are retried
// automatically.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		return err
	}
	go c.reconnectionLoop()
	go c.heartbeatLoop()
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	dialer := *websocket.DefaultDialer
	dialer.EnableCompression = true

	ws, resp, err := dialer.DialContext(ctx, c.config.URL+"?token="+c.config.Token, nil)
	if err != nil {
		// An auth reject is indistinguishable from any other handshake
		// failure by design: the hub sends no error frame back.
		return fmt.Errorf("client: connect: %w", err)
	}
	resp.Body.Close()

	c.mu.Lock()
	c.ws = ws
	c.connected = true
	c.lastAck = time.Now()
	project := c.project
	c.mu.Unlock()

	go c.readLoop(ws)

	if project != "" {
		return c.JoinProject(project)
	}
	return nil
}

// Close tears the connection down and stops all loops.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ws := c.ws
	c.ws = nil
	c.connected = false
	c.mu.Unlock()

	close(c.closeCh)

	if ws != nil {
		c.writeMu.Lock()
		ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		return ws.Close()
	}
	return nil
}

// IsConnected reports whether the channel is currently up.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// JoinProject enters a project room. The hub implicitly leaves any
// previous room, so callers just join the room they navigate to.
func (c *Client) JoinProject(projectID string) error {
	c.mu.Lock()
	c.project = projectID
	c.mu.Unlock()
	return c.Emit(realtime.EventPresenceJoin, realtime.PresenceRequest{ProjectID: projectID})
}

// LeaveProject leaves the current room explicitly.
func (c *Client) LeaveProject(projectID string) error {
	c.mu.Lock()
	if c.project == projectID {
		c.project = ""
	}
	c.mu.Unlock()
	return c.Emit(realtime.EventPresenceLeave, realtime.PresenceRequest{ProjectID: projectID})
}

// Emit sends one event to the hub. Delivery is best-effort end to end;
// an error here only means the local write failed.
func (c *Client) Emit(event string, data any) error {
	env, err := realtime.NewEnvelope(event, data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	ws := c.ws
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if ws == nil {
		return errors.New("client: not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteJSON(env)
}

func (c *Client) readLoop(ws *websocket.Conn) {
	for {
		var env realtime.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			c.markDisconnected(ws)
			return
		}

		if env.Event == realtime.EventPresenceHeartbeat {
			c.mu.Lock()
			c.lastAck = time.Now()
			c.mu.Unlock()
			continue
		}

		c.bus.Publish(env)
	}
}

func (c *Client) markDisconnected(ws *websocket.Conn) {
	c.mu.Lock()
	if c.ws == ws {
		c.ws = nil
		c.connected = false
	}
	c.mu.Unlock()
	ws.Close()
}

// heartbeatLoop pings the hub and treats a stale ack as a dead
// connection, closing it so the reconnection loop takes over.
func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeCh:
			return
		case <-ticker.C:
		}

		if !c.IsConnected() {
			continue
		}

		if err := c.Emit(realtime.EventPresenceHeartbeat, struct{}{}); err != nil {
			c.logger.Debug().Err(err).Msg("heartbeat write failed")
			continue
		}

		c.mu.Lock()
		stale := time.Since(c.lastAck) > 2*c.config.HeartbeatInterval
		ws := c.ws
		c.mu.Unlock()

		if stale && ws != nil {
			c.logger.Info().Msg("heartbeat acks stale, dropping connection")
			c.markDisconnected(ws)
		}
	}
}

func (c *Client) reconnectionLoop() {
	for {
		select {
		case <-c.closeCh:
			return
		case <-time.After(c.config.ReconnectInterval):
		}

		if c.IsConnected() {
			continue
		}

		c.logger.Info().Msg("attempting to reconnect")
		ctx, cancel := context.WithTimeout(context.Background(), c.config.ReconnectInterval)
		if err := c.dial(ctx); err != nil {
			c.logger.Error().Err(err).Msg("reconnect failed")
		} else {
			c.logger.Info().Msg("reconnected")
		}
		cancel()
	}
}

// decode unmarshals an envelope payload, logging instead of failing:
// a malformed remote payload is dropped, never fatal.
func decode[T any](c *Client, env realtime.Envelope) (T, bool) {
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		c.logger.Warn().Str("event", env.Event).Err(err).Msg("dropping malformed payload")
		var zero T
		return zero, false
	}
	return v, true
}

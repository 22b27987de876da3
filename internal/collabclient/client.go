// Package collabclient connects an editor to a collaboration session server,
// keeps a read-only copy of the roster and relays edit payloads.
package collabclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/codefionn/codebridge/internal/collab"
	"github.com/codefionn/codebridge/internal/logger"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// server pings every 54s
	readWait = 70 * time.Second
)

// State represents the current state of the connection
type State int

const (
	// StateDisconnected indicates the client is not connected
	StateDisconnected State = iota
	// StateConnecting indicates the first connection attempt is running
	StateConnecting
	// StateConnected indicates the client is connected and has announced itself
	StateConnected
	// StateReconnecting indicates a reconnection attempt is running
	StateReconnecting
	// StateClosed indicates Disconnect was called
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrNotConnected is returned by SendEdit without a live connection.
	ErrNotConnected = errors.New("not connected")
	// ErrClosed is returned after Disconnect.
	ErrClosed = errors.New("client closed")
)

// ConnectionError reports a failed connection attempt.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Config holds client configuration
type Config struct {
	// ServerURL is the websocket endpoint, e.g. ws://localhost:3001/ws
	ServerURL string
	// Name and Color identify the user. Empty values are replaced by random
	// ones on every connection.
	Name  string
	Color string
	// Reconnect enables redialing after the connection is lost
	Reconnect bool
	// InitialBackoff and MaxBackoff bound the delay between redials
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// HandshakeTimeout limits the websocket handshake
	HandshakeTimeout time.Duration
}

// Client is one connection to a session server.
type Client struct {
	cfg Config
	log *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	state    State
	ws       *websocket.Conn
	selfID   string
	identity collab.Announce
	roster   []collab.Participant

	onRoster func([]collab.Participant)
	onEdit   func(collab.EditRelay)
	onState  func(State, error)

	writeMu sync.Mutex

	// callbacks run by readLoop or reconnectLoop that have not returned yet
	inCallback atomic.Int32
}

// New creates a disconnected client.
func New(cfg Config) *Client {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:    cfg,
		log:    logger.Global().WithPrefix("collab-client"),
		ctx:    ctx,
		cancel: cancel,
		state:  StateDisconnected,
	}
}

// OnRosterChanged registers fn to receive every new roster, including the
// empty roster when the connection is lost.
func (c *Client) OnRosterChanged(fn func([]collab.Participant)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRoster = fn
}

// OnEditRelay registers fn to receive edits of other participants.
func (c *Client) OnEditRelay(fn func(collab.EditRelay)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEdit = fn
}

// OnStateChanged registers fn to observe state transitions.
func (c *Client) OnStateChanged(fn func(State, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SelfID returns the server-assigned id of the current connection, or "".
func (c *Client) SelfID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfID
}

// Identity returns the name and color announced on the current connection.
func (c *Client) Identity() collab.Announce {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Roster returns a copy of the last received roster.
func (c *Client) Roster() []collab.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]collab.Participant{}, c.roster...)
}

func (c *Client) setState(state State, err error) {
	c.mu.Lock()
	if c.state == StateClosed && state != StateClosed {
		c.mu.Unlock()
		return
	}
	old := c.state
	c.state = state
	fn := c.onState
	c.mu.Unlock()

	if old != state {
		c.log.Debug("state %s -> %s", old, state)
		if fn != nil {
			c.callback(func() { fn(state, err) })
		}
	}
}

// callback runs fn, marking it as in progress for Disconnect.
func (c *Client) callback(fn func()) {
	c.inCallback.Add(1)
	defer c.inCallback.Add(-1)
	fn()
}

// Connect dials the server and announces the identity. A failed dial returns
// a *ConnectionError and leaves the client disconnected. Calling Connect
// while connected or connecting does nothing.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case StateConnected, StateConnecting, StateReconnecting:
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	fn := c.onState
	c.mu.Unlock()

	c.log.Debug("state %s -> %s", StateDisconnected, StateConnecting)
	if fn != nil {
		c.callback(func() { fn(StateConnecting, nil) })
	}
	if err := c.dial(ctx); err != nil {
		c.setState(StateDisconnected, err)
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, c.cfg.ServerURL, nil)
	if err != nil {
		return &ConnectionError{URL: c.cfg.ServerURL, Err: err}
	}
	return c.attach(ws)
}

// attach makes ws the live connection and announces a fresh identity on it.
func (c *Client) attach(ws *websocket.Conn) error {
	identity := collab.Announce{Name: c.cfg.Name, Color: c.cfg.Color}
	if identity.Name == "" {
		identity.Name = RandomName()
	}
	if identity.Color == "" {
		identity.Color = RandomColor()
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		ws.Close()
		return ErrClosed
	}
	c.ws = ws
	c.identity = identity
	c.selfID = ""
	c.roster = nil
	c.wg.Add(1)
	c.mu.Unlock()

	c.setState(StateConnected, nil)
	go c.readLoop(ws)

	// a connection that breaks right away is handled like any later loss
	if err := c.write(ws, identity); err != nil {
		c.connectionLost(ws, err)
		return nil
	}
	c.log.Info("connected to %s as %q", c.cfg.ServerURL, identity.Name)
	return nil
}

func (c *Client) write(ws *websocket.Conn, msg collab.Message) error {
	data, err := collab.Encode(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop(ws *websocket.Conn) {
	defer c.wg.Done()

	_ = ws.SetReadDeadline(time.Now().Add(readWait))
	ws.SetPingHandler(func(appData string) error {
		_ = ws.SetReadDeadline(time.Now().Add(readWait))
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.connectionLost(ws, err)
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(readWait))

		msg, err := collab.Decode(data)
		if err != nil {
			c.log.Warn("ignoring message from server: %v", err)
			continue
		}
		c.handle(ws, msg)
	}
}

func (c *Client) handle(ws *websocket.Conn, msg collab.Message) {
	switch m := msg.(type) {
	case collab.Welcome:
		c.mu.Lock()
		if c.ws == ws {
			c.selfID = m.ID
		}
		c.mu.Unlock()

	case collab.Roster:
		c.mu.Lock()
		if c.ws != ws {
			c.mu.Unlock()
			return
		}
		c.roster = m.Participants
		fn := c.onRoster
		c.mu.Unlock()
		if fn != nil {
			c.callback(func() { fn(append([]collab.Participant{}, m.Participants...)) })
		}

	case collab.EditRelay:
		c.mu.Lock()
		fn := c.onEdit
		if c.ws != ws {
			fn = nil
		}
		c.mu.Unlock()
		if fn != nil {
			c.callback(func() { fn(m) })
		}

	case collab.Error:
		c.log.Warn("server rejected a message: %s: %s", m.Code, m.Message)

	default:
		c.log.Debug("unexpected %s from server", msg.Type())
	}
}

// connectionLost clears connection state and starts reconnecting. Stale
// connections (already replaced or closed) are ignored.
func (c *Client) connectionLost(ws *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.ws != ws || c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.ws = nil
	c.selfID = ""
	c.roster = nil
	fn := c.onRoster
	reconnect := c.cfg.Reconnect
	if reconnect {
		c.wg.Add(1)
	}
	c.mu.Unlock()

	ws.Close()
	c.log.Warn("connection to %s lost: %v", c.cfg.ServerURL, cause)
	c.setState(StateDisconnected, cause)
	if fn != nil {
		c.callback(func() { fn([]collab.Participant{}) })
	}

	if reconnect {
		go c.reconnectLoop()
	}
}

// reconnectLoop redials with exponential backoff until it succeeds or the
// client is closed. Every successful redial is a new participant.
func (c *Client) reconnectLoop() {
	defer c.wg.Done()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		if c.ctx.Err() != nil {
			return backoff.Permanent(ErrClosed)
		}
		attempt++
		c.setState(StateReconnecting, nil)

		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.HandshakeTimeout)
		defer cancel()
		err := c.dial(ctx)
		if errors.Is(err, ErrClosed) {
			return backoff.Permanent(err)
		}
		if err != nil {
			c.setState(StateDisconnected, err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.log.Debug("reconnect attempt %d failed, retrying in %s: %v", attempt, wait, err)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, c.ctx), notify); err != nil {
		c.log.Debug("reconnect loop stopped: %v", err)
	}
}

// SendEdit sends an opaque edit payload to the other participants.
func (c *Client) SendEdit(payload json.RawMessage) error {
	c.mu.Lock()
	ws, state := c.ws, c.state
	c.mu.Unlock()
	if ws == nil || state != StateConnected {
		return ErrNotConnected
	}
	return c.write(ws, collab.EditChange{Payload: payload})
}

// Disconnect closes the connection and stops reconnecting. It is safe to
// call more than once. Called from outside a callback it returns once the
// client's goroutines have exited; called from within a callback it returns
// without waiting for them.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	old := c.state
	c.state = StateClosed
	ws := c.ws
	c.ws = nil
	c.selfID = ""
	c.roster = nil
	fn := c.onState
	c.mu.Unlock()

	c.cancel()
	if ws != nil {
		c.writeMu.Lock()
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		ws.Close()
	}
	if c.inCallback.Load() == 0 {
		c.wg.Wait()
	}

	c.log.Info("disconnected from %s", c.cfg.ServerURL)
	if fn != nil && old != StateClosed {
		fn(StateClosed, nil)
	}
	return nil
}

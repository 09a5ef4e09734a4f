package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mroxso/nostr-debug/internal/stream"
)

// State is a relay's connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

const writeTimeout = 10 * time.Second

// Transport is one established text-frame connection. A gorilla
// websocket connection satisfies it in production; tests plug in fakes.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens a Transport to a relay URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// WebsocketDialer dials relays over gorilla/websocket.
type WebsocketDialer struct{}

// Dial opens a websocket connection to the relay.
func (WebsocketDialer) Dial(ctx context.Context, url string) (Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Conn drives the connection lifecycle for a single relay. Transport
// events (open, close, error, inbound frame) become stream records, and
// state transitions are applied through the registry keyed by URL, so a
// callback firing late can never act on a stale view of the relay list.
//
// The generation counter is bumped whenever the current handle is
// discarded (reconnect, removal). A read loop whose generation no longer
// matches has been superseded and must not emit lifecycle records.
type Conn struct {
	url        string
	registry   *Registry
	dispatcher *stream.Dispatcher
	dialer     Dialer

	mu        sync.Mutex
	transport Transport
	gen       uint64

	writeMu sync.Mutex
}

func newConn(url string, reg *Registry, d *stream.Dispatcher, dialer Dialer) *Conn {
	return &Conn{
		url:        url,
		registry:   reg,
		dispatcher: d,
		dialer:     dialer,
	}
}

// Connect discards any existing handle without a graceful drain and
// dials a fresh one. Dialing happens off the caller's goroutine; the
// caller only observes the transition to Connecting.
func (c *Conn) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.transport != nil {
		old := c.transport
		c.transport = nil
		old.Close()
	}
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	c.registry.setState(c.url, StateConnecting)
	slog.Info("connecting to relay", "relay", c.url)

	go c.dial(ctx, gen)
}

func (c *Conn) dial(ctx context.Context, gen uint64) {
	t, err := c.dialer.Dial(ctx, c.url)

	c.mu.Lock()
	current := gen == c.gen
	if current && err == nil {
		c.transport = t
	}
	c.mu.Unlock()

	if !current {
		if t != nil {
			t.Close()
		}
		return
	}

	if err != nil {
		slog.Warn("relay dial failed", "relay", c.url, "error", err)
		c.dispatcher.Dispatch(c.url, stream.DirectionReceived, map[string]any{
			"type":  "error",
			"error": err.Error(),
		})
		c.registry.setState(c.url, StateDisconnected)
		c.dispatcher.Dispatch(c.url, stream.DirectionReceived, map[string]any{
			"type":   "connection",
			"status": "disconnected",
		})
		return
	}

	slog.Info("connected to relay", "relay", c.url)
	c.registry.setState(c.url, StateConnected)
	c.dispatcher.Dispatch(c.url, stream.DirectionReceived, map[string]any{
		"type":   "connection",
		"status": "connected",
	})

	go c.readLoop(t, gen)
}

// Disconnect requests a transport close. No-op without a handle; the
// actual state transition happens when the read loop observes the close.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t != nil {
		t.Close()
	}
}

// shutdown is the removal path: it discards the handle, supersedes the
// read loop and emits the close notification synchronously, so exactly
// one disconnect record exists before the relay leaves the registry.
func (c *Conn) shutdown() {
	c.mu.Lock()
	t := c.transport
	c.transport = nil
	c.gen++
	c.mu.Unlock()

	if t == nil {
		return
	}
	t.Close()
	c.registry.setState(c.url, StateDisconnected)
	c.dispatcher.Dispatch(c.url, stream.DirectionReceived, map[string]any{
		"type":   "connection",
		"status": "disconnected",
	})
}

// Write transmits a single frame. Not retried and never queued: a handle
// that cannot accept data right now fails this send only.
func (c *Conn) Write(payload any) error {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return ErrTargetNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	t.SetWriteDeadline(time.Now().Add(writeTimeout))
	defer t.SetWriteDeadline(time.Time{})
	return t.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads frames until the transport fails or closes. Per-relay
// order is preserved exactly as delivered; ordering across relays is up
// to the dispatcher's serialization.
func (c *Conn) readLoop(t Transport, gen uint64) {
	for {
		_, frame, err := t.ReadMessage()
		if err != nil {
			c.finish(t, gen, err)
			return
		}
		c.handleFrame(frame)
	}
}

// handleFrame decodes one inbound frame. Undecodable frames are kept
// verbatim as parse_error records, never dropped.
func (c *Conn) handleFrame(frame []byte) {
	var payload any
	if err := json.Unmarshal(frame, &payload); err != nil {
		c.dispatcher.Dispatch(c.url, stream.DirectionReceived, map[string]any{
			"type": "parse_error",
			"raw":  string(frame),
		})
		return
	}
	c.dispatcher.Dispatch(c.url, stream.DirectionReceived, payload)
}

// finish runs the close notification path for the handle the read loop
// owned. Local and remote closes are indistinguishable in the emitted
// record; abnormal failures additionally produce an error record first.
func (c *Conn) finish(t Transport, gen uint64, err error) {
	t.Close()

	c.mu.Lock()
	current := gen == c.gen
	if current && c.transport == t {
		c.transport = nil
	}
	c.mu.Unlock()
	if !current {
		return
	}

	if err != nil && !isExpectedClose(err) {
		slog.Warn("relay connection error", "relay", c.url, "error", err)
		c.dispatcher.Dispatch(c.url, stream.DirectionReceived, map[string]any{
			"type":  "error",
			"error": err.Error(),
		})
	}

	slog.Info("disconnected from relay", "relay", c.url)
	c.registry.setState(c.url, StateDisconnected)
	c.dispatcher.Dispatch(c.url, stream.DirectionReceived, map[string]any{
		"type":   "connection",
		"status": "disconnected",
	})
}

// isExpectedClose reports whether a read error is a clean shutdown
// rather than a failure worth an error record.
func isExpectedClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}

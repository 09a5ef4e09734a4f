package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mroxso/nostr-debug/internal/stream"
)

// Relay is one registered relay endpoint and its connection state. The
// URL is the unique key; at most one live transport handle exists per
// relay at any time, owned by its Conn.
type Relay struct {
	URL   string
	State State
	conn  *Conn
}

// Info is the read-only view of a relay handed out by List.
type Info struct {
	URL   string `json:"url"`
	State State  `json:"state"`
}

// Registry owns the set of known relays. Adding, removing, iterating and
// every per-relay state transition go through it, keyed by URL; nothing
// else mutates the relay list.
type Registry struct {
	dispatcher *stream.Dispatcher
	dialer     Dialer

	mu     sync.RWMutex
	order  []string
	relays map[string]*Relay
}

// NewRegistry creates an empty registry emitting into d. A nil dialer
// selects the gorilla websocket dialer.
func NewRegistry(d *stream.Dispatcher, dialer Dialer) *Registry {
	if dialer == nil {
		dialer = WebsocketDialer{}
	}
	return &Registry{
		dispatcher: d,
		dialer:     dialer,
		relays:     make(map[string]*Relay),
	}
}

// Add registers a relay in state Disconnected, appended to the end of
// the ordered relay list. Returns ErrInvalidURL or ErrDuplicateRelay
// without touching the registry.
func (r *Registry) Add(rawURL string) (Info, error) {
	url, err := NormalizeURL(rawURL)
	if err != nil {
		return Info{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.relays[url]; ok {
		return Info{}, ErrDuplicateRelay
	}

	rel := &Relay{URL: url, State: StateDisconnected}
	rel.conn = newConn(url, r, r.dispatcher, r.dialer)
	r.relays[url] = rel
	r.order = append(r.order, url)

	slog.Info("relay added", "relay", url)
	return Info{URL: url, State: rel.State}, nil
}

// Remove closes any live transport handle, which emits the usual close
// notification, and then drops the relay from the list. Removing an
// unknown or unparseable URL is a no-op. Removal is immediate; the close
// handshake with the remote side is not awaited.
func (r *Registry) Remove(rawURL string) {
	url, err := NormalizeURL(rawURL)
	if err != nil {
		return
	}

	r.mu.RLock()
	rel := r.relays[url]
	r.mu.RUnlock()
	if rel == nil {
		return
	}

	rel.conn.shutdown()

	r.mu.Lock()
	if _, ok := r.relays[url]; ok {
		delete(r.relays, url)
		for i, u := range r.order {
			if u == url {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	slog.Info("relay removed", "relay", url)
}

// List returns the relays in insertion order.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.order))
	for _, url := range r.order {
		rel := r.relays[url]
		out = append(out, Info{URL: rel.URL, State: rel.State})
	}
	return out
}

// Connect opens a fresh transport to the relay, discarding any existing
// handle first. The dial itself runs asynchronously.
func (r *Registry) Connect(ctx context.Context, rawURL string) error {
	rel, err := r.lookup(rawURL)
	if err != nil {
		return err
	}
	rel.conn.Connect(ctx)
	return nil
}

// Disconnect requests a transport close for the relay. The state
// transition happens when the close event fires, not here.
func (r *Registry) Disconnect(rawURL string) error {
	rel, err := r.lookup(rawURL)
	if err != nil {
		return err
	}
	rel.conn.Disconnect()
	return nil
}

func (r *Registry) lookup(rawURL string) (*Relay, error) {
	url, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	rel := r.relays[url]
	r.mu.RUnlock()
	if rel == nil {
		return nil, ErrUnknownRelay
	}
	return rel, nil
}

// setState applies a connection state transition keyed by URL against
// the registry contents at the moment the event fires. Transitions for
// relays that have since been removed are dropped.
func (r *Registry) setState(url string, s State) {
	r.mu.Lock()
	rel, ok := r.relays[url]
	if ok {
		rel.State = s
	}
	r.mu.Unlock()
	if ok {
		slog.Debug("relay state changed", "relay", url, "state", s)
	}
}

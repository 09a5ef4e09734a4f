package relay

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mroxso/nostr-debug/internal/stream"
)

// fakeFrame is one scripted read result: either a frame or a read error.
type fakeFrame struct {
	data []byte
	err  error
}

// fakeTransport scripts reads through a channel and captures writes.
// Close unblocks a pending ReadMessage with net.ErrClosed, matching how
// a locally closed websocket surfaces to its read loop.
type fakeTransport struct {
	in        chan fakeFrame
	closeOnce sync.Once

	mu       sync.Mutex
	closed   bool
	writeErr error
	written  [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{in: make(chan fakeFrame, 16)}
}

func (t *fakeTransport) push(payload any) {
	data, _ := json.Marshal(payload)
	t.in <- fakeFrame{data: data}
}

func (t *fakeTransport) pushRaw(raw string) {
	t.in <- fakeFrame{data: []byte(raw)}
}

func (t *fakeTransport) pushErr(err error) {
	t.in <- fakeFrame{err: err}
}

func (t *fakeTransport) ReadMessage() (int, []byte, error) {
	f, ok := <-t.in
	if !ok {
		return 0, nil, net.ErrClosed
	}
	if f.err != nil {
		return 0, nil, f.err
	}
	return websocket.TextMessage, f.data, nil
}

func (t *fakeTransport) WriteMessage(messageType int, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return t.writeErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	t.written = append(t.written, cp)
	return nil
}

func (t *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
		close(t.in)
	})
	return nil
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) sentFrames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.written))
	for i, w := range t.written {
		out[i] = string(w)
	}
	return out
}

// fakeDialer hands out fakeTransports and remembers them per URL.
type fakeDialer struct {
	mu    sync.Mutex
	err   error
	conns map[string][]*fakeTransport
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(map[string][]*fakeTransport)}
}

func (d *fakeDialer) Dial(_ context.Context, url string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	t := newFakeTransport()
	d.conns[url] = append(d.conns[url], t)
	return t, nil
}

func (d *fakeDialer) failWith(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDialer) dialCount(url string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns[url])
}

func (d *fakeDialer) transport(url string, n int) *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n >= len(d.conns[url]) {
		return nil
	}
	return d.conns[url][n]
}

func (d *fakeDialer) latest(url string) *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	conns := d.conns[url]
	if len(conns) == 0 {
		return nil
	}
	return conns[len(conns)-1]
}

func newTestRegistry() (*Registry, *stream.Dispatcher, *fakeDialer) {
	d := stream.NewDispatcher()
	dialer := newFakeDialer()
	return NewRegistry(d, dialer), d, dialer
}

// countRecords tallies stream records matching tag and, for connection
// records, the given status ("" matches any).
func countRecords(d *stream.Dispatcher, tag, status string) int {
	n := 0
	for _, rec := range d.Snapshot() {
		if rec.TypeTag != tag {
			continue
		}
		if status != "" {
			m, ok := rec.Payload.(map[string]any)
			if !ok || m["status"] != status {
				continue
			}
		}
		n++
	}
	return n
}

func relayState(r *Registry, url string) State {
	for _, info := range r.List() {
		if info.URL == url {
			return info.State
		}
	}
	return ""
}

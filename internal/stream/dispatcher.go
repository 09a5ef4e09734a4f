package stream

import (
	"sync"
	"time"
)

// Dispatcher is the single serialization point for the message stream.
// Every emission, from every relay connection and from the send path,
// passes through Dispatch; the stream is kept newest first and records
// are never mutated or reordered after insertion.
type Dispatcher struct {
	mu      sync.Mutex
	nextID  uint64
	records []Record

	subMu sync.RWMutex
	subs  map[chan Record]*subscriber
}

type subscriber struct {
	closeOnce sync.Once
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subs: make(map[chan Record]*subscriber),
	}
}

// Dispatch allocates a fresh identity, captures the current instant,
// classifies the payload once and prepends the record to the stream.
// Calls complete atomically with respect to each other even though they
// originate from independent connection goroutines.
func (d *Dispatcher) Dispatch(relayURL string, direction Direction, payload any) Record {
	d.mu.Lock()
	d.nextID++
	rec := Record{
		ID:        d.nextID,
		Timestamp: time.Now(),
		RelayURL:  relayURL,
		Direction: direction,
		Payload:   payload,
		TypeTag:   Classify(payload),
	}
	d.records = append(d.records, Record{})
	copy(d.records[1:], d.records)
	d.records[0] = rec
	d.mu.Unlock()

	d.broadcast(rec)
	return rec
}

// Clear discards all records atomically. Identities keep counting up so
// records dispatched after a clear remain distinguishable from old ones.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	d.records = nil
	d.mu.Unlock()
}

// Snapshot returns a copy of the stream, newest first.
func (d *Dispatcher) Snapshot() []Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Record, len(d.records))
	copy(out, d.records)
	return out
}

// Len reports the number of records currently in the stream.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.records)
}

// TotalDispatched reports how many records have ever been dispatched,
// including records discarded by Clear.
func (d *Dispatcher) TotalDispatched() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nextID
}

// Subscribe registers a live observer of the stream. The channel is
// buffered; an observer that falls behind misses records instead of
// blocking Dispatch.
func (d *Dispatcher) Subscribe() chan Record {
	ch := make(chan Record, 64)
	d.subMu.Lock()
	d.subs[ch] = &subscriber{}
	d.subMu.Unlock()
	return ch
}

// Unsubscribe removes an observer and closes its channel exactly once.
func (d *Dispatcher) Unsubscribe(ch chan Record) {
	d.subMu.Lock()
	sub, ok := d.subs[ch]
	delete(d.subs, ch)
	d.subMu.Unlock()
	if ok {
		sub.closeOnce.Do(func() { close(ch) })
	}
}

// broadcast fans a record out to observers. Sends happen under the read
// lock and Unsubscribe closes only after removal under the write lock,
// so a send on a closed channel cannot occur.
func (d *Dispatcher) broadcast(rec Record) {
	d.subMu.RLock()
	defer d.subMu.RUnlock()
	for ch := range d.subs {
		select {
		case ch <- rec:
		default:
		}
	}
}

package relay

import (
	"log/slog"

	"github.com/mroxso/nostr-debug/internal/stream"
)

// TargetAll addresses a send to every connected relay.
const TargetAll = "all"

// SendResult reports per-relay delivery of one send. Sent counts the
// relays the frame was written to; Failures holds the relays it was not,
// with the reason.
type SendResult struct {
	Sent      int               `json:"sent"`
	Attempted int               `json:"attempted"`
	Failures  map[string]string `json:"failures,omitempty"`
}

// Send transmits payload to one relay or to all connected relays.
// Targets are resolved from a snapshot of the relay list taken at call
// time; one relay's failure never aborts delivery to the rest, and a
// frame that cannot be written right now is dropped, not queued. Each
// successful write emits a sent record through the dispatcher.
func (r *Registry) Send(target string, payload any) (SendResult, error) {
	targets, err := r.resolveTargets(target)
	if err != nil {
		return SendResult{}, err
	}

	res := SendResult{Attempted: len(targets)}
	for _, rel := range targets {
		if werr := rel.conn.Write(payload); werr != nil {
			slog.Warn("send failed", "relay", rel.URL, "error", werr)
			if res.Failures == nil {
				res.Failures = make(map[string]string)
			}
			res.Failures[rel.URL] = werr.Error()
			continue
		}
		r.dispatcher.Dispatch(rel.URL, stream.DirectionSent, payload)
		res.Sent++
	}
	return res, nil
}

// resolveTargets snapshots the connected relays matching the selector,
// in insertion order.
func (r *Registry) resolveTargets(target string) ([]*Relay, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var connected []*Relay
	for _, url := range r.order {
		rel := r.relays[url]
		if rel.State == StateConnected {
			connected = append(connected, rel)
		}
	}
	if len(connected) == 0 {
		return nil, ErrNoConnectedRelays
	}

	if target == TargetAll || target == "" {
		return connected, nil
	}

	url, err := NormalizeURL(target)
	if err != nil {
		return nil, ErrTargetNotConnected
	}
	for _, rel := range connected {
		if rel.URL == url {
			return []*Relay{rel}, nil
		}
	}
	return nil, ErrTargetNotConnected
}

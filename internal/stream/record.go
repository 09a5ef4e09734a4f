package stream

import "time"

// Direction marks whether a record left the console or arrived from a relay.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Record is one classified entry in the message stream. Records are
// immutable once created by the Dispatcher; the relay URL is carried by
// value, so removing a relay never invalidates records it produced.
type Record struct {
	ID        uint64    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	RelayURL  string    `json:"relay_url"`
	Direction Direction `json:"direction"`
	Payload   any       `json:"payload"`
	TypeTag   string    `json:"type_tag"`
}

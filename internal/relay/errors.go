package relay

import "errors"

// Registry- and send-time validation failures are surfaced synchronously
// to the caller. Transport-originated failures are never raised; the
// connection lifecycle absorbs them into stream records instead.
var (
	ErrInvalidURL         = errors.New("invalid relay url: scheme must be ws or wss")
	ErrDuplicateRelay     = errors.New("relay already added")
	ErrUnknownRelay       = errors.New("relay not found")
	ErrNoConnectedRelays  = errors.New("no connected relays")
	ErrTargetNotConnected = errors.New("target relay not connected")
)

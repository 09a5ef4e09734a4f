package relay

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mroxso/nostr-debug/internal/stream"
)

const testURL = "wss://relay.test"

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func addAndConnect(t *testing.T, r *Registry, d *stream.Dispatcher, url string) {
	t.Helper()
	_, err := r.Add(url)
	require.NoError(t, err)
	require.NoError(t, r.Connect(context.Background(), url))
	waitFor(t, func() bool { return countRecords(d, "connection", "connected") == 1 })
	waitFor(t, func() bool { return relayState(r, url) == StateConnected })
}

func TestConnectEmitsConnectedRecord(t *testing.T) {
	r, d, _ := newTestRegistry()
	addAndConnect(t, r, d, testURL)

	recs := d.Snapshot()
	require.Len(t, recs, 1)
	assert.Equal(t, stream.DirectionReceived, recs[0].Direction)
	assert.Equal(t, "connection", recs[0].TypeTag)
	assert.Equal(t, testURL, recs[0].RelayURL)

	payload, ok := recs[0].Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "connected", payload["status"])
}

func TestInboundFramesPreserveOrderAndRawText(t *testing.T) {
	r, d, dialer := newTestRegistry()
	addAndConnect(t, r, d, testURL)
	tr := dialer.latest(testURL)

	tr.push([]any{"EVENT", "sub1", map[string]any{"kind": 1}})
	tr.push(map[string]any{"type": "custom"})
	tr.pushRaw("definitely not json")

	waitFor(t, func() bool { return d.Len() == 4 })

	recs := d.Snapshot() // newest first
	assert.Equal(t, "parse_error", recs[0].TypeTag)
	raw := recs[0].Payload.(map[string]any)
	assert.Equal(t, "definitely not json", raw["raw"])

	assert.Equal(t, "custom", recs[1].TypeTag)
	assert.Equal(t, "EVENT", recs[2].TypeTag)

	// Per-relay delivery order shows up as ascending record ids.
	assert.Greater(t, recs[0].ID, recs[1].ID)
	assert.Greater(t, recs[1].ID, recs[2].ID)
}

func TestDisconnectRequestTransitionsOnCloseEvent(t *testing.T) {
	r, d, _ := newTestRegistry()
	addAndConnect(t, r, d, testURL)

	require.NoError(t, r.Disconnect(testURL))

	waitFor(t, func() bool { return relayState(r, testURL) == StateDisconnected })
	waitFor(t, func() bool { return countRecords(d, "connection", "disconnected") == 1 })

	// A locally requested close is not an error.
	assert.Equal(t, 0, countRecords(d, "error", ""))
}

func TestDisconnectWithoutHandleIsNoop(t *testing.T) {
	r, d, _ := newTestRegistry()
	_, err := r.Add(testURL)
	require.NoError(t, err)

	require.NoError(t, r.Disconnect(testURL))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, d.Len())
	assert.Equal(t, StateDisconnected, relayState(r, testURL))
}

func TestTransportErrorEmitsErrorThenDisconnected(t *testing.T) {
	r, d, dialer := newTestRegistry()
	addAndConnect(t, r, d, testURL)

	dialer.latest(testURL).pushErr(io.ErrUnexpectedEOF)

	waitFor(t, func() bool { return countRecords(d, "connection", "disconnected") == 1 })
	require.Equal(t, 1, countRecords(d, "error", ""))

	recs := d.Snapshot()
	assert.Equal(t, "connection", recs[0].TypeTag) // disconnected is the newest
	assert.Equal(t, "error", recs[1].TypeTag)
	assert.Equal(t, StateDisconnected, relayState(r, testURL))
}

func TestDialFailureReportsErrorAndDisconnects(t *testing.T) {
	r, d, dialer := newTestRegistry()
	dialer.failWith(io.EOF)

	_, err := r.Add(testURL)
	require.NoError(t, err)
	require.NoError(t, r.Connect(context.Background(), testURL))

	waitFor(t, func() bool { return relayState(r, testURL) == StateDisconnected })
	assert.Equal(t, 1, countRecords(d, "error", ""))
	assert.Equal(t, 1, countRecords(d, "connection", "disconnected"))
}

func TestReconnectDiscardsOldHandle(t *testing.T) {
	r, d, dialer := newTestRegistry()
	addAndConnect(t, r, d, testURL)
	first := dialer.latest(testURL)

	require.NoError(t, r.Connect(context.Background(), testURL))

	waitFor(t, func() bool { return dialer.dialCount(testURL) == 2 })
	waitFor(t, func() bool { return countRecords(d, "connection", "connected") == 2 })
	waitFor(t, func() bool { return relayState(r, testURL) == StateConnected })

	assert.True(t, first.isClosed())

	// The discarded handle's read loop was superseded; it must not have
	// flipped the relay back to disconnected.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateConnected, relayState(r, testURL))

	// The replacement handle is live and writable.
	require.NoError(t, r.relays[testURL].conn.Write([]any{"REQ", "sub1", map[string]any{}}))
	assert.Len(t, dialer.latest(testURL).sentFrames(), 1)
}

func TestWriteWithoutHandleFails(t *testing.T) {
	r, _, _ := newTestRegistry()
	_, err := r.Add(testURL)
	require.NoError(t, err)

	err = r.relays[testURL].conn.Write([]any{"REQ"})
	assert.ErrorIs(t, err, ErrTargetNotConnected)
}

package stream

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchNewestFirst(t *testing.T) {
	d := NewDispatcher()

	for i := 0; i < 5; i++ {
		d.Dispatch("wss://relay.test", DirectionReceived, []any{"NOTICE", fmt.Sprintf("msg-%d", i)})
	}

	recs := d.Snapshot()
	require.Len(t, recs, 5)
	for i := 0; i < 4; i++ {
		assert.Greater(t, recs[i].ID, recs[i+1].ID)
		assert.False(t, recs[i].Timestamp.Before(recs[i+1].Timestamp))
	}
	newest := recs[0].Payload.([]any)
	assert.Equal(t, "msg-4", newest[1])
}

func TestDispatchClassifiesOnce(t *testing.T) {
	d := NewDispatcher()
	rec := d.Dispatch("wss://relay.test", DirectionSent, []any{"REQ", "sub1", map[string]any{}})

	assert.Equal(t, "REQ", rec.TypeTag)
	assert.Equal(t, DirectionSent, rec.Direction)
	assert.Equal(t, "wss://relay.test", rec.RelayURL)
	assert.NotZero(t, rec.ID)
	assert.False(t, rec.Timestamp.IsZero())
}

func TestClearEmptiesStreamButKeepsIdentity(t *testing.T) {
	d := NewDispatcher()
	d.Dispatch("wss://a.test", DirectionReceived, []any{"EOSE", "sub1"})
	d.Dispatch("wss://a.test", DirectionReceived, []any{"EOSE", "sub2"})

	d.Clear()
	assert.Equal(t, 0, d.Len())
	assert.Empty(t, d.Snapshot())

	rec := d.Dispatch("wss://a.test", DirectionReceived, []any{"EOSE", "sub3"})
	assert.Equal(t, uint64(3), rec.ID)
	assert.Equal(t, uint64(3), d.TotalDispatched())
}

func TestConcurrentDispatchKeepsStreamConsistent(t *testing.T) {
	d := NewDispatcher()

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			url := fmt.Sprintf("wss://relay-%d.test", w)
			for i := 0; i < perWorker; i++ {
				d.Dispatch(url, DirectionReceived, []any{"EVENT", "sub", map[string]any{}})
			}
		}(w)
	}
	wg.Wait()

	recs := d.Snapshot()
	require.Len(t, recs, workers*perWorker)

	// Identities are unique and strictly descending newest-first.
	seen := make(map[uint64]bool, len(recs))
	for i, rec := range recs {
		assert.False(t, seen[rec.ID])
		seen[rec.ID] = true
		if i > 0 {
			assert.Less(t, rec.ID, recs[i-1].ID)
		}
	}
}

func TestSubscribeReceivesLiveRecords(t *testing.T) {
	d := NewDispatcher()
	ch := d.Subscribe()
	defer d.Unsubscribe(ch)

	want := d.Dispatch("wss://relay.test", DirectionReceived, []any{"NOTICE", "hi"})

	select {
	case got := <-ch:
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, "NOTICE", got.TypeTag)
	case <-time.After(time.Second):
		t.Fatal("no record delivered to subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	d := NewDispatcher()
	ch := d.Subscribe()
	d.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)

	// Unsubscribing twice must not panic.
	d.Unsubscribe(ch)

	// Dispatching after unsubscribe must not panic either.
	d.Dispatch("wss://relay.test", DirectionReceived, []any{"NOTICE", "bye"})
}

func TestSlowSubscriberDoesNotBlockDispatch(t *testing.T) {
	d := NewDispatcher()
	ch := d.Subscribe() // never read from
	defer d.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			d.Dispatch("wss://relay.test", DirectionReceived, []any{"EVENT", "sub", map[string]any{}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch blocked on a slow subscriber")
	}
	assert.Equal(t, 200, d.Len())
}

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mroxso/nostr-debug/internal/util"
)

const ssePingInterval = 25 * time.Second

// streamLiveHandler pushes stream records to the browser as they are
// dispatched. A short backlog is replayed first so a fresh page is not
// empty; after that the client only sees live records.
// GET /stream/live
func streamLiveHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		util.RespondInternalError(w, "SSE not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sseClientsActive.Add(1)
	defer sseClientsActive.Add(-1)

	// Subscribe before replaying the backlog so no record is missed;
	// the client dedupes the overlap by record id.
	ch := dispatcher.Subscribe()
	defer dispatcher.Unsubscribe(ch)

	backlog := dispatcher.Snapshot()
	if len(backlog) > 50 {
		backlog = backlog[:50]
	}
	// Oldest first so the client renders in arrival order.
	for i := len(backlog) - 1; i >= 0; i-- {
		if !writeSSERecord(w, backlog[i]) {
			return
		}
	}
	flusher.Flush()

	slog.Debug("SSE client connected", "remote_addr", r.RemoteAddr)

	ping := time.NewTicker(ssePingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			slog.Debug("SSE client disconnected", "remote_addr", r.RemoteAddr)
			return
		case rec, open := <-ch:
			if !open {
				return
			}
			if !writeSSERecord(w, rec) {
				return
			}
			flusher.Flush()
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSERecord(w http.ResponseWriter, rec any) bool {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Debug("failed to marshal SSE record", "error", err)
		return true
	}
	_, err = fmt.Fprintf(w, "event: record\ndata: %s\n\n", data)
	return err == nil
}

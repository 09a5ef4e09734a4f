package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mroxso/nostr-debug/internal/relay"
	"github.com/mroxso/nostr-debug/internal/stream"
	"github.com/mroxso/nostr-debug/internal/util"
)

type relayRequest struct {
	URL string `json:"url"`
}

type relayListResponse struct {
	Relays []relay.Info `json:"relays"`
}

type streamResponse struct {
	Records []stream.Record `json:"records"`
	Total   int             `json:"total"`
}

// eventDraft is a hand-authored event to be signed with the console
// identity before sending.
type eventDraft struct {
	Kind    int        `json:"kind"`
	Tags    [][]string `json:"tags"`
	Content string     `json:"content"`
}

type sendRequest struct {
	Target  string          `json:"target"` // "all" or a relay URL
	Payload json.RawMessage `json:"payload,omitempty"`
	Event   *eventDraft     `json:"event,omitempty"`
}

// relaysHandler manages the relay registry.
// GET /relays lists, POST adds, DELETE removes.
func relaysHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		util.WriteJSON(w, http.StatusOK, relayListResponse{Relays: registry.List()})

	case http.MethodPost:
		req, ok := decodeRelayRequest(w, r)
		if !ok {
			return
		}
		info, err := registry.Add(req.URL)
		if err != nil {
			respondRegistryError(w, err)
			return
		}
		util.WriteJSON(w, http.StatusCreated, info)

	case http.MethodDelete:
		req, ok := decodeRelayRequest(w, r)
		if !ok {
			return
		}
		registry.Remove(req.URL)
		w.WriteHeader(http.StatusNoContent)

	default:
		util.RespondMethodNotAllowed(w, "use GET, POST or DELETE")
	}
}

// relayConnectHandler opens a transport to a registered relay.
// POST /relays/connect {"url": "wss://..."}
func relayConnectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		util.RespondMethodNotAllowed(w, "use POST")
		return
	}
	req, ok := decodeRelayRequest(w, r)
	if !ok {
		return
	}

	// The dial outlives this request, so it must not ride on r.Context().
	if err := registry.Connect(context.Background(), req.URL); err != nil {
		respondRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// relayDisconnectHandler requests a transport close for a relay.
// POST /relays/disconnect {"url": "wss://..."}
func relayDisconnectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		util.RespondMethodNotAllowed(w, "use POST")
		return
	}
	req, ok := decodeRelayRequest(w, r)
	if !ok {
		return
	}
	if err := registry.Disconnect(req.URL); err != nil {
		respondRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// sendHandler transmits a hand-authored message to one or all connected
// relays. The payload is either given verbatim or drafted as an event to
// be signed with the console identity and wrapped in ["EVENT", ...].
func sendHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		util.RespondMethodNotAllowed(w, "use POST")
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.RespondBadRequest(w, "invalid JSON body")
		return
	}

	var payload any
	switch {
	case req.Event != nil:
		ev, err := debugIdentity.Sign(req.Event.Kind, req.Event.Tags, req.Event.Content, time.Now())
		if err != nil {
			slog.Error("failed to sign event draft", "error", err)
			util.RespondInternalError(w, "failed to sign event")
			return
		}
		payload = []any{"EVENT", ev}
	case len(req.Payload) > 0:
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			util.RespondBadRequest(w, "payload is not valid JSON")
			return
		}
	default:
		util.RespondBadRequest(w, "either payload or event is required")
		return
	}

	res, err := registry.Send(req.Target, payload)
	if err != nil {
		respondRegistryError(w, err)
		return
	}

	sendSuccessTotal.Add(int64(res.Sent))
	sendFailureTotal.Add(int64(len(res.Failures)))
	util.WriteJSON(w, http.StatusOK, res)
}

// streamHandler returns the current stream, newest first.
// GET /stream?limit=100
func streamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		util.RespondMethodNotAllowed(w, "use GET")
		return
	}

	records := dispatcher.Snapshot()
	total := len(records)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			util.RespondBadRequest(w, "invalid limit")
			return
		}
		if limit < len(records) {
			records = records[:limit]
		}
	}
	util.WriteJSON(w, http.StatusOK, streamResponse{Records: records, Total: total})
}

// streamClearHandler discards all stream records.
// POST /stream/clear
func streamClearHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		util.RespondMethodNotAllowed(w, "use POST")
		return
	}
	dispatcher.Clear()
	slog.Info("stream cleared")
	w.WriteHeader(http.StatusNoContent)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func decodeRelayRequest(w http.ResponseWriter, r *http.Request) (relayRequest, bool) {
	var req relayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		util.RespondBadRequest(w, "body must be JSON with a url field")
		return relayRequest{}, false
	}
	return req, true
}

// respondRegistryError maps the registry/send error taxonomy onto HTTP
// statuses. Transport-level failures never reach this path; they live in
// the stream.
func respondRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, relay.ErrInvalidURL):
		util.RespondBadRequest(w, err.Error())
	case errors.Is(err, relay.ErrUnknownRelay):
		util.RespondNotFound(w, err.Error())
	case errors.Is(err, relay.ErrDuplicateRelay),
		errors.Is(err, relay.ErrNoConnectedRelays),
		errors.Is(err, relay.ErrTargetNotConnected):
		util.RespondConflict(w, err.Error())
	default:
		util.RespondInternalError(w, err.Error())
	}
}

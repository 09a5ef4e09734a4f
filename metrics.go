package main

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/mroxso/nostr-debug/internal/relay"
)

// HTTP metrics
var (
	httpRequestsTotal atomic.Int64
	httpErrorsTotal   atomic.Int64
)

// Send metrics
var (
	sendSuccessTotal atomic.Int64
	sendFailureTotal atomic.Int64
)

// SSE connection metrics
var (
	sseClientsActive atomic.Int64
)

var serverStartTime = time.Now()

// metricsHandler serves Prometheus-compatible metrics
func metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Build info metric
	fmt.Fprintf(w, "# HELP nostr_debug_build_info Build and configuration information\n")
	fmt.Fprintf(w, "# TYPE nostr_debug_build_info gauge\n")
	fmt.Fprintf(w, "nostr_debug_build_info{go_version=%q} 1\n\n", runtime.Version())

	// Process metrics
	fmt.Fprintf(w, "# HELP process_start_time_seconds Unix timestamp of process start\n")
	fmt.Fprintf(w, "# TYPE process_start_time_seconds gauge\n")
	fmt.Fprintf(w, "process_start_time_seconds %d\n\n", serverStartTime.Unix())

	fmt.Fprintf(w, "# HELP process_uptime_seconds Time since process started\n")
	fmt.Fprintf(w, "# TYPE process_uptime_seconds gauge\n")
	fmt.Fprintf(w, "process_uptime_seconds %.0f\n\n", time.Since(serverStartTime).Seconds())

	// Go runtime metrics
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	fmt.Fprintf(w, "# HELP go_goroutines Number of active goroutines\n")
	fmt.Fprintf(w, "# TYPE go_goroutines gauge\n")
	fmt.Fprintf(w, "go_goroutines %d\n\n", runtime.NumGoroutine())

	fmt.Fprintf(w, "# HELP go_memstats_alloc_bytes Currently allocated memory in bytes\n")
	fmt.Fprintf(w, "# TYPE go_memstats_alloc_bytes gauge\n")
	fmt.Fprintf(w, "go_memstats_alloc_bytes %d\n\n", memStats.Alloc)

	// HTTP metrics
	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", httpRequestsTotal.Load())

	fmt.Fprintf(w, "# HELP http_errors_total Total number of HTTP 5xx errors\n")
	fmt.Fprintf(w, "# TYPE http_errors_total counter\n")
	fmt.Fprintf(w, "http_errors_total %d\n\n", httpErrorsTotal.Load())

	// Relay metrics
	registered := 0
	connected := 0
	for _, info := range registry.List() {
		registered++
		if info.State == relay.StateConnected {
			connected++
		}
	}
	fmt.Fprintf(w, "# HELP nostr_debug_relays_registered Number of relays in the registry\n")
	fmt.Fprintf(w, "# TYPE nostr_debug_relays_registered gauge\n")
	fmt.Fprintf(w, "nostr_debug_relays_registered %d\n\n", registered)

	fmt.Fprintf(w, "# HELP nostr_debug_relays_connected Number of relays currently connected\n")
	fmt.Fprintf(w, "# TYPE nostr_debug_relays_connected gauge\n")
	fmt.Fprintf(w, "nostr_debug_relays_connected %d\n\n", connected)

	// Stream metrics
	fmt.Fprintf(w, "# HELP nostr_debug_stream_records Records currently held in the stream\n")
	fmt.Fprintf(w, "# TYPE nostr_debug_stream_records gauge\n")
	fmt.Fprintf(w, "nostr_debug_stream_records %d\n\n", dispatcher.Len())

	fmt.Fprintf(w, "# HELP nostr_debug_records_dispatched_total Records dispatched since start, including cleared ones\n")
	fmt.Fprintf(w, "# TYPE nostr_debug_records_dispatched_total counter\n")
	fmt.Fprintf(w, "nostr_debug_records_dispatched_total %d\n\n", dispatcher.TotalDispatched())

	// Send metrics
	fmt.Fprintf(w, "# HELP nostr_debug_sends_total Per-relay deliveries that succeeded\n")
	fmt.Fprintf(w, "# TYPE nostr_debug_sends_total counter\n")
	fmt.Fprintf(w, "nostr_debug_sends_total %d\n\n", sendSuccessTotal.Load())

	fmt.Fprintf(w, "# HELP nostr_debug_send_failures_total Per-relay deliveries that failed\n")
	fmt.Fprintf(w, "# TYPE nostr_debug_send_failures_total counter\n")
	fmt.Fprintf(w, "nostr_debug_send_failures_total %d\n\n", sendFailureTotal.Load())

	// SSE metrics
	fmt.Fprintf(w, "# HELP sse_clients_active Number of active SSE stream clients\n")
	fmt.Fprintf(w, "# TYPE sse_clients_active gauge\n")
	fmt.Fprintf(w, "sse_clients_active %d\n", sseClientsActive.Load())
}

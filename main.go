package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/mroxso/nostr-debug/internal/keys"
	"github.com/mroxso/nostr-debug/internal/relay"
	"github.com/mroxso/nostr-debug/internal/stream"
)

// Request body size limits
const (
	maxBodySize = 32 * 1024 // 32KB for POST requests
)

var (
	dispatcher    *stream.Dispatcher
	registry      *relay.Registry
	debugIdentity *keys.Identity
)

// limitBody wraps an HTTP handler to limit request body size
func limitBody(next http.HandlerFunc, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next(w, r)
	}
}

// securityHeaders wraps an HTTP handler to add security headers
func securityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The console page uses inline styles/scripts and talks only to
		// its own origin.
		csp := "default-src 'self'; " +
			"img-src 'self' data:; " +
			"style-src 'self' 'unsafe-inline'; " +
			"script-src 'self' 'unsafe-inline'"
		w.Header().Set("Content-Security-Policy", csp)

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")

		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Referrer policy - don't leak full URLs to external sites
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next(w, r)
	}
}

func main() {
	// Optional .env for local development; env vars win
	_ = godotenv.Load()
	InitLogger()
	initTemplates()

	dispatcher = stream.NewDispatcher()
	registry = relay.NewRegistry(dispatcher, nil)
	debugIdentity = loadIdentity()
	preloadRelays(registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	http.HandleFunc("/", securityHeaders(indexHandler))
	http.HandleFunc("/help", securityHeaders(helpHandler))

	// Registry and send commands
	http.HandleFunc("/relays", securityHeaders(limitBody(relaysHandler, maxBodySize)))
	http.HandleFunc("/relays/connect", securityHeaders(limitBody(relayConnectHandler, maxBodySize)))
	http.HandleFunc("/relays/disconnect", securityHeaders(limitBody(relayDisconnectHandler, maxBodySize)))
	http.HandleFunc("/send", securityHeaders(limitBody(sendHandler, maxBodySize)))

	// Stream
	http.HandleFunc("/stream", securityHeaders(streamHandler))
	http.HandleFunc("/stream/clear", securityHeaders(streamClearHandler))
	http.HandleFunc("/stream/live", streamLiveHandler)

	// Identity
	http.HandleFunc("/identity", identityHandler)
	http.HandleFunc("/identity/qr", identityQRHandler)

	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/metrics", metricsHandler)

	slog.Info("starting nostr-debug console", "port", port)
	if err := http.ListenAndServe(":"+port, RequestLoggingMiddleware(http.DefaultServeMux)); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

package main

import (
	"log/slog"
	"net/http"
	"os"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/mroxso/nostr-debug/internal/keys"
	"github.com/mroxso/nostr-debug/internal/util"
)

// loadIdentity builds the console's signing identity from the
// NOSTR_SECRET_KEY env var (hex or nsec). Without one, a throwaway key
// is generated for this process.
func loadIdentity() *keys.Identity {
	if secret := os.Getenv("NOSTR_SECRET_KEY"); secret != "" {
		id, err := keys.Parse(secret)
		if err != nil {
			slog.Error("invalid NOSTR_SECRET_KEY, generating throwaway key", "error", err)
		} else {
			slog.Info("loaded signing identity", "pubkey", id.PublicKeyHex())
			return id
		}
	}

	id, err := keys.Generate()
	if err != nil {
		slog.Error("failed to generate identity", "error", err)
		os.Exit(1)
	}
	slog.Info("generated throwaway signing identity", "pubkey", id.PublicKeyHex())
	return id
}

// identityHandler reports the console's signing identity.
// GET /identity
func identityHandler(w http.ResponseWriter, r *http.Request) {
	npub, err := debugIdentity.Npub()
	if err != nil {
		util.RespondInternalError(w, "failed to encode npub")
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]string{
		"pubkey": debugIdentity.PublicKeyHex(),
		"npub":   npub,
	})
}

// identityQRHandler renders the npub as a QR code for pairing a mobile
// client with the console identity.
// GET /identity/qr
func identityQRHandler(w http.ResponseWriter, r *http.Request) {
	npub, err := debugIdentity.Npub()
	if err != nil {
		util.RespondInternalError(w, "failed to encode npub")
		return
	}
	png, err := qrcode.Encode(npub, qrcode.Medium, 256)
	if err != nil {
		util.RespondInternalError(w, "failed to render QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=3600")
	w.Write(png)
}

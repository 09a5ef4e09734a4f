package main

import (
	_ "embed"
	"bytes"
	"log/slog"
	"net/http"
	"sync"

	"github.com/yuin/goldmark"

	"github.com/mroxso/nostr-debug/internal/util"
)

//go:embed templates/help.md
var helpMarkdown []byte

var (
	helpOnce sync.Once
	helpHTML []byte
)

// helpHandler serves the protocol cheat sheet, rendered from markdown
// once and cached for the process lifetime.
// GET /help
func helpHandler(w http.ResponseWriter, r *http.Request) {
	helpOnce.Do(func() {
		var buf bytes.Buffer
		buf.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>nostr-debug help</title>` +
			`<style>body{font-family:monospace;max-width:48rem;margin:2rem auto;padding:0 1rem;line-height:1.5}` +
			`pre{background:#f0f0f0;padding:.5rem;overflow-x:auto}</style></head><body>`)
		if err := goldmark.Convert(helpMarkdown, &buf); err != nil {
			slog.Error("failed to render help page", "error", err)
			helpHTML = nil
			return
		}
		buf.WriteString(`</body></html>`)
		helpHTML = buf.Bytes()
	})

	if helpHTML == nil {
		util.RespondInternalError(w, "help page unavailable")
		return
	}
	util.SetHTMLHeaders(w)
	w.Write(helpHTML)
}

package main

import (
	_ "embed"
	"html/template"
	"log/slog"
	"net/http"
	"os"

	"github.com/mroxso/nostr-debug/internal/util"
)

//go:embed templates/index.html
var indexHTML string

var indexTemplate *template.Template

// initTemplates compiles the console page at startup so a broken
// template fails fast instead of on first request.
func initTemplates() {
	t, err := template.New("index").Parse(indexHTML)
	if err != nil {
		slog.Error("failed to compile index template", "error", err)
		os.Exit(1)
	}
	indexTemplate = t
}

// indexHandler renders the debug console page.
func indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		util.RespondNotFound(w, "not found")
		return
	}
	util.SetHTMLHeaders(w)
	if err := indexTemplate.Execute(w, nil); err != nil {
		slog.Debug("failed to render index", "error", err)
	}
}

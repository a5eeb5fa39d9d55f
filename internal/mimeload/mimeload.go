// Package mimeload wires a config.Store's MIME_FILE parameter into a
// mimetable.Table at startup, falling back to a small built-in table
// when no MIME_FILE was configured so the server is still usable
// without one.
//
// Grounded on the teacher's coffer.go, which falls back to the standard
// library's mime.TypeByExtension when no asset-specific type is known;
// here that same fallback set seeds the table instead of being
// consulted per-request.
package mimeload

import (
	"github.com/dieortin/http-server/config"
	"github.com/dieortin/http-server/mimetable"
)

// defaults seeds the table when no MIME_FILE is configured, or supplies
// entries a configured file didn't cover.
var defaults = map[string]string{
	"html": "text/html",
	"htm":  "text/html",
	"css":  "text/css",
	"js":   "application/javascript",
	"json": "application/json",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"txt":  "text/plain",
	"pdf":  "application/pdf",
}

// Load builds a mimetable.Table from store's MIME_FILE parameter (if
// present), then fills any extension neither the file nor a prior
// insertion covered from the built-in defaults.
func Load(store *config.Store) (*mimetable.Table, error) {
	table := mimetable.New()

	if path, err := store.GetStringOption(config.MimeFile); err == nil {
		if err := table.LoadFile(path); err != nil {
			return nil, err
		}
	}

	for ext, typ := range defaults {
		if _, ok := table.Lookup(ext); !ok {
			table.AddDefault(ext, typ)
		}
	}

	return table, nil
}

// Author: Toluwalase Mebaanne
// Package handlers turns snippet content into a save-ready body and an
// authoritative destination path.
//
// Generated code often starts with a comment naming where it belongs,
// e.g. "# Path: app/main.py" or "<!-- Path: site/index.html -->". The
// comment syntax, and whether a directive such as "<?php" has to stay on
// line one, depends on the content family, so each family is a separate
// handler registered by the extensions it owns.

package handlers

import "errors"

var (
	ErrNoHandler       = errors.New("handlers: no handler for content")
	ErrEmptyContent    = errors.New("handlers: content is empty")
	ErrContentTooLarge = errors.New("handlers: content too large")
)

// ContentHandler processes one content family.
type ContentHandler interface {
	// GetType names the family for logs.
	GetType() string

	// Extensions lists the extensions this handler owns, lower case with
	// the leading dot. The first entry is the canonical extension.
	Extensions() []string

	// CanHandle reports whether ext belongs to this handler.
	CanHandle(ext string) bool

	// Detect reports whether content is written in this family's comment
	// style. It is the last resort when no extension is known.
	Detect(content string) bool

	// Process extracts the destination and normalizes the body. pathHint
	// is used only when the content declares no path.
	Process(content, pathHint string) (Result, error)
}

// Result is the outcome of Process.
type Result struct {
	Content string
	Path    string

	// Declared is true when Path came from the content itself.
	Declared bool
}

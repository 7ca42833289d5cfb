// Author: Toluwalase Mebaanne
// Package notify shows desktop notifications when snippets land on disk.

package notify

import (
	"path/filepath"

	"github.com/rs/zerolog/log"
)

const appName = "SnipBridge"

// Notifier is told about every saved snippet.
type Notifier interface {
	SnippetSaved(id, path string)
}

// Desktop shows a native notification per saved snippet. Failures are
// logged and otherwise ignored.
type Desktop struct{}

// SnippetSaved implements Notifier.
func (Desktop) SnippetSaved(id, path string) {
	title := appName + " - Snippet Saved"
	body := filepath.Base(path) + "\n" + path
	if err := show(title, body); err != nil {
		log.Warn().Err(err).Str("id", id).Msg("failed to show notification")
	}
}

// Func adapts a function to Notifier.
type Func func(id, path string)

// SnippetSaved implements Notifier.
func (f Func) SnippetSaved(id, path string) {
	f(id, path)
}

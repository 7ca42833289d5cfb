// Author: Toluwalase Mebaanne
// Package main provides clipboard access and the clipboard watcher, which
// forwards copied snippets that declare their own destination.

package main

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"

	"github.com/tmair/snipbridge/shared/handlers"
	"github.com/tmair/snipbridge/shared/notify"
)

const pruneInterval = time.Minute

// readClipboard returns the current clipboard text.
func readClipboard() (string, error) {
	return clipboard.ReadAll()
}

// writeClipboard replaces the clipboard text.
func writeClipboard(text string) error {
	return clipboard.WriteAll(text)
}

func contentHash(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// recentCache remembers content hashes for maxAge so the same snippet is
// not sent twice when the clipboard flips back and forth.
// WHY hashes: snippets can be large, and a BLAKE3 digest keeps the cache
// small no matter what was copied.
type recentCache struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	maxAge time.Duration
}

func newRecentCache(maxAge time.Duration) *recentCache {
	return &recentCache{
		seen:   make(map[string]time.Time),
		maxAge: maxAge,
	}
}

func (c *recentCache) Add(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[hash] = time.Now()
}

func (c *recentCache) Contains(hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.seen[hash]
	if !ok {
		return false
	}
	if time.Since(at) > c.maxAge {
		delete(c.seen, hash)
		return false
	}
	return true
}

func (c *recentCache) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for hash, at := range c.seen {
		if now.Sub(at) > c.maxAge {
			delete(c.seen, hash)
		}
	}
}

// SaveFunc sends one snippet and returns where it was saved.
type SaveFunc func(id, hint, content string) (string, error)

// Watcher polls the clipboard and saves every new snippet that carries a
// "Path:" declaration. Anything else on the clipboard is ignored.
type Watcher struct {
	read     func() (string, error)
	save     SaveFunc
	notifier notify.Notifier
	interval time.Duration
	cache    *recentCache
	lastHash string
}

// NewWatcher creates a Watcher reading the system clipboard. notifier may
// be nil.
func NewWatcher(save SaveFunc, interval time.Duration, notifier notify.Notifier) *Watcher {
	return &Watcher{
		read:     readClipboard,
		save:     save,
		notifier: notifier,
		interval: interval,
		cache:    newRecentCache(5 * time.Minute),
	}
}

// Prime records the current clipboard so it is not sent on the first poll.
// WHY: starting the watcher must not save whatever happened to be copied
// before it ran.
func (w *Watcher) Prime() {
	if text, err := w.read(); err == nil && text != "" {
		w.lastHash = contentHash(text)
	}
}

// Poll checks the clipboard once. It returns the saved path when a snippet
// was sent.
func (w *Watcher) Poll() (string, bool) {
	text, err := w.read()
	if err != nil {
		log.Warn().Err(err).Msg("failed to read clipboard")
		return "", false
	}
	if text == "" {
		return "", false
	}

	hash := contentHash(text)
	if hash == w.lastHash {
		return "", false
	}
	w.lastHash = hash
	if w.cache.Contains(hash) {
		return "", false
	}

	hint, ok := handlers.DeclaredPath(text)
	if !ok {
		log.Debug().Msg("clipboard changed without a path declaration")
		return "", false
	}
	w.cache.Add(hash)

	id := newID()
	path, err := w.save(id, hint, text)
	if err != nil {
		log.Error().Err(err).Str("hint", hint).Msg("failed to save clipboard snippet")
		return "", false
	}
	log.Info().Str("id", id).Str("path", path).Msg("clipboard snippet saved")
	if w.notifier != nil {
		w.notifier.SnippetSaved(id, path)
	}
	return path, true
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, onSaved func(path string)) {
	w.Prime()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	pruneTicker := time.NewTicker(pruneInterval)
	defer pruneTicker.Stop()

	log.Info().Dur("interval", w.interval).Msg("clipboard polling started")
	for {
		select {
		case <-ticker.C:
			if path, ok := w.Poll(); ok && onSaved != nil {
				onSaved(path)
			}
		case <-pruneTicker.C:
			w.cache.Prune()
		case <-ctx.Done():
			return
		}
	}
}

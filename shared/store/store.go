// Author: Toluwalase Mebaanne
// Package store keeps assistant messages in an append-only log.
//
// WHY append-only:
// Messages are a log of what the assistant produced. Nothing edits or
// deletes them, so each backend only needs Append and Recent, and a
// duplicate id becomes a second row or a suffixed file instead of an
// overwrite.

package store

import (
	"context"
	"fmt"

	"github.com/tmair/snipbridge/shared/config"
	"github.com/tmair/snipbridge/shared/models"
)

// Store is an append-only message log. Appending an id that already
// exists adds a second entry; nothing is ever replaced.
type Store interface {
	// Append records the entry and returns its id.
	Append(ctx context.Context, entry *models.Entry) (string, error)

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]models.Entry, error)

	Close() error
}

// Open builds the backend selected by cfg.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.StoreSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case config.StoreJSON:
		return NewJSONStore(cfg.MessagesDir)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

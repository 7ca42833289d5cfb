// Author: Toluwalase Mebaanne

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tmair/snipbridge/shared/files"
	"github.com/tmair/snipbridge/shared/models"
)

var unsafeNameRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// JSONStore writes one <id>.json file per message. A repeated id gets
// the usual (n) suffix, so earlier entries are never overwritten.
type JSONStore struct {
	dir string
}

// NewJSONStore creates dir if needed.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create messages dir: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

// Append implements Store.
func (s *JSONStore) Append(ctx context.Context, entry *models.Entry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}
	path := filepath.Join(s.dir, fileName(entry.ID))
	if _, err := files.Save(path, string(data)+"\n", false); err != nil {
		return "", fmt.Errorf("failed to write message: %w", err)
	}
	return entry.ID, nil
}

// Recent implements Store by reading every file in the directory.
func (s *JSONStore) Recent(ctx context.Context, limit int) ([]models.Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	var entries []models.Entry
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, de.Name()))
		if err != nil {
			log.Warn().Err(err).Str("file", de.Name()).Msg("skipping unreadable message")
			continue
		}
		var e models.Entry
		if err := json.Unmarshal(data, &e); err != nil {
			log.Warn().Err(err).Str("file", de.Name()).Msg("skipping malformed message")
			continue
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ReceivedAt.After(entries[j].ReceivedAt)
	})
	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Close implements Store.
func (s *JSONStore) Close() error {
	return nil
}

func fileName(id string) string {
	name := strings.Trim(unsafeNameRe.ReplaceAllString(id, "_"), ".")
	if name == "" {
		name = "message"
	}
	return name + ".json"
}

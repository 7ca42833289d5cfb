// Author: Toluwalase Mebaanne

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Registers the "sqlite3" database/sql driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/tmair/snipbridge/shared/models"
)

// SQLiteStore keeps messages in a single SQLite file.
// WHY SQLite: the hub already ships as one binary with no external services,
// and an embedded database keeps it that way while making history queryable.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// WHY WAL: the history endpoint reads while sessions append. WAL lets
	// readers proceed during a write; busy_timeout covers the rare writer
	// overlap between sessions.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sql.Open does not connect.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.CreateTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// CreateTables sets up the schema. It is safe to call on every start.
// WHY seq: message ids come from clients and may repeat, so rows are keyed
// by an autoincrement sequence that also gives Recent a stable order.
func (s *SQLiteStore) CreateTables() error {
	messagesSQL := `
	CREATE TABLE IF NOT EXISTS messages (
		seq          INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id   TEXT NOT NULL,
		file_path    TEXT NOT NULL DEFAULT '',
		content      TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		received_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_id ON messages(message_id);
	CREATE INDEX IF NOT EXISTS idx_messages_hash ON messages(content_hash);
	`
	if _, err := s.db.Exec(messagesSQL); err != nil {
		return fmt.Errorf("failed to create messages table: %w", err)
	}
	return nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, entry *models.Entry) (string, error) {
	query := `
	INSERT INTO messages (message_id, file_path, content, content_hash, received_at)
	VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.FilePath,
		entry.Content,
		entry.ContentHash,
		entry.ReceivedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}
	return entry.ID, nil
}

// Recent implements Store.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]models.Entry, error) {
	query := `
	SELECT message_id, file_path, content, content_hash, received_at
	FROM messages
	ORDER BY seq DESC
	LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		var e models.Entry
		var ts string
		if err := rows.Scan(&e.ID, &e.FilePath, &e.Content, &e.ContentHash, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		e.ReceivedAt, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse message timestamp: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return entries, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

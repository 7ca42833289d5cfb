// Author: Toluwalase Mebaanne
// Package models defines the records kept by the message store.

package models

import (
	"encoding/hex"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// messageIDRe matches the id attribute chat pages put on message nodes.
var messageIDRe = regexp.MustCompile(`data-message-id="([^"]+)"`)

// Entry is one stored assistant message. The JSON shape is what the
// message directory holds on disk; readers depend on it.
type Entry struct {
	ID          string    `json:"id"`
	FilePath    string    `json:"filePath,omitempty"`
	Content     string    `json:"content"`
	ContentHash string    `json:"contentHash"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

// NewEntry builds an entry. An empty id is recovered from the content's
// data-message-id attribute, or generated.
func NewEntry(id, filePath, content string) *Entry {
	e := &Entry{
		ID:         id,
		FilePath:   filePath,
		Content:    content,
		ReceivedAt: time.Now().UTC(),
	}
	if e.ID == "" {
		e.ID = MessageIDFromContent(content)
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.SetContentHash()
	return e
}

// MessageIDFromContent returns the first data-message-id attribute value
// in content, or "".
func MessageIDFromContent(content string) string {
	if m := messageIDRe.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return ""
}

// ComputeContentHash returns the hex BLAKE3-256 digest of the content.
func (e *Entry) ComputeContentHash() string {
	sum := blake3.Sum256([]byte(e.Content))
	return hex.EncodeToString(sum[:])
}

// SetContentHash stores the digest of the current content.
func (e *Entry) SetContentHash() {
	e.ContentHash = e.ComputeContentHash()
}

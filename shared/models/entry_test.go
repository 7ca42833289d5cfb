package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewEntryKeepsGivenID(t *testing.T) {
	e := NewEntry("msg-1", "chat/1", "hello")
	if e.ID != "msg-1" {
		t.Fatalf("id = %q", e.ID)
	}
	if e.ContentHash == "" || e.ContentHash != e.ComputeContentHash() {
		t.Fatalf("hash not set: %q", e.ContentHash)
	}
	if len(e.ContentHash) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(e.ContentHash))
	}
}

func TestNewEntryIDFromContent(t *testing.T) {
	html := `<div data-message-id="aaa-bbb" dir="auto">hi</div>`
	e := NewEntry("", "", html)
	if e.ID != "aaa-bbb" {
		t.Fatalf("id = %q, want aaa-bbb", e.ID)
	}
}

func TestNewEntryGeneratesID(t *testing.T) {
	e := NewEntry("", "", "plain")
	if _, err := uuid.Parse(e.ID); err != nil {
		t.Fatalf("expected generated uuid, got %q: %v", e.ID, err)
	}
}

func TestContentHashDiffers(t *testing.T) {
	a := NewEntry("1", "", "a")
	b := NewEntry("1", "", "b")
	if a.ContentHash == b.ContentHash {
		t.Fatal("different content must hash differently")
	}
}

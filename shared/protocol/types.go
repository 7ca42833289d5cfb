// Author: Toluwalase Mebaanne
// Package protocol defines the JSON commands a client sends and the
// envelopes the server answers with. Both transports carry exactly these
// shapes; only the framing around them differs.

package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wire values of the "type", "kind" and "status" fields.
const (
	TypeSync        = "SYNC"
	TypeFileContent = "FILE_CONTENT"

	KindSnippet   = "snippet"
	KindAssistant = "assistant"

	StatusSuccess = "success"
	StatusError   = "error"
)

// Command is one decoded client request. The set of implementations is
// closed: Sync, Snippet and AssistantMessage.
type Command interface {
	command()
}

// Sync asks the server to stream every tracked file under Destination.
type Sync struct {
	Destination string
}

// Snippet asks the server to persist Content. FilePath is a hint; the
// content may declare its own destination.
type Snippet struct {
	ID       string
	FilePath string
	Content  string

	// Overwrite overrides the server's default policy when non-nil.
	Overwrite *bool
}

// AssistantMessage hands a chat message to the message store.
type AssistantMessage struct {
	ID       string
	FilePath string
	Content  string
}

func (Sync) command()             {}
func (Snippet) command()          {}
func (AssistantMessage) command() {}

// Response is the reply envelope. ID is a pointer because an absent id and
// an empty id are different things on the wire.
type Response struct {
	Status    string  `json:"status"`
	SavedPath string  `json:"savedPath,omitempty"`
	ID        *string `json:"id,omitempty"`
	Message   string  `json:"message,omitempty"`
	Content   string  `json:"content,omitempty"`
}

// FileContent is streamed, unsolicited, once per file during a sync.
type FileContent struct {
	Type     string `json:"type"`
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
}

// Saved builds a success envelope for a persisted snippet.
func Saved(path, id string) Response {
	return Response{Status: StatusSuccess, SavedPath: path, ID: &id}
}

// Echo builds a success envelope that returns stored content.
func Echo(content string) Response {
	return Response{Status: StatusSuccess, Content: content}
}

// Failure builds an error envelope. id may be nil.
func Failure(message string, id *string) Response {
	return Response{Status: StatusError, Message: message, ID: id}
}

// NewFileContent builds a sync message.
func NewFileContent(path, content string) FileContent {
	return FileContent{Type: TypeFileContent, FilePath: path, Content: content}
}

// correlationID accepts the client's id as a JSON string or number. It is
// never interpreted beyond that.
type correlationID struct {
	value string
	set   bool
}

func (c *correlationID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &c.value); err != nil {
			return err
		}
		c.set = true
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	c.value = n.String()
	c.set = true
	return nil
}

func (c correlationID) ptr() *string {
	if !c.set {
		return nil
	}
	v := c.value
	return &v
}

// wireCommand is the loose shape of every inbound message.
type wireCommand struct {
	Type        string        `json:"type"`
	Kind        string        `json:"kind"`
	Destination string        `json:"destination"`
	FilePath    string        `json:"filePath"`
	Content     string        `json:"content"`
	ID          correlationID `json:"id"`
	Overwrite   *bool         `json:"overwrite"`
}

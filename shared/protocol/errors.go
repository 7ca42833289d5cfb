// Author: Toluwalase Mebaanne

package protocol

import "errors"

var (
	ErrMalformedInput = errors.New("protocol: malformed input")
	ErrMissingField   = errors.New("protocol: missing field")
	ErrUnknownCommand = errors.New("protocol: unknown command")
)

// Client-facing messages. Clients match on these strings.
const (
	MsgInvalidJSON        = "Invalid JSON format."
	MsgMissingDestination = "Missing destination in SYNC message."
	MsgMissingSnippetID   = "Missing snippet id."
	MsgInvalidFormat      = "Invalid message format."
	MsgUnknownType        = "Unknown message type."
)

// Error is a recoverable decode failure. It knows the reply the client
// should get.
type Error struct {
	Kind    error
	Message string
	ID      *string
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Response converts the failure into an error envelope.
func (e *Error) Response() Response {
	return Failure(e.Message, e.ID)
}

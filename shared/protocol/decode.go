// Author: Toluwalase Mebaanne

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Decode parses one inbound message. Every failure it returns is a *Error
// carrying the reply for the client.
func Decode(data []byte) (Command, error) {
	if !utf8.Valid(data) {
		return nil, &Error{Kind: ErrMalformedInput, Message: MsgInvalidJSON}
	}

	var w wireCommand
	if err := json.Unmarshal(data, &w); err != nil {
		// A field of the wrong type still leaves a readable object, so the
		// id, when it decoded, is echoed.
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &Error{Kind: ErrMalformedInput, Message: MsgInvalidFormat, ID: w.ID.ptr()}
		}
		return nil, &Error{Kind: ErrMalformedInput, Message: MsgInvalidJSON}
	}

	if w.Type == TypeSync {
		if w.Destination == "" {
			return nil, &Error{Kind: ErrMissingField, Message: MsgMissingDestination}
		}
		return Sync{Destination: w.Destination}, nil
	}

	switch w.Kind {
	case KindSnippet:
		if w.ID.value == "" {
			return nil, &Error{Kind: ErrMissingField, Message: MsgMissingSnippetID, ID: w.ID.ptr()}
		}
		return Snippet{
			ID:        w.ID.value,
			FilePath:  w.FilePath,
			Content:   w.Content,
			Overwrite: w.Overwrite,
		}, nil
	case KindAssistant:
		return AssistantMessage{
			ID:       w.ID.value,
			FilePath: w.FilePath,
			Content:  w.Content,
		}, nil
	default:
		return nil, &Error{Kind: ErrUnknownCommand, Message: MsgUnknownType}
	}
}

// Encode marshals any outbound message.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// outbound is the client-side wire shape of a command.
type outbound struct {
	Type        string `json:"type,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Destination string `json:"destination,omitempty"`
	ID          string `json:"id,omitempty"`
	FilePath    string `json:"filePath,omitempty"`
	Content     string `json:"content,omitempty"`
	Overwrite   *bool  `json:"overwrite,omitempty"`
}

// EncodeCommand marshals a command the way a client sends it.
func EncodeCommand(cmd Command) ([]byte, error) {
	var w outbound
	switch c := cmd.(type) {
	case Sync:
		w = outbound{Type: TypeSync, Destination: c.Destination}
	case Snippet:
		w = outbound{Kind: KindSnippet, ID: c.ID, FilePath: c.FilePath, Content: c.Content, Overwrite: c.Overwrite}
	case AssistantMessage:
		w = outbound{Kind: KindAssistant, ID: c.ID, FilePath: c.FilePath, Content: c.Content}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
	return json.Marshal(w)
}

// Author: Toluwalase Mebaanne
// Package dispatch routes decoded commands to the handler registry, the
// sync emitter and the message store. Both transports share it; a session
// is nothing more than a frame.ReadWriter fed through Serve.

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/tmair/snipbridge/shared/frame"
	"github.com/tmair/snipbridge/shared/models"
	"github.com/tmair/snipbridge/shared/notify"
	"github.com/tmair/snipbridge/shared/protocol"
	"github.com/tmair/snipbridge/shared/store"
	"github.com/tmair/snipbridge/shared/tracked"
)

// Saver persists a snippet and returns the path it landed on.
// *handlers.Registry is the production implementation.
type Saver interface {
	Save(pathHint, content string, overwrite bool) (string, error)
}

// Sender writes one outbound message to the session.
type Sender interface {
	Send(v any) error
}

// Options wires a Dispatcher. Saver and Store are required.
type Options struct {
	Saver  Saver
	Store  store.Store
	Lister tracked.Lister

	// Notifier is told about saved snippets. Optional.
	Notifier notify.Notifier

	// Overwrite is used for snippets that carry no overwrite flag.
	Overwrite bool

	// IgnoreExtensions extends the built-in sync deny list.
	IgnoreExtensions []string
}

// Dispatcher executes commands. It holds no per-session state and is
// safe to share between sessions.
type Dispatcher struct {
	saver     Saver
	store     store.Store
	lister    tracked.Lister
	notifier  notify.Notifier
	overwrite bool
	deny      map[string]struct{}
}

// New builds a Dispatcher. A nil Lister means git.
func New(opts Options) (*Dispatcher, error) {
	if opts.Saver == nil {
		return nil, errors.New("dispatch: saver is required")
	}
	if opts.Store == nil {
		return nil, errors.New("dispatch: store is required")
	}
	lister := opts.Lister
	if lister == nil {
		lister = tracked.Git{}
	}
	return &Dispatcher{
		saver:     opts.Saver,
		store:     opts.Store,
		lister:    lister,
		notifier:  opts.Notifier,
		overwrite: opts.Overwrite,
		deny:      denySet(opts.IgnoreExtensions),
	}, nil
}

// Handle decodes and executes one inbound message. It returns the reply,
// or nil when the command answers through out instead (sync).
func (d *Dispatcher) Handle(ctx context.Context, data []byte, out Sender) *protocol.Response {
	cmd, err := protocol.Decode(data)
	if err != nil {
		var perr *protocol.Error
		if errors.As(err, &perr) {
			log.Warn().Err(err).Msg("rejected message")
			resp := perr.Response()
			return &resp
		}
		log.Error().Err(err).Msg("decode failed")
		resp := protocol.Failure(protocol.MsgInvalidJSON, nil)
		return &resp
	}

	switch c := cmd.(type) {
	case protocol.Sync:
		sent := d.emitFiles(ctx, c.Destination, out)
		log.Info().Str("destination", c.Destination).Int("files", sent).Msg("sync finished")
		return nil
	case protocol.Snippet:
		resp := d.saveSnippet(c)
		return &resp
	case protocol.AssistantMessage:
		resp := d.storeMessage(ctx, c)
		return &resp
	default:
		resp := protocol.Failure(protocol.MsgUnknownType, nil)
		return &resp
	}
}

func (d *Dispatcher) saveSnippet(c protocol.Snippet) protocol.Response {
	id := c.ID
	if c.FilePath == "" || c.Content == "" {
		return protocol.Failure(protocol.MsgInvalidFormat, &id)
	}

	overwrite := d.overwrite
	if c.Overwrite != nil {
		overwrite = *c.Overwrite
	}

	path, err := d.saver.Save(c.FilePath, c.Content, overwrite)
	if err != nil {
		log.Error().Err(err).Str("id", id).Str("hint", c.FilePath).Msg("failed to save snippet")
		return protocol.Failure(fmt.Sprintf("Failed to save file: %v", err), &id)
	}

	log.Info().Str("id", id).Str("path", path).Msg("snippet saved")
	if d.notifier != nil {
		d.notifier.SnippetSaved(id, path)
	}
	return protocol.Saved(path, id)
}

func (d *Dispatcher) storeMessage(ctx context.Context, c protocol.AssistantMessage) protocol.Response {
	if c.Content == "" {
		return protocol.Failure(protocol.MsgInvalidFormat, nil)
	}

	entry := models.NewEntry(c.ID, c.FilePath, c.Content)
	id, err := d.store.Append(ctx, entry)
	if err != nil {
		log.Error().Err(err).Str("id", entry.ID).Msg("failed to store message")
		return protocol.Failure(fmt.Sprintf("Failed to store message: %v", err), nil)
	}

	log.Info().Str("id", id).Int("bytes", len(c.Content)).Msg("assistant message stored")
	return protocol.Echo(c.Content)
}

// Serve runs one session: messages are read and answered strictly in
// order until the peer goes away. A clean close returns nil; a framing or
// write error is returned and ends the session.
func (d *Dispatcher) Serve(ctx context.Context, conn frame.ReadWriter) error {
	out := NewFrameSender(conn)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		data, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || frame.IsClosed(err) {
				log.Debug().Msg("session closed by peer")
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		resp := d.Handle(ctx, data, out)
		if resp == nil {
			continue
		}
		if err := out.Send(resp); err != nil {
			return fmt.Errorf("write reply: %w", err)
		}
	}
}

// FrameSender encodes messages onto a frame.Writer.
type FrameSender struct {
	w frame.Writer
}

// NewFrameSender wraps w.
func NewFrameSender(w frame.Writer) *FrameSender {
	return &FrameSender{w: w}
}

// Send implements Sender.
func (s *FrameSender) Send(v any) error {
	data, err := protocol.Encode(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return s.w.WriteMessage(data)
}

// Author: Toluwalase Mebaanne
// Package main provides the hub connection used by the agent commands.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tmair/snipbridge/shared/frame"
	"github.com/tmair/snipbridge/shared/protocol"
)

// replyTimeout bounds the wait for the answer to a single command.
const replyTimeout = 30 * time.Second

// Client dials the hub. Each command runs on its own connection.
type Client struct {
	serverURL string
	dialer    *websocket.Dialer
}

// NewClient creates a Client for serverURL. http and https URLs are
// accepted and mapped to ws and wss.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		dialer:    websocket.DefaultDialer,
	}
}

// socketURL normalizes the configured server address to a WebSocket URL.
func socketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse server URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server URL %q has no host", raw)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

// Conn is one open session with the hub.
type Conn struct {
	codec *frame.SocketCodec
}

// Connect opens a session.
func (c *Client) Connect(ctx context.Context) (*Conn, error) {
	target, err := socketURL(c.serverURL)
	if err != nil {
		return nil, err
	}
	ws, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("WebSocket dial failed: %w", err)
	}
	log.Debug().Str("url", target).Msg("connected to hub")
	return &Conn{codec: frame.NewSocketCodec(ws)}, nil
}

// Close ends the session.
func (c *Conn) Close() error {
	return c.codec.Close()
}

func (c *Conn) send(cmd protocol.Command) error {
	data, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	return c.codec.WriteMessage(data)
}

func (c *Conn) reply() (protocol.Response, error) {
	var resp protocol.Response
	if err := c.codec.SetReadDeadline(time.Now().Add(replyTimeout)); err != nil {
		return resp, err
	}
	data, err := c.codec.ReadMessage()
	if err != nil {
		return resp, fmt.Errorf("read reply: %w", err)
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return resp, fmt.Errorf("decode reply: %w", err)
	}
	return resp, nil
}

// ReplyError is a reply with status "error".
type ReplyError struct {
	Message string
}

func (e *ReplyError) Error() string {
	return "hub: " + e.Message
}

func checkReply(resp protocol.Response) error {
	if resp.Status != protocol.StatusSuccess {
		return &ReplyError{Message: resp.Message}
	}
	return nil
}

// newID returns a fresh correlation id.
func newID() string {
	return uuid.New().String()
}

// SaveSnippet sends a snippet and returns the saved path. A nil overwrite
// leaves the decision to the hub.
func (c *Conn) SaveSnippet(id, hint, content string, overwrite *bool) (string, error) {
	err := c.send(protocol.Snippet{ID: id, FilePath: hint, Content: content, Overwrite: overwrite})
	if err != nil {
		return "", err
	}
	resp, err := c.reply()
	if err != nil {
		return "", err
	}
	if resp.ID == nil || *resp.ID != id {
		log.Warn().Str("sent", id).Msg("reply carries a different id")
	}
	if err := checkReply(resp); err != nil {
		return "", err
	}
	return resp.SavedPath, nil
}

// StoreMessage hands an assistant message to the hub's message store.
func (c *Conn) StoreMessage(id, filePath, content string) error {
	if err := c.send(protocol.AssistantMessage{ID: id, FilePath: filePath, Content: content}); err != nil {
		return err
	}
	resp, err := c.reply()
	if err != nil {
		return err
	}
	return checkReply(resp)
}

// Sync asks for every tracked file under dest and calls fn for each one
// received. The hub sends no terminator, so the stream is considered
// finished once nothing has arrived for idle. The connection cannot be
// reused afterwards.
func (c *Conn) Sync(dest string, idle time.Duration, fn func(protocol.FileContent) error) (int, error) {
	if err := c.send(protocol.Sync{Destination: dest}); err != nil {
		return 0, err
	}

	received := 0
	for {
		if err := c.codec.SetReadDeadline(time.Now().Add(idle)); err != nil {
			return received, err
		}
		data, err := c.codec.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return received, nil
			}
			if frame.IsClosed(err) {
				return received, nil
			}
			return received, fmt.Errorf("read file: %w", err)
		}

		var msg protocol.FileContent
		if err := json.Unmarshal(data, &msg); err != nil {
			return received, fmt.Errorf("decode file message: %w", err)
		}
		if msg.Type != protocol.TypeFileContent {
			// Only a rejected request is answered with an envelope.
			var resp protocol.Response
			if err := json.Unmarshal(data, &resp); err == nil {
				if err := checkReply(resp); err != nil {
					return received, err
				}
			}
			log.Warn().Str("type", msg.Type).Msg("ignoring unexpected message")
			continue
		}

		received++
		if err := fn(msg); err != nil {
			return received, err
		}
	}
}

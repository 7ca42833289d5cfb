// Author: Toluwalase Mebaanne

package frame

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

// SocketCodec adapts a WebSocket connection to the Reader/Writer
// interfaces. The WebSocket already delimits messages, so payloads pass
// through untouched.
type SocketCodec struct {
	conn *websocket.Conn

	// gorilla/websocket allows one concurrent writer per connection.
	mu sync.Mutex
}

// NewSocketCodec wraps an established connection.
func NewSocketCodec(conn *websocket.Conn) *SocketCodec {
	return &SocketCodec{conn: conn}
}

// ReadMessage returns the next data message. A normal close from the peer
// is reported as io.EOF so both transports terminate the same way.
func (c *SocketCodec) ReadMessage() ([]byte, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil, io.EOF
			}
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// WriteMessage sends payload as a single text message.
func (c *SocketCodec) WriteMessage(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write socket message: %w", err)
	}
	return nil
}

// SetReadDeadline bounds the next ReadMessage. A read that times out
// leaves the connection unusable.
func (c *SocketCodec) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close closes the underlying connection.
func (c *SocketCodec) Close() error {
	return c.conn.Close()
}

// Shutdown sends a going-away close frame with reason, then closes the
// connection. The peer's reader sees a clean close.
func (c *SocketCodec) Shutdown(reason string) error {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
	deadline := time.Now().Add(closeGracePeriod)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.conn.Close()
		return fmt.Errorf("send close frame: %w", err)
	}
	return c.conn.Close()
}

// IsClosed reports whether err means the peer went away, for either
// transport. Writes to a vanished peer surface as a broken pipe or reset.
func IsClosed(err error) bool {
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, websocket.ErrCloseSent),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNRESET):
		return true
	}
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr)
}

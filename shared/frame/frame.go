// Author: Toluwalase Mebaanne
// Package frame turns raw transports into discrete UTF-8 text messages.
//
// Two transports are supported. The pipe transport (stdin/stdout of a
// native-messaging host) prefixes every message with its byte length as a
// 4-byte unsigned integer in the host's native byte order. The socket
// transport is a WebSocket connection, which already delimits messages, so
// no prefix is added or expected.

package frame

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// DefaultMaxPayload bounds a single pipe frame.
const DefaultMaxPayload = 64 * 1024 * 1024 // 64 MiB

const prefixLen = 4

var (
	// ErrFraming is the parent of every stream-level failure. A session
	// that sees it must stop reading: the stream is assumed corrupt.
	ErrFraming = errors.New("frame: framing error")

	ErrTruncated     = fmt.Errorf("%w: truncated frame", ErrFraming)
	ErrFrameTooLarge = fmt.Errorf("%w: frame too large", ErrFraming)
)

// Reader reads one message at a time.
// ReadMessage returns io.EOF when the peer closed the stream cleanly.
type Reader interface {
	ReadMessage() ([]byte, error)
}

// Writer writes one message at a time.
type Writer interface {
	WriteMessage(payload []byte) error
}

// ReadWriter is a bidirectional message stream.
type ReadWriter interface {
	Reader
	Writer
}

// PipeCodec implements the length-prefixed pipe transport.
type PipeCodec struct {
	r          io.Reader
	w          *bufio.Writer
	maxPayload uint32

	// mu serializes writes: a message and its prefix must never interleave
	// with another write.
	mu sync.Mutex
}

// NewPipeCodec wraps a read side and a write side. maxPayload of zero
// selects DefaultMaxPayload.
func NewPipeCodec(r io.Reader, w io.Writer, maxPayload uint32) *PipeCodec {
	if maxPayload == 0 {
		maxPayload = DefaultMaxPayload
	}
	return &PipeCodec{
		r:          r,
		w:          bufio.NewWriter(w),
		maxPayload: maxPayload,
	}
}

// ReadMessage blocks until a whole frame is available.
func (c *PipeCodec) ReadMessage() ([]byte, error) {
	var prefix [prefixLen]byte
	n, err := io.ReadFull(c.r, prefix[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: got %d of %d length bytes", ErrTruncated, n, prefixLen)
		}
		return nil, err
	}

	length := binary.NativeEndian.Uint32(prefix[:])
	if length > c.maxPayload {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFrameTooLarge, length, c.maxPayload)
	}

	payload := make([]byte, length)
	if length == 0 {
		return payload, nil
	}
	if n, err := io.ReadFull(c.r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: got %d of %d payload bytes", ErrTruncated, n, length)
		}
		return nil, err
	}
	return payload, nil
}

// WriteMessage writes the prefix and payload, then flushes.
func (c *PipeCodec) WriteMessage(payload []byte) error {
	if uint64(len(payload)) > uint64(c.maxPayload) {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFrameTooLarge, len(payload), c.maxPayload)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var prefix [prefixLen]byte
	binary.NativeEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := c.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write frame prefix: %w", err)
	}
	if _, err := c.w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("flush frame: %w", err)
	}
	return nil
}

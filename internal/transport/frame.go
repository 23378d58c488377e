// Package transport implements the framed local-socket transport of
// spec.md §4.2/§6: a 4-byte big-endian length prefix followed by a
// msgpack-encoded Message body, server accept loop and client dial/send/
// receive-loop pair. Message integrity is trusted to the framing, per spec.
package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/agentmesh/mcpbus/pkg/mcp"
)

// DefaultMaxFrameBytes is the default maximum frame body size (spec §4.2/§6).
const DefaultMaxFrameBytes = 10 * 1024 * 1024

const lengthPrefixBytes = 4

// ErrFrameTooLarge is returned when a declared frame length exceeds the
// configured maximum; the caller must close the connection without
// draining the remainder (spec §4.2).
type ErrFrameTooLarge struct {
	Declared uint32
	Max      uint32
}

func (e ErrFrameTooLarge) Error() string {
	return fmt.Sprintf("frame of %d bytes exceeds maximum %d bytes", e.Declared, e.Max)
}

// ErrEmptyFrame is returned for a frame with declared length 0 (spec §8:
// "A frame with declared length 0 is rejected without draining").
var ErrEmptyFrame = fmt.Errorf("frame has declared length 0")

// DecodeError wraps a msgpack decode failure on an otherwise fully-read
// frame body: the stream is not desynced, so the caller can log and
// continue reading the next frame (spec §4.2: "Deserialization failures
// log and continue").
type DecodeError struct{ Err error }

func (e DecodeError) Error() string { return fmt.Sprintf("decode message: %v", e.Err) }
func (e DecodeError) Unwrap() error { return e.Err }

// encodeFrame msgpack-encodes msg and prefixes it with its big-endian
// uint32 length.
func encodeFrame(msg *mcp.Message) ([]byte, error) {
	body, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	frame := make([]byte, lengthPrefixBytes+len(body))
	binary.BigEndian.PutUint32(frame[:lengthPrefixBytes], uint32(len(body)))
	copy(frame[lengthPrefixBytes:], body)
	return frame, nil
}

// writeFrame writes one complete frame to w. Callers must serialize writes
// themselves (spec §4.2: "single-writer per connection").
func writeFrame(w io.Writer, msg *mcp.Message) error {
	frame, err := encodeFrame(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// readFrame reads one length-prefixed msgpack body from r and decodes it
// into a Message. A short read (EOF mid-frame) is surfaced as io.EOF or
// io.ErrUnexpectedEOF so the caller can terminate the connection silently
// (spec §4.2: "terminates the connection without error-response").
func readFrame(r io.Reader, maxFrameBytes uint32) (*mcp.Message, error) {
	var lenBuf [lengthPrefixBytes]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	declared := binary.BigEndian.Uint32(lenBuf[:])
	if declared == 0 {
		return nil, ErrEmptyFrame
	}
	if maxFrameBytes > 0 && declared > maxFrameBytes {
		return nil, ErrFrameTooLarge{Declared: declared, Max: maxFrameBytes}
	}

	body := make([]byte, declared)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	var msg mcp.Message
	if err := msgpack.Unmarshal(body, &msg); err != nil {
		return nil, DecodeError{Err: err}
	}
	return &msg, nil
}

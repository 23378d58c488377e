package transport

import (
	"net"
	"sync"

	"github.com/agentmesh/mcpbus/pkg/mcp"
)

// Conn wraps a net.Conn with a single-writer lock, matching spec §4.2's
// "concurrent sends on one connection must serialize writes" rule. Reads
// are naturally serial since only the owning receive loop calls ReadOne.
type Conn struct {
	raw           net.Conn
	maxFrameBytes uint32
	clientID      string

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

func newConn(raw net.Conn, maxFrameBytes uint32, clientID string) *Conn {
	return &Conn{raw: raw, maxFrameBytes: maxFrameBytes, clientID: clientID}
}

// ClientID returns the opaque id the server assigned this connection (empty
// on the dialing side, which has no peer-assigned id of its own).
func (c *Conn) ClientID() string { return c.clientID }

// Send writes one frame, serialized against concurrent senders on this
// connection.
func (c *Conn) Send(msg *mcp.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFrame(c.raw, msg)
}

// ReadOne reads and decodes the next frame.
func (c *Conn) ReadOne() (*mcp.Message, error) {
	return readFrame(c.raw, c.maxFrameBytes)
}

// Close closes the underlying connection; idempotent.
func (c *Conn) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.raw.Close()
}

// RemoteAddr exposes the underlying connection's remote address for logging.
func (c *Conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }

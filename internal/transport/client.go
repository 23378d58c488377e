package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentmesh/mcpbus/internal/common/logger"
	"github.com/agentmesh/mcpbus/pkg/mcp"
)

// DefaultDialTimeout is the client's default connect timeout (spec §4.2).
const DefaultDialTimeout = 10 * time.Second

// Client connects to a Server's socket, sends messages, and dispatches
// inbound messages to a Handler via a receive loop (spec §4.2).
type Client struct {
	conn          *Conn
	maxFrameBytes uint32
	logger        *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewClient constructs an unconnected Client.
func NewClient(maxFrameBytes int, log *logger.Logger) *Client {
	if maxFrameBytes <= 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}
	return &Client{
		maxFrameBytes: uint32(maxFrameBytes),
		logger:        log.WithFields(zap.String("component", "transport-client")),
	}
}

// Dial connects to socketPath with the given timeout (0 uses DefaultDialTimeout).
func (c *Client) Dial(socketPath string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	raw, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", socketPath, err)
	}
	c.conn = newConn(raw, c.maxFrameBytes, "")
	return nil
}

// Send blocks only until the frame is flushed to the socket.
func (c *Client) Send(msg *mcp.Message) error {
	if c.conn == nil {
		return fmt.Errorf("client not connected")
	}
	return c.conn.Send(msg)
}

// Listen runs the receive loop, invoking handler for each inbound message,
// until ctx is cancelled or Disconnect is called. Intended to be run in its
// own goroutine by the caller (the bridge).
func (c *Client) Listen(ctx context.Context, handler Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := c.conn.ReadOne()
		if err != nil {
			if err == ErrEmptyFrame {
				continue
			}
			if de, ok := err.(DecodeError); ok {
				c.logger.Warn("deserialization failure, continuing", zap.Error(de))
				continue
			}
			if _, ok := err.(ErrFrameTooLarge); ok {
				c.logger.Error("oversize frame from server, disconnecting", zap.Error(err))
				return err
			}
			// Short read / EOF: connection lost.
			return err
		}

		if verr := mcp.ValidateMessage(msg); verr != nil {
			c.logger.Warn("dropping invalid message", zap.Error(verr))
			continue
		}

		if herr := handler(ctx, c.conn, msg); herr != nil {
			c.logger.Error("handler error", zap.Error(herr))
		}
	}
}

// Disconnect cancels the receive loop and closes the stream; idempotent.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// IsRunning reports whether the receive loop is currently active.
func (c *Client) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

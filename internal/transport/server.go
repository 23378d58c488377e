package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentmesh/mcpbus/internal/common/logger"
	"github.com/agentmesh/mcpbus/internal/common/mcperr"
	"github.com/agentmesh/mcpbus/pkg/mcp"
)

// Handler processes one inbound message on a connection. Returning an error
// for a task-request causes the server to synthesize and send a failed
// task-response in the requester's place (spec §4.2).
type Handler func(ctx context.Context, conn *Conn, msg *mcp.Message) error

// CapabilityBroadcaster optionally fans capability-registration events out
// to other listeners (e.g. a NATS bus) alongside the framed reply, restoring
// the original's "announce to whoever is listening" behavior (see
// internal/eventbus). Nil disables broadcasting.
type CapabilityBroadcaster interface {
	BroadcastCapabilities(agentID string, capabilities []string) error
}

// Server listens on a local stream socket and dispatches inbound messages
// to a Handler, one goroutine per accepted connection (spec §4.2).
type Server struct {
	socketPath    string
	maxFrameBytes uint32
	handler       Handler
	logger        *logger.Logger
	broadcaster   CapabilityBroadcaster

	mu       sync.Mutex
	listener net.Listener
	conns    map[string]*Conn
	wg       sync.WaitGroup
}

// NewServer constructs a Server. maxFrameBytes of 0 uses DefaultMaxFrameBytes.
func NewServer(socketPath string, maxFrameBytes int, handler Handler, log *logger.Logger) *Server {
	if maxFrameBytes <= 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}
	return &Server{
		socketPath:    socketPath,
		maxFrameBytes: uint32(maxFrameBytes),
		handler:       handler,
		logger:        log.WithFields(zap.String("component", "transport-server")),
		conns:         make(map[string]*Conn),
	}
}

// SetBroadcaster installs an optional capability broadcaster.
func (s *Server) SetBroadcaster(b CapabilityBroadcaster) { s.broadcaster = b }

// Listen ensures the parent directory exists, removes a stale socket file,
// listens on socketPath, and restricts its mode to the owning user
// (spec §6: file mode 0600).
func (s *Server) Listen() error {
	dir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	if _, err := os.Stat(s.socketPath); err == nil {
		if err := os.Remove(s.socketPath); err != nil {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Serve accepts connections until ctx is done or Close is called. Each
// connection is handled by an independent goroutine.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		s.mu.Lock()
		ln := s.listener
		s.mu.Unlock()
		if ln == nil {
			return nil
		}

		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		clientID := uuid.New().String()
		c := newConn(conn, s.maxFrameBytes, clientID)

		s.mu.Lock()
		s.conns[clientID] = c
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(ctx, c)
	}
}

func (s *Server) handleConn(ctx context.Context, c *Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c.ClientID())
		s.mu.Unlock()
		c.Close()
	}()

	for {
		msg, err := c.ReadOne()
		if err != nil {
			if _, ok := err.(ErrFrameTooLarge); ok {
				s.logger.Warn("oversize frame, closing connection", zap.String("client_id", c.ClientID()))
				return
			}
			if err == ErrEmptyFrame {
				s.logger.Warn("empty frame, skipping", zap.String("client_id", c.ClientID()))
				continue
			}
			if de, ok := err.(DecodeError); ok {
				s.logger.Warn("deserialization failure, continuing", zap.Error(de), zap.String("client_id", c.ClientID()))
				continue
			}
			// Short read / EOF: terminate the connection silently (spec §4.2).
			return
		}

		if msg.Context.Metadata == nil {
			msg.Context.Metadata = map[string]string{}
		}
		msg.Context.Metadata["client_id"] = c.ClientID()

		if verr := mcp.ValidateMessage(msg); verr != nil {
			s.logger.Warn("dropping invalid message", zap.Error(verr), zap.String("client_id", c.ClientID()))
			continue
		}

		if herr := s.handler(ctx, c, msg); herr != nil {
			wrapped := mcperr.Wrap(herr, mcperr.InternalError, "handler failed")
			s.logger.Error("handler error", zap.Error(wrapped), zap.String("message_type", string(msg.MessageType)))
			if msg.MessageType == mcp.MessageTypeTaskRequest {
				resp := mcp.ErrorResponseFor(msg, mcp.ErrorCode(wrapped.Code), wrapped.Error())
				if serr := c.Send(resp); serr != nil {
					s.logger.Error("failed to send synthesized error response", zap.Error(serr))
				}
			}
		}
	}
}

// BroadcastCapabilities publishes a capability-registration event through
// the optional broadcaster, alongside the framed agent-register reply path
// (spec's SPEC_FULL addition to §4.2). A no-op when no broadcaster is wired.
func (s *Server) BroadcastCapabilities(agentID string, capabilities []string) error {
	if s.broadcaster == nil {
		return nil
	}
	return s.broadcaster.BroadcastCapabilities(agentID, capabilities)
}

// Close closes the listener and every tracked connection; idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	for id, c := range s.conns {
		_ = c.Close()
		delete(s.conns, id)
	}
	return nil
}

// Wait blocks until all connection-handling goroutines have returned.
func (s *Server) Wait(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}

package transport

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/agentmesh/mcpbus/internal/common/logger"
	"github.com/agentmesh/mcpbus/pkg/mcp"
)

func testMessage(t *testing.T) *mcp.Message {
	t.Helper()
	return &mcp.Message{
		ID:          mcp.NewMessageID(),
		Sender:      "client",
		Recipient:   "server",
		MessageType: mcp.MessageTypeHeartbeat,
		Context:     mcp.NewContext(uuid.New().String(), 1000),
		Delivery:    mcp.DefaultDeliveryOptions(),
		CreatedAt:   time.Now().UTC(),
		Payload:     mcp.HeartbeatPayload{Status: "healthy", Timestamp: time.Now().UTC()},
	}
}

func TestServerClientRoundTrip(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "bus.sock")
	log := logger.Default()

	received := make(chan *mcp.Message, 1)
	srv := NewServer(socketPath, 0, func(ctx context.Context, conn *Conn, msg *mcp.Message) error {
		received <- msg
		return nil
	}, log)
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)
	defer srv.Close()

	client := NewClient(0, log)
	if err := client.Dial(socketPath, time.Second); err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Disconnect()

	go client.Listen(ctx, func(ctx context.Context, conn *Conn, msg *mcp.Message) error { return nil })

	sent := testMessage(t)
	if err := client.Send(sent); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case got := <-received:
		if got.ID != sent.ID {
			t.Errorf("id = %v, want %v", got.ID, sent.ID)
		}
		if got.MessageType != sent.MessageType {
			t.Errorf("message type = %v, want %v", got.MessageType, sent.MessageType)
		}
		if got.Context.Metadata["client_id"] == "" {
			t.Error("expected client_id to be stamped into context metadata")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestEmptyFrameRejectedWithoutDraining(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "bus2.sock")
	log := logger.Default()

	received := make(chan *mcp.Message, 1)
	srv := NewServer(socketPath, 0, func(ctx context.Context, conn *Conn, msg *mcp.Message) error {
		received <- msg
		return nil
	}, log)
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)
	defer srv.Close()

	client := NewClient(0, log)
	if err := client.Dial(socketPath, time.Second); err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Disconnect()

	// Directly exercise the frame-level boundary: a declared length of 0.
	raw := []byte{0, 0, 0, 0}
	n, err := client.conn.raw.Write(raw)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 4 {
		t.Errorf("n = %d, want 4", n)
	}

	// The empty frame is skipped without consuming any bytes past its
	// prefix, so the next well-formed frame on the stream arrives intact.
	sent := testMessage(t)
	if err := client.Send(sent); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case got := <-received:
		if got.ID != sent.ID {
			t.Errorf("id = %v, want %v", got.ID, sent.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the frame after the empty one")
	}
}

func TestOversizeFrameRejected(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "bus3.sock")
	log := logger.Default()

	received := make(chan *mcp.Message, 1)
	srv := NewServer(socketPath, 16, func(ctx context.Context, conn *Conn, msg *mcp.Message) error {
		received <- msg
		return nil
	}, log)
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)
	defer srv.Close()

	client := NewClient(0, log)
	if err := client.Dial(socketPath, time.Second); err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Disconnect()

	big := testMessage(t)
	big.Tags = make([]string, 100)
	for i := range big.Tags {
		big.Tags[i] = "padding-to-exceed-sixteen-bytes"
	}
	// This exceeds the server's 16-byte max, so the server-side read loop
	// will observe ErrFrameTooLarge and close the connection; the client
	// send itself still succeeds since it has no frame-size awareness of
	// the peer's configured maximum.
	_ = client.Send(big)

	// With the server's end closed, a read on the client side ends with an
	// error (EOF or reset) rather than the deadline expiring.
	if err := client.conn.raw.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, err := client.conn.ReadOne()
	if err == nil {
		t.Fatal("expected the server to close the connection after an oversize frame")
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		t.Fatal("connection still open after an oversize frame")
	}
	select {
	case <-received:
		t.Error("oversize frame reached the handler")
	default:
	}
}

package bridge

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/agentmesh/mcpbus/internal/agentmanager"
	"github.com/agentmesh/mcpbus/internal/common/logger"
	"github.com/agentmesh/mcpbus/internal/transport"
	"github.com/agentmesh/mcpbus/pkg/mcp"
)

// fakeOrchestrator is a minimal transport.Server-backed stand-in for the
// orchestrator side of the connection. It records every message the bridge
// sends and remembers the bridge's Conn so a test can push messages the
// other way (simulating the orchestrator dispatching a task-request).
type fakeOrchestrator struct {
	srv      *transport.Server
	received chan *mcp.Message

	mu   sync.Mutex
	conn *transport.Conn
}

func startFakeOrchestrator(t *testing.T) (*fakeOrchestrator, string) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "bridge.sock")
	log := logger.Default()

	f := &fakeOrchestrator{received: make(chan *mcp.Message, 16)}
	f.srv = transport.NewServer(socketPath, 0, func(ctx context.Context, conn *transport.Conn, msg *mcp.Message) error {
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		f.received <- msg
		return nil
	}, log)
	if err := f.srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go f.srv.Serve(ctx)
	t.Cleanup(func() { f.srv.Close() })

	return f, socketPath
}

func (f *fakeOrchestrator) sendToBridge(t *testing.T, msg *mcp.Message) {
	t.Helper()
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		t.Fatal("no connection recorded yet")
	}
	if err := conn.Send(msg); err != nil {
		t.Fatalf("send to bridge: %v", err)
	}
}

func newTestBridge(t *testing.T) (*Bridge, *fakeOrchestrator) {
	t.Helper()
	f, socketPath := startFakeOrchestrator(t)

	log := logger.Default()
	mgr := agentmanager.NewManager(log)
	if err := agentmanager.RegisterDefaultWorkers(mgr); err != nil {
		t.Fatalf("register default workers: %v", err)
	}

	client := transport.NewClient(0, log)
	b := New(client, mgr, log, DefaultConfig("test-bridge", "0.1.0"))
	if err := b.Connect(socketPath, time.Second); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// Drain the handshake message the fake orchestrator received.
	select {
	case <-f.received:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handshake")
	}

	for _, id := range []string{agentmanager.WorkerCode, agentmanager.WorkerResearch, agentmanager.WorkerWriter,
		agentmanager.WorkerVision, agentmanager.WorkerComputerUse, agentmanager.WorkerSupervisor} {
		if err := b.RegisterAgent(id); err != nil {
			t.Fatalf("register agent %s: %v", id, err)
		}
		select {
		case <-f.received:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for agent-register of %s", id)
		}
	}

	return b, f
}

func TestTaskRequestAcceptedRunningCompletedSequence(t *testing.T) {
	b, f := newTestBridge(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go b.Run(ctx)
	t.Cleanup(func() { b.Shutdown(context.Background()) })

	reqMsg := &mcp.Message{
		ID:          mcp.NewMessageID(),
		Sender:      "orchestrator",
		Recipient:   "test-bridge",
		MessageType: mcp.MessageTypeTaskRequest,
		Context:     mcp.NewContext(uuid.New().String(), 5000),
		Delivery:    mcp.DefaultDeliveryOptions(),
		CreatedAt:   time.Now().UTC(),
		Payload: mcp.TaskRequest{
			TaskType: mcp.TaskCodewriterGenerate,
			TaskID:   uuid.New().String(),
			Priority: 5,
		},
	}
	f.sendToBridge(t, reqMsg)

	var statuses []mcp.TaskStatus
	deadline := time.After(3 * time.Second)
	for len(statuses) < 3 {
		select {
		case msg := <-f.received:
			var resp mcp.TaskResponse
			if err := mcp.DecodePayload(msg, &resp); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			statuses = append(statuses, resp.Status)
			if resp.Status == mcp.StatusCompleted && resp.Metrics.ProcessingMS < 0 {
				t.Fatalf("expected non-negative processing time, got %d", resp.Metrics.ProcessingMS)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for terminal response, got %v", statuses)
		}
	}

	if statuses[0] != mcp.StatusAccepted {
		t.Errorf("statuses[0] = %v, want %v", statuses[0], mcp.StatusAccepted)
	}
	if statuses[1] != mcp.StatusRunning {
		t.Errorf("statuses[1] = %v, want %v", statuses[1], mcp.StatusRunning)
	}
	if statuses[2] != mcp.StatusCompleted {
		t.Errorf("statuses[2] = %v, want %v", statuses[2], mcp.StatusCompleted)
	}
}

func TestTaskRequestExactlyOnceRejected(t *testing.T) {
	b, f := newTestBridge(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go b.Run(ctx)
	t.Cleanup(func() { b.Shutdown(context.Background()) })

	delivery := mcp.DefaultDeliveryOptions()
	delivery.Guarantee = mcp.ExactlyOnce

	reqMsg := &mcp.Message{
		ID:          mcp.NewMessageID(),
		Sender:      "orchestrator",
		Recipient:   "test-bridge",
		MessageType: mcp.MessageTypeTaskRequest,
		Context:     mcp.NewContext(uuid.New().String(), 5000),
		Delivery:    delivery,
		CreatedAt:   time.Now().UTC(),
		Payload: mcp.TaskRequest{
			TaskType: mcp.TaskCodewriterGenerate,
			TaskID:   uuid.New().String(),
			Priority: 5,
		},
	}
	f.sendToBridge(t, reqMsg)

	select {
	case msg := <-f.received:
		var resp mcp.TaskResponse
		if err := mcp.DecodePayload(msg, &resp); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if resp.Status != mcp.StatusFailed {
			t.Errorf("status = %v, want %v", resp.Status, mcp.StatusFailed)
		}
		if resp.ErrorCode != mcp.ErrConfigurationError {
			t.Errorf("error code = %v, want %v", resp.ErrorCode, mcp.ErrConfigurationError)
		}
		if msg.CorrelationID != reqMsg.ID {
			t.Errorf("correlation id = %v, want %v", msg.CorrelationID, reqMsg.ID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for configuration-error response")
	}
}

func TestBridgeShutdownIsIdempotent(t *testing.T) {
	b, _ := newTestBridge(t)
	b.Shutdown(context.Background())
	b.Shutdown(context.Background())
}

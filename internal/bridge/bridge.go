// Package bridge implements the per-worker-process side of the framed
// transport: it dials the orchestrator's socket, performs a handshake,
// registers its hosted workers, answers capability/status queries, and
// dispatches incoming task-request messages to an agentmanager.Manager,
// emitting accepted/running/terminal task-response messages as the task
// progresses. Grounded on the teacher's connection/session lifecycle
// idiom (internal/agent/acp's session handling, generalized from an ACP
// session to a bridge connection) layered on internal/transport.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentmesh/mcpbus/internal/agentmanager"
	"github.com/agentmesh/mcpbus/internal/common/logger"
	"github.com/agentmesh/mcpbus/internal/transport"
	"github.com/agentmesh/mcpbus/pkg/mcp"
)

// Config holds the bridge's identity and tunables.
type Config struct {
	ServiceType       string
	Version           string
	ListenPort        int
	HeartbeatInterval time.Duration
	HeartbeatRetry    time.Duration
	MaxActiveTasks    int
}

// DefaultConfig returns the bridge's default tunables: a 30s heartbeat, a
// 5s pause-and-retry on heartbeat send failure, and a soft cap of 10
// concurrently in-flight tasks.
func DefaultConfig(serviceType, version string) Config {
	return Config{
		ServiceType:       serviceType,
		Version:           version,
		HeartbeatInterval: 30 * time.Second,
		HeartbeatRetry:    5 * time.Second,
		MaxActiveTasks:    10,
	}
}

// Bridge is the single long-lived object a worker process constructs: one
// transport.Client connection, one agentmanager.Manager to execute work,
// and bookkeeping for active tasks and registered-agent capabilities.
type Bridge struct {
	client  *transport.Client
	manager *agentmanager.Manager
	logger  *logger.Logger
	config  Config

	startedAt time.Time

	mu              sync.Mutex
	activeTasks     map[string]context.CancelFunc
	capabilityIndex map[string][]string // capability -> worker ids, registration order
	lastHeartbeat   time.Time

	// statsMu guards both the task-outcome counters and the bridge's own
	// message-traffic counters, mirroring python_bridge.py's single
	// self.stats dict (messages_sent, messages_received, tasks_executed,
	// agents_registered, connection_failures).
	statsMu            sync.Mutex
	tasksReceived      int64
	tasksCompleted     int64
	tasksFailed        int64
	messagesSent       int64
	messagesReceived   int64
	tasksExecuted      int64
	agentsRegistered   int64
	connectionFailures int64

	shutdownOnce sync.Once
}

// New constructs a Bridge over an already-built transport.Client and
// agentmanager.Manager. Connect still needs to be called before Run.
func New(client *transport.Client, manager *agentmanager.Manager, log *logger.Logger, cfg Config) *Bridge {
	return &Bridge{
		client:          client,
		manager:         manager,
		logger:          log.WithFields(zap.String("component", "bridge")),
		config:          cfg,
		activeTasks:     make(map[string]context.CancelFunc),
		capabilityIndex: make(map[string][]string),
	}
}

// Connect dials socketPath and sends the handshake message advertising
// serviceType, version, the union of every registered worker's
// capabilities, and the listening port (spec.md §4.3 "Handshake").
func (b *Bridge) Connect(socketPath string, dialTimeout time.Duration) error {
	if err := b.client.Dial(socketPath, dialTimeout); err != nil {
		b.statsMu.Lock()
		b.connectionFailures++
		b.statsMu.Unlock()
		return err
	}
	b.startedAt = time.Now().UTC()

	caps := b.allCapabilities()
	handshake := &mcp.Message{
		ID:          mcp.NewMessageID(),
		Sender:      b.config.ServiceType,
		Recipient:   "orchestrator",
		MessageType: mcp.MessageTypeHandshake,
		Context:     mcp.NewContext(uuid.New().String(), 5000),
		Delivery:    mcp.DefaultDeliveryOptions(),
		CreatedAt:   time.Now().UTC(),
		Payload: mcp.HandshakePayload{
			ServiceType:  b.config.ServiceType,
			Version:      b.config.Version,
			Capabilities: caps,
			Port:         b.config.ListenPort,
		},
	}
	return b.send(handshake)
}

// send transmits msg over the bridge's connection, updating messages_sent on
// success or connection_failures on error (python_bridge.py's self.stats).
func (b *Bridge) send(msg *mcp.Message) error {
	err := b.client.Send(msg)
	b.statsMu.Lock()
	if err != nil {
		b.connectionFailures++
	} else {
		b.messagesSent++
	}
	b.statsMu.Unlock()
	return err
}

// sendAndCount is send's counterpart for replies going out over an already
// accepted transport.Conn (the handler path, as opposed to the bridge's own
// outbound client connection).
func (b *Bridge) sendAndCount(conn *transport.Conn, msg *mcp.Message) error {
	err := conn.Send(msg)
	b.statsMu.Lock()
	if err != nil {
		b.connectionFailures++
	} else {
		b.messagesSent++
	}
	b.statsMu.Unlock()
	return err
}

// statsSnapshot returns the bridge's message/task counters for reporting in
// agent-query and status-request responses (SPEC_FULL.md's bridge addition,
// grounded on python_bridge.py's self.stats dict).
func (b *Bridge) statsSnapshot() map[string]interface{} {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return map[string]interface{}{
		"messages_sent":       b.messagesSent,
		"messages_received":   b.messagesReceived,
		"tasks_executed":      b.tasksExecuted,
		"agents_registered":   b.agentsRegistered,
		"connection_failures": b.connectionFailures,
	}
}

func (b *Bridge) allCapabilities() []string {
	status, _ := b.manager.Status("")
	seen := map[string]bool{}
	var caps []string
	for _, w := range status.Workers {
		for _, c := range w.Config.Capabilities {
			if !seen[c] {
				seen[c] = true
				caps = append(caps, c)
			}
		}
	}
	return caps
}

// RegisterAgent sends an agent-register message for workerID, indexing its
// capabilities so agent-query can answer by capability (spec §4.3
// "Registration").
func (b *Bridge) RegisterAgent(workerID string) error {
	status, ok := b.manager.Status(workerID)
	if !ok {
		return fmt.Errorf("bridge: unknown worker %q", workerID)
	}
	w := status.Workers[0]

	b.mu.Lock()
	for _, c := range w.Config.Capabilities {
		b.capabilityIndex[c] = append(b.capabilityIndex[c], workerID)
	}
	b.mu.Unlock()

	reg := mcp.AgentRegistration{
		AgentID:      workerID,
		AgentName:    workerID,
		Type:         mcp.AgentTypeSubAgent,
		Version:      b.config.Version,
		Capabilities: w.Config.Capabilities,
		Health: mcp.HealthStatus{
			Healthy:       true,
			StatusMessage: "ready",
			ActiveTasks:   w.Status.ActiveTasks,
			LastHeartbeat: time.Now().UTC(),
		},
		RegisteredAt: time.Now().UTC(),
	}
	msg := &mcp.Message{
		ID:          mcp.NewMessageID(),
		Sender:      b.config.ServiceType,
		Recipient:   "orchestrator",
		MessageType: mcp.MessageTypeAgentRegister,
		Context:     mcp.NewContext(uuid.New().String(), 5000),
		Delivery:    mcp.DefaultDeliveryOptions(),
		CreatedAt:   time.Now().UTC(),
		Payload:     reg,
	}
	if err := b.send(msg); err != nil {
		return err
	}
	b.statsMu.Lock()
	b.agentsRegistered++
	b.statsMu.Unlock()
	return nil
}

// Run starts the heartbeat goroutine and the blocking receive loop. It
// returns when ctx is cancelled, Shutdown is called, or the connection is
// lost.
func (b *Bridge) Run(ctx context.Context) error {
	go b.heartbeatLoop(ctx)
	return b.client.Listen(ctx, b.handle)
}

func (b *Bridge) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(b.config.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.sendHeartbeat(ctx)
		}
	}
}

func (b *Bridge) sendHeartbeat(ctx context.Context) {
	msg := b.heartbeatMessage()
	if err := b.send(msg); err != nil {
		b.logger.Warn("heartbeat send failed, retrying", zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.config.HeartbeatRetry):
		}
		if err := b.send(msg); err != nil {
			b.logger.Error("heartbeat retry failed", zap.Error(err))
			return
		}
	}
	b.mu.Lock()
	b.lastHeartbeat = time.Now().UTC()
	b.mu.Unlock()
}

// registeredAgentCountLocked returns the number of distinct agent ids in the
// capability index. Callers hold b.mu.
func (b *Bridge) registeredAgentCountLocked() int {
	ids := map[string]bool{}
	for _, agentIDs := range b.capabilityIndex {
		for _, id := range agentIDs {
			ids[id] = true
		}
	}
	return len(ids)
}

// heartbeatMessage builds the bridge's own periodically-emitted liveness
// announcement (spec §4.3 "Heartbeat emission": "Every 30s send a heartbeat
// with status=healthy"). This is distinct from the heartbeat-response the
// bridge sends when the orchestrator asks it a heartbeat question directly
// (see handleHeartbeat below).
func (b *Bridge) heartbeatMessage() *mcp.Message {
	b.mu.Lock()
	activeCount := len(b.activeTasks)
	registeredCount := b.registeredAgentCountLocked()
	b.mu.Unlock()

	b.statsMu.Lock()
	received, completed, failed := b.tasksReceived, b.tasksCompleted, b.tasksFailed
	b.statsMu.Unlock()

	return &mcp.Message{
		ID:          mcp.NewMessageID(),
		Sender:      b.config.ServiceType,
		Recipient:   "orchestrator",
		MessageType: mcp.MessageTypeHeartbeat,
		Context:     mcp.NewContext(uuid.New().String(), 5000),
		Delivery:    mcp.DefaultDeliveryOptions(),
		CreatedAt:   time.Now().UTC(),
		Payload: map[string]interface{}{
			"status":             "healthy",
			"active_tasks":       activeCount,
			"registered_agents":  registeredCount,
			"tasks_received":     received,
			"tasks_completed":    completed,
			"tasks_failed":       failed,
			"uptime_sec":         time.Since(b.startedAt).Seconds(),
		},
	}
}

// handle dispatches one inbound message by type; it is the transport.Handler
// passed to client.Listen.
func (b *Bridge) handle(ctx context.Context, conn *transport.Conn, msg *mcp.Message) error {
	b.statsMu.Lock()
	b.messagesReceived++
	b.statsMu.Unlock()

	switch msg.MessageType {
	case mcp.MessageTypeTaskRequest:
		return b.handleTaskRequest(ctx, conn, msg)
	case mcp.MessageTypeTaskCancel:
		b.cancelTask(msg)
		return nil
	case mcp.MessageTypeHeartbeat:
		return b.handleHeartbeat(conn, msg)
	case mcp.MessageTypeAgentQuery:
		return b.handleAgentQuery(conn, msg)
	case mcp.MessageTypeStatusRequest:
		return b.handleStatusRequest(conn, msg)
	case mcp.MessageTypeShutdown:
		go b.Shutdown(context.Background())
		return nil
	default:
		return nil
	}
}

// reply mints a response message for req, swapping sender/recipient and
// preserving context/delivery (mirrors mcp.ErrorResponseFor's shape for
// non-error replies).
func reply(req *mcp.Message, msgType mcp.MessageType, payload interface{}) *mcp.Message {
	return &mcp.Message{
		ID:            mcp.NewMessageID(),
		CorrelationID: req.ID,
		TraceID:       req.TraceID,
		SpanID:        req.SpanID,
		Sender:        req.Recipient,
		Recipient:     req.Sender,
		MessageType:   msgType,
		Context:       req.Context,
		Delivery:      req.Delivery,
		CreatedAt:     time.Now().UTC(),
		Payload:       payload,
	}
}

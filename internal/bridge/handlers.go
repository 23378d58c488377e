package bridge

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agentmesh/mcpbus/internal/agentmanager"
	"github.com/agentmesh/mcpbus/internal/common/mcperr"
	"github.com/agentmesh/mcpbus/internal/transport"
	"github.com/agentmesh/mcpbus/pkg/mcp"
)

// ErrQueueFullMessage is the error-message text attached to a queue-full
// rejection, matching original_source's bridge admission-control wording.
const ErrQueueFullMessage = "bridge is at capacity; try again later"

func (b *Bridge) handleTaskRequest(ctx context.Context, conn *transport.Conn, msg *mcp.Message) error {
	var req mcp.TaskRequest
	if err := mcp.DecodePayload(msg, &req); err != nil {
		decodeErr := mcperr.Wrap(err, mcperr.InvalidMessageFormat, "failed to decode task request")
		resp := reply(msg, mcp.MessageTypeTaskResponse, mcp.TaskResponse{
			Status: mcp.StatusFailed, ErrorCode: mcp.ErrorCode(decodeErr.Code), ErrorMessage: decodeErr.Error(),
		})
		return conn.Send(resp)
	}

	b.statsMu.Lock()
	b.tasksReceived++
	b.statsMu.Unlock()

	if mcp.RequiresUnsupportedDelivery(msg.Delivery) {
		configErr := mcperr.New(mcperr.ConfigurationError, mcp.ErrUnsupportedGuarantee.Error())
		resp := reply(msg, mcp.MessageTypeTaskResponse, mcp.TaskResponse{
			TaskID: req.TaskID, Status: mcp.StatusFailed, ErrorCode: mcp.ErrorCode(configErr.Code),
			ErrorMessage: configErr.Message,
		})
		b.sendAndCount(conn, resp)
		return nil
	}

	b.mu.Lock()
	full := len(b.activeTasks) >= b.config.MaxActiveTasks
	b.mu.Unlock()
	if full {
		queueErr := mcperr.New(mcperr.QueueFull, ErrQueueFullMessage)
		resp := reply(msg, mcp.MessageTypeTaskResponse, mcp.TaskResponse{
			TaskID: req.TaskID, Status: mcp.StatusFailed, ErrorCode: mcp.ErrorCode(queueErr.Code), ErrorMessage: queueErr.Message,
		})
		b.sendAndCount(conn, resp)
		return nil
	}

	workerID, ok := b.manager.FirstCapable([]string{req.TaskType}, req.PreferredAgent)
	if !ok {
		unavailableErr := mcperr.Newf(mcperr.AgentUnavailable, "no registered worker can handle task type %s", req.TaskType)
		resp := reply(msg, mcp.MessageTypeTaskResponse, mcp.TaskResponse{
			TaskID: req.TaskID, Status: mcp.StatusFailed, ErrorCode: mcp.ErrorCode(unavailableErr.Code),
			ErrorMessage: unavailableErr.Message,
		})
		b.sendAndCount(conn, resp)
		return nil
	}

	accepted := reply(msg, mcp.MessageTypeTaskResponse, mcp.TaskResponse{
		TaskID: req.TaskID, Status: mcp.StatusAccepted, AssignedAgent: workerID,
	})
	if err := b.sendAndCount(conn, accepted); err != nil {
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	if req.Deadline != nil {
		taskCtx, cancel = context.WithDeadline(ctx, *req.Deadline)
	}
	b.mu.Lock()
	b.activeTasks[req.TaskID] = cancel
	b.mu.Unlock()

	go b.runTask(taskCtx, cancel, conn, msg, req, workerID)
	return nil
}

func (b *Bridge) runTask(ctx context.Context, cancel context.CancelFunc, conn *transport.Conn, req *mcp.Message, taskReq mcp.TaskRequest, workerID string) {
	defer func() {
		cancel()
		b.mu.Lock()
		delete(b.activeTasks, taskReq.TaskID)
		b.mu.Unlock()
	}()

	running := reply(req, mcp.MessageTypeTaskResponse, mcp.TaskResponse{
		TaskID: taskReq.TaskID, Status: mcp.StatusRunning, AssignedAgent: workerID,
	})
	if err := b.sendAndCount(conn, running); err != nil {
		b.logger.Warn("failed to send running update", zap.Error(err), zap.String("task_id", taskReq.TaskID))
	}

	task := &agentmanager.Task{
		ID:          taskReq.TaskID,
		Description: taskReq.TaskType,
		TaskType:    taskReq.TaskType,
		Context:     req.Context,
		Priority:    taskReq.Priority,
		Metadata:    taskReq.Metadata,
		Deadline:    taskReq.Deadline,
	}

	start := time.Now()
	resp, err := b.manager.ExecuteOnWorker(ctx, workerID, task)

	var final *mcp.Message
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		b.recordOutcome(false)
		timeoutErr := mcperr.New(mcperr.TaskTimeout, "task exceeded its deadline")
		final = reply(req, mcp.MessageTypeTaskResponse, mcp.TaskResponse{
			TaskID: taskReq.TaskID, Status: mcp.StatusTimeout, ErrorCode: mcp.ErrorCode(timeoutErr.Code),
			ErrorMessage: timeoutErr.Message, AssignedAgent: workerID,
			Metrics: mcp.TaskMetrics{ProcessingMS: time.Since(start).Milliseconds()},
		})
	case err != nil:
		b.recordOutcome(false)
		agentErr := mcperr.Wrap(err, mcperr.AgentError, "worker execution failed")
		errMsg := agentErr.Error()
		errCode := mcp.ErrorCode(agentErr.Code)
		if resp != nil {
			errMsg = resp.ErrorMessage
			if resp.ErrorCode != "" {
				errCode = resp.ErrorCode
			}
		}
		final = reply(req, mcp.MessageTypeTaskResponse, mcp.TaskResponse{
			TaskID: taskReq.TaskID, Status: mcp.StatusFailed, ErrorCode: errCode, ErrorMessage: errMsg,
			AssignedAgent: workerID, Metrics: mcp.TaskMetrics{ProcessingMS: time.Since(start).Milliseconds()},
		})
	default:
		b.recordOutcome(true)
		b.statsMu.Lock()
		b.tasksExecuted++
		b.statsMu.Unlock()
		final = reply(req, mcp.MessageTypeTaskResponse, *resp)
	}

	if err := b.sendAndCount(conn, final); err != nil {
		b.logger.Error("failed to send terminal task response", zap.Error(err), zap.String("task_id", taskReq.TaskID))
	}
}

func (b *Bridge) recordOutcome(success bool) {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	if success {
		b.tasksCompleted++
	} else {
		b.tasksFailed++
	}
}

func (b *Bridge) cancelTask(msg *mcp.Message) {
	var req mcp.TaskRequest
	if err := mcp.DecodePayload(msg, &req); err != nil || req.TaskID == "" {
		return
	}
	b.mu.Lock()
	cancel, ok := b.activeTasks[req.TaskID]
	b.mu.Unlock()
	if ok {
		cancel()
	}
}

// handleHeartbeat answers an incoming heartbeat query from the orchestrator
// with a heartbeat-response carrying status=healthy, active-task count,
// registered-agent count, and a statistics snapshot (spec §4.3 "Handling
// heartbeat"). This is distinct from the bridge's own periodic heartbeat
// emission (see sendHeartbeat).
func (b *Bridge) handleHeartbeat(conn *transport.Conn, msg *mcp.Message) error {
	b.mu.Lock()
	activeCount := len(b.activeTasks)
	registeredCount := b.registeredAgentCountLocked()
	lastHeartbeat := b.lastHeartbeat
	b.mu.Unlock()

	b.statsMu.Lock()
	received, completed, failed := b.tasksReceived, b.tasksCompleted, b.tasksFailed
	b.statsMu.Unlock()

	payload := map[string]interface{}{
		"status":            "healthy",
		"active_tasks":      activeCount,
		"registered_agents": registeredCount,
		"tasks_received":    received,
		"tasks_completed":   completed,
		"tasks_failed":      failed,
		"last_heartbeat":    lastHeartbeat,
	}
	for k, v := range b.statsSnapshot() {
		payload[k] = v
	}

	resp := reply(msg, mcp.MessageTypeHeartbeatResponse, payload)
	return b.sendAndCount(conn, resp)
}

func (b *Bridge) handleAgentQuery(conn *transport.Conn, msg *mcp.Message) error {
	var query struct {
		Capabilities []string `msgpack:"capabilities"`
	}
	_ = mcp.DecodePayload(msg, &query)

	b.mu.Lock()
	matches := map[string]bool{}
	if len(query.Capabilities) == 0 {
		for _, ids := range b.capabilityIndex {
			for _, id := range ids {
				matches[id] = true
			}
		}
	} else {
		for _, reqCap := range query.Capabilities {
			for _, id := range b.capabilityIndex[reqCap] {
				matches[id] = true
			}
		}
	}
	lastHeartbeat := b.lastHeartbeat
	b.mu.Unlock()

	agentIDs := make([]string, 0, len(matches))
	for id := range matches {
		agentIDs = append(agentIDs, id)
	}

	payload := map[string]interface{}{
		"agent_ids":      agentIDs,
		"last_heartbeat": lastHeartbeat,
	}
	for k, v := range b.statsSnapshot() {
		payload[k] = v
	}

	resp := reply(msg, mcp.MessageTypeAgentQueryResponse, payload)
	return b.sendAndCount(conn, resp)
}

func (b *Bridge) handleStatusRequest(conn *transport.Conn, msg *mcp.Message) error {
	b.mu.Lock()
	activeCount := len(b.activeTasks)
	capIndex := make(map[string][]string, len(b.capabilityIndex))
	for k, v := range b.capabilityIndex {
		capIndex[k] = append([]string(nil), v...)
	}
	registeredCount := b.registeredAgentCountLocked()
	lastHeartbeat := b.lastHeartbeat
	b.mu.Unlock()

	b.statsMu.Lock()
	received, completed, failed := b.tasksReceived, b.tasksCompleted, b.tasksFailed
	b.statsMu.Unlock()

	payload := map[string]interface{}{
		"service_type":       b.config.ServiceType,
		"healthy":            true,
		"active_tasks":       activeCount,
		"registered_agents":  registeredCount,
		"capability_index":   capIndex,
		"tasks_received":     received,
		"tasks_completed":    completed,
		"tasks_failed":       failed,
		"last_heartbeat":     lastHeartbeat,
		"uptime_sec":         time.Since(b.startedAt).Seconds(),
	}
	for k, v := range b.statsSnapshot() {
		payload[k] = v
	}

	resp := reply(msg, mcp.MessageTypeStatusResponse, payload)
	return b.sendAndCount(conn, resp)
}

// Shutdown cancels every active task, announces a graceful shutdown to the
// orchestrator, shuts down the agent manager's worker pool, and
// disconnects the transport client. Safe to call more than once.
func (b *Bridge) Shutdown(ctx context.Context) {
	b.shutdownOnce.Do(func() {
		b.mu.Lock()
		cancels := make([]context.CancelFunc, 0, len(b.activeTasks))
		for _, c := range b.activeTasks {
			cancels = append(cancels, c)
		}
		b.mu.Unlock()
		for _, c := range cancels {
			c()
		}

		shutdownMsg := &mcp.Message{
			ID:          mcp.NewMessageID(),
			Sender:      b.config.ServiceType,
			Recipient:   "orchestrator",
			MessageType: mcp.MessageTypeShutdown,
			Context:     mcp.NewContext("shutdown", 1000),
			Delivery:    mcp.DefaultDeliveryOptions(),
			CreatedAt:   time.Now().UTC(),
			Payload:     map[string]interface{}{"reason": "graceful"},
		}
		_ = b.send(shutdownMsg)

		b.manager.Shutdown(ctx)
		_ = b.client.Disconnect()
	})
}

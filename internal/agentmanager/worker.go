// Package agentmanager implements the agent manager & router of spec.md
// §4.4: a pool of named workers, a keyword-based router that picks exactly
// one worker per request, and moving-average performance tracking.
// Grounded on the teacher's worker-pool idiom (internal/agent/lifecycle's
// instance tracking, generalized from Docker-container instances to
// in-process worker configs) and on spec §9's "Polymorphism across worker
// types" note: workers vary only in configuration, never in code path.
package agentmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentmesh/mcpbus/pkg/mcp"
)

// WorkerConfig is the in-process worker's declared shape (spec §3 "Worker
// config").
type WorkerConfig struct {
	AgentID            string
	AgentType          string
	Model              string
	ComputerUseEnabled bool
	MaxIterations      int
	ToolsAllowed       []string
	SystemPrompt       string
	Capabilities       []string
}

// Task is the unit of work the manager hands to a chosen Worker (spec §4.4
// "execute-task" assembles a task record).
type Task struct {
	ID                 string
	Description        string
	TaskType           string
	Context            mcp.Context
	Priority           int
	ComputerUseEnabled bool
	Tools              []string
	Metadata           map[string]string
	Deadline           *time.Time
}

// WorkerStatus mirrors spec §3's agent health shape, scoped to the
// in-process worker rather than a remote bridge connection.
type WorkerStatus struct {
	Healthy       bool
	StatusMessage string
	ActiveTasks   int
	LastActive    time.Time
}

// Func is the pluggable execution backend a Worker delegates to. Production
// wiring calls through to a collab.LLMProvider and the tool registry;
// tests inject a canned Func to simulate success/failure without a real
// model backend (spec §8 scenario 1: "successful mock execution").
type Func func(ctx context.Context, task *Task) (result interface{}, err error)

// Worker is the single interface every worker type satisfies (spec §9):
// {id, execute(task)->response, status()}. Supervisor/code/vision/writer/
// computer-use workers are all *Worker values differing only in
// WorkerConfig and Func, never in this type's code path.
type Worker struct {
	id     string
	config WorkerConfig
	fn     Func

	mu          sync.Mutex
	activeTasks int
	lastActive  time.Time
}

// NewWorker constructs a Worker. fn implements the worker's actual task
// execution; see Func's doc comment.
func NewWorker(id string, cfg WorkerConfig, fn Func) *Worker {
	return &Worker{id: id, config: cfg, fn: fn, lastActive: time.Now().UTC()}
}

// ID returns the worker's pool key.
func (w *Worker) ID() string { return w.id }

// Config returns the worker's declared configuration.
func (w *Worker) Config() WorkerConfig { return w.config }

// CanHandle reports whether any of requiredCapabilities is in the worker's
// capability set (spec §4.3 "a worker can handle iff any required
// capability is in its capability set").
func (w *Worker) CanHandle(requiredCapabilities []string) bool {
	set := make(map[string]bool, len(w.config.Capabilities))
	for _, c := range w.config.Capabilities {
		set[c] = true
	}
	for _, req := range requiredCapabilities {
		if set[req] {
			return true
		}
	}
	return false
}

// Status reports the worker's current health snapshot.
func (w *Worker) Status() WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorkerStatus{Healthy: true, StatusMessage: "ready", ActiveTasks: w.activeTasks, LastActive: w.lastActive}
}

// Execute runs task through the worker's Func, producing a terminal
// mcp.TaskResponse with populated metrics (spec §4.4 "Execution contract").
func (w *Worker) Execute(ctx context.Context, task *Task) (*mcp.TaskResponse, error) {
	w.mu.Lock()
	w.activeTasks++
	w.lastActive = time.Now().UTC()
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.activeTasks--
		w.mu.Unlock()
	}()

	start := time.Now()
	result, err := w.fn(ctx, task)
	elapsed := time.Since(start)

	resp := &mcp.TaskResponse{
		TaskID: task.ID,
		Metrics: mcp.TaskMetrics{
			ProcessingMS: elapsed.Milliseconds(),
		},
		AssignedAgent: w.id,
	}
	if err != nil {
		resp.Status = mcp.StatusFailed
		resp.ErrorMessage = err.Error()
		resp.ErrorCode = mcp.ErrAgentError
		return resp, err
	}

	resp.Status = mcp.StatusCompleted
	resp.Result = result
	return resp, nil
}

// Shutdown is a no-op that returns nil: it does not change the worker's
// state, and Execute keeps accepting work after it. In-process workers have
// no connection or subprocess to tear down; this exists so
// Manager.Shutdown has a uniform per-worker operation to fan out over
// (spec §4.4 "Concurrent shutdown of every worker").
func (w *Worker) Shutdown(ctx context.Context) error {
	return nil
}

// ErrDuplicateWorker is returned by Manager.RegisterWorker for an id
// already in the pool (spec §4.4 "Creating a duplicate id is an error").
type ErrDuplicateWorker struct{ ID string }

func (e ErrDuplicateWorker) Error() string { return fmt.Sprintf("worker %q already registered", e.ID) }

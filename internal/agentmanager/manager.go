package agentmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentmesh/mcpbus/internal/common/logger"
	"github.com/agentmesh/mcpbus/pkg/mcp"
)

// performanceAlpha is the exponential-moving-average smoothing factor
// applied to both success rate and response time: newAvg = old*(1-a) +
// sample*a.
const performanceAlpha = 0.1

const maxDelegationHistory = 10

// Performance is a worker's running EMA snapshot.
type Performance struct {
	TasksCompleted int
	SuccessRate    float64
	AvgResponseMS  float64
	LastActive     time.Time
}

// DelegationEntry records one routed task for the recent-activity feed
// returned by Status.
type DelegationEntry struct {
	TaskID         string
	Description    string
	AssignedWorker string
	Supervisor     mcp.Supervisor
	Success        bool
	ExecutionTime  time.Duration
	Timestamp      time.Time
}

// EventPublisher is an optional sink for delegation/registration events.
// Production wiring plugs in internal/eventbus; tests and single-process
// deployments leave it nil.
type EventPublisher interface {
	Publish(subject string, payload interface{}) error
}

// Manager owns the worker pool, a Router, and per-worker performance and
// delegation history. It is the in-process counterpart to the bridge's
// remote agent registry: both route task requests to a worker, but the
// manager calls Worker.Execute directly instead of crossing a transport
// connection.
type Manager struct {
	logger  *logger.Logger
	router  *Router
	events  EventPublisher
	defTool []string

	mu             sync.RWMutex
	workers        map[string]*Worker
	performance    map[string]*Performance
	registerOrder  []string

	histMu    sync.Mutex
	history   []DelegationEntry
	shutdown  bool
	shutdownM sync.Mutex
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithEventPublisher wires an optional event sink.
func WithEventPublisher(p EventPublisher) Option {
	return func(m *Manager) { m.events = p }
}

// WithDefaultTools sets the tool names attached to every assembled Task
// that doesn't specify its own.
func WithDefaultTools(tools ...string) Option {
	return func(m *Manager) { m.defTool = tools }
}

// NewManager constructs an empty Manager with its own Router.
func NewManager(log *logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		logger:      log.WithFields(zap.String("component", "agent-manager")),
		router:      NewRouter(),
		workers:     make(map[string]*Worker),
		performance: make(map[string]*Performance),
		defTool:     []string{"web-search", "file-read", "system-info"},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterWorker adds w to the pool under id. Re-registering an id that is
// already present is an error: there is no implicit overwrite here, unlike
// the tool registry's RegisterTool, and the Manager has no operation that
// removes a worker from the pool.
func (m *Manager) RegisterWorker(id string, w *Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.workers[id]; exists {
		return ErrDuplicateWorker{ID: id}
	}
	m.workers[id] = w
	m.performance[id] = &Performance{SuccessRate: 1.0, LastActive: time.Now().UTC()}
	m.registerOrder = append(m.registerOrder, id)
	return nil
}

func (m *Manager) workerExists(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.workers[id]
	return ok
}

// FirstCapable returns the first registered worker id (in registration
// order) whose capability set contains any of requiredCapabilities, honoring
// preferred when it is both non-empty and itself capable. Used by the
// bridge to dispatch a task-request by declared task type rather than by
// the keyword router ExecuteTask uses for free-text descriptions.
func (m *Manager) FirstCapable(requiredCapabilities []string, preferred string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if preferred != "" {
		if w, ok := m.workers[preferred]; ok && w.CanHandle(requiredCapabilities) {
			return preferred, true
		}
	}
	for _, id := range m.registerOrder {
		if m.workers[id].CanHandle(requiredCapabilities) {
			return id, true
		}
	}
	return "", false
}

// ExecuteOnWorker runs task on the named worker directly, bypassing the
// keyword router. It records performance and delegation history exactly
// like ExecuteTask. Used by the bridge, which already knows which worker a
// task-request's declared capability maps to.
func (m *Manager) ExecuteOnWorker(ctx context.Context, workerID string, task *Task) (*mcp.TaskResponse, error) {
	m.mu.RLock()
	worker, ok := m.workers[workerID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("agent-manager: unknown worker %q", workerID)
	}

	start := time.Now()
	resp, err := worker.Execute(ctx, task)
	elapsed := time.Since(start)

	success := err == nil && resp != nil && resp.Status == mcp.StatusCompleted
	m.updatePerformance(workerID, success, elapsed)
	m.recordDelegation(task, workerID, success, elapsed)

	if m.events != nil {
		_ = m.events.Publish("mcpbus.task.delegated", map[string]interface{}{
			"task_id": task.ID, "worker": workerID, "success": success,
		})
	}

	return resp, err
}

// ExecuteTask routes description to a worker (honoring preferred when set
// and present), assembles a Task, runs it, and records performance and
// delegation history.
func (m *Manager) ExecuteTask(ctx context.Context, description string, reqCtx mcp.Context, priority int, preferred string) (*mcp.TaskResponse, error) {
	chosen := m.router.Route(description, preferred, m.workerExists)

	m.mu.RLock()
	worker, ok := m.workers[chosen]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("agent-manager: no worker available for %q", chosen)
	}

	task := &Task{
		ID:                 uuid.New().String(),
		Description:        description,
		TaskType:           "general",
		Context:            reqCtx,
		Priority:           priority,
		ComputerUseEnabled: RequiresComputerUse(description),
		Tools:              m.defTool,
	}

	start := time.Now()
	resp, err := worker.Execute(ctx, task)
	elapsed := time.Since(start)

	success := err == nil && resp != nil && resp.Status == mcp.StatusCompleted
	m.updatePerformance(chosen, success, elapsed)
	m.recordDelegation(task, chosen, success, elapsed)

	if m.events != nil {
		_ = m.events.Publish("mcpbus.task.delegated", map[string]interface{}{
			"task_id": task.ID, "worker": chosen, "success": success,
		})
	}

	return resp, err
}

func (m *Manager) updatePerformance(workerID string, success bool, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.performance[workerID]
	if !ok {
		p = &Performance{SuccessRate: 1.0}
		m.performance[workerID] = p
	}
	p.TasksCompleted++
	p.LastActive = time.Now().UTC()

	successSample := 0.0
	if success {
		successSample = 1.0
	}
	p.SuccessRate = p.SuccessRate*(1-performanceAlpha) + successSample*performanceAlpha

	if ms := float64(elapsed.Milliseconds()); ms > 0 {
		if p.AvgResponseMS == 0 {
			p.AvgResponseMS = ms
		} else {
			p.AvgResponseMS = p.AvgResponseMS*(1-performanceAlpha) + ms*performanceAlpha
		}
	}
}

func (m *Manager) recordDelegation(task *Task, workerID string, success bool, elapsed time.Duration) {
	desc := task.Description
	if len(desc) > 160 {
		desc = desc[:160]
	}
	entry := DelegationEntry{
		TaskID:         task.ID,
		Description:    desc,
		AssignedWorker: workerID,
		Supervisor:     mcp.SupervisorForTask(task.TaskType),
		Success:        success,
		ExecutionTime:  elapsed,
		Timestamp:      time.Now().UTC(),
	}

	m.histMu.Lock()
	defer m.histMu.Unlock()
	m.history = append(m.history, entry)
	if len(m.history) > maxDelegationHistory {
		m.history = m.history[len(m.history)-maxDelegationHistory:]
	}
}

// WorkerSnapshot is one worker's status plus its performance counters, as
// returned by Status.
type WorkerSnapshot struct {
	ID          string
	Config      WorkerConfig
	Status      WorkerStatus
	Performance Performance
}

// ManagerStatus is the aggregate view returned when Status is called with
// no agent id.
type ManagerStatus struct {
	Workers           []WorkerSnapshot
	RecentDelegations []DelegationEntry
}

// Status returns either a single worker's snapshot (agentID non-empty) or
// the full aggregate view (agentID empty), including the most recent
// delegation history (capped at maxDelegationHistory entries).
func (m *Manager) Status(agentID string) (ManagerStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.histMu.Lock()
	recent := make([]DelegationEntry, len(m.history))
	copy(recent, m.history)
	m.histMu.Unlock()

	if agentID != "" {
		w, ok := m.workers[agentID]
		if !ok {
			return ManagerStatus{}, false
		}
		perf := *m.performance[agentID]
		return ManagerStatus{
			Workers:           []WorkerSnapshot{{ID: agentID, Config: w.Config(), Status: w.Status(), Performance: perf}},
			RecentDelegations: recent,
		}, true
	}

	snapshots := make([]WorkerSnapshot, 0, len(m.workers))
	for id, w := range m.workers {
		perf := Performance{}
		if p, ok := m.performance[id]; ok {
			perf = *p
		}
		snapshots = append(snapshots, WorkerSnapshot{ID: id, Config: w.Config(), Status: w.Status(), Performance: perf})
	}
	return ManagerStatus{Workers: snapshots, RecentDelegations: recent}, true
}

// Shutdown concurrently shuts down every registered worker and absorbs
// per-worker errors into the logger rather than failing the whole call.
// Safe to call more than once.
func (m *Manager) Shutdown(ctx context.Context) {
	m.shutdownM.Lock()
	if m.shutdown {
		m.shutdownM.Unlock()
		return
	}
	m.shutdown = true
	m.shutdownM.Unlock()

	m.mu.RLock()
	workers := make([]*Worker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			if err := w.Shutdown(ctx); err != nil {
				m.logger.Warn("worker shutdown error", zap.String("worker_id", w.ID()), zap.Error(err))
			}
		}(w)
	}
	wg.Wait()
}

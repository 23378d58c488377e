package agentmanager

import (
	"context"
	"errors"
	"testing"

	"github.com/agentmesh/mcpbus/internal/common/logger"
	"github.com/agentmesh/mcpbus/pkg/mcp"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(logger.Default())
	if err := RegisterDefaultWorkers(m); err != nil {
		t.Fatalf("RegisterDefaultWorkers: %v", err)
	}
	return m
}

func TestExecuteTaskSuccessfulMock(t *testing.T) {
	m := newTestManager(t)
	resp, err := m.ExecuteTask(context.Background(), "write a short article about Go generics", mcp.NewContext("req-1", 5000), 5, "")
	if err != nil {
		t.Fatalf("ExecuteTask: %v", err)
	}
	if resp.Status != mcp.StatusCompleted {
		t.Fatalf("expected completed, got %s", resp.Status)
	}
	if resp.AssignedAgent != WorkerWriter {
		t.Fatalf("expected writer, got %s", resp.AssignedAgent)
	}
}

func TestExecuteTaskUnknownPreferredFallsBackToRouter(t *testing.T) {
	m := newTestManager(t)
	resp, err := m.ExecuteTask(context.Background(), "debug this script", mcp.NewContext("req-2", 5000), 5, "ghost-worker")
	if err != nil {
		t.Fatalf("ExecuteTask: %v", err)
	}
	if resp.AssignedAgent != WorkerCode {
		t.Fatalf("expected code, got %s", resp.AssignedAgent)
	}
}

func TestDuplicateWorkerRegistrationIsError(t *testing.T) {
	m := newTestManager(t)
	err := m.RegisterWorker(WorkerCode, NewWorker(WorkerCode, WorkerConfig{}, baselineFunc("code")))
	var dup ErrDuplicateWorker
	if !errors.As(err, &dup) {
		t.Fatalf("expected ErrDuplicateWorker, got %v", err)
	}
}

func TestRegisterDefaultWorkersTwiceIsOneDeclaration(t *testing.T) {
	m := newTestManager(t)
	if err := RegisterDefaultWorkers(m); err != nil {
		t.Fatalf("second RegisterDefaultWorkers should be absorbed, got %v", err)
	}
	status, ok := m.Status("")
	if !ok {
		t.Fatal("expected aggregate status")
	}
	if len(status.Workers) != 6 {
		t.Fatalf("expected 6 workers, got %d", len(status.Workers))
	}
}

func TestPerformanceEMAStaysWithinBounds(t *testing.T) {
	m := newTestManager(t)
	for i := 0; i < 5; i++ {
		if _, err := m.ExecuteTask(context.Background(), "run a quick code review", mcp.NewContext("req-3", 5000), 5, ""); err != nil {
			t.Fatalf("ExecuteTask: %v", err)
		}
	}
	status, ok := m.Status(WorkerCode)
	if !ok {
		t.Fatal("expected code worker status")
	}
	rate := status.Workers[0].Performance.SuccessRate
	if rate < 0 || rate > 1 {
		t.Fatalf("success rate out of bounds: %f", rate)
	}
	if status.Workers[0].Performance.TasksCompleted != 5 {
		t.Fatalf("expected 5 completed tasks, got %d", status.Workers[0].Performance.TasksCompleted)
	}
}

func TestDelegationHistoryCapped(t *testing.T) {
	m := newTestManager(t)
	for i := 0; i < maxDelegationHistory+5; i++ {
		if _, err := m.ExecuteTask(context.Background(), "research the history of Go", mcp.NewContext("req-4", 5000), 5, ""); err != nil {
			t.Fatalf("ExecuteTask: %v", err)
		}
	}
	status, _ := m.Status("")
	if len(status.RecentDelegations) != maxDelegationHistory {
		t.Fatalf("expected %d entries, got %d", maxDelegationHistory, len(status.RecentDelegations))
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	m.Shutdown(context.Background())
	m.Shutdown(context.Background())
}

package agentmanager

import (
	"context"
	"fmt"

	"github.com/agentmesh/mcpbus/pkg/mcp"
)

// baselineFunc is the default Func for a worker that has no real model or
// tool wiring yet: it reports back what it would have done, so Manager
// callers get a deterministic, inspectable result instead of an error.
// Production deployments replace this per worker with one that calls
// through to a collab.LLMProvider and the tool registry.
func baselineFunc(agentType string) Func {
	return func(ctx context.Context, task *Task) (interface{}, error) {
		return map[string]interface{}{
			"agent_type":  agentType,
			"description": task.Description,
			"note":        "baseline worker: no model backend configured",
		}, nil
	}
}

// DefaultWorkers builds the six worker configurations spec §4.1's
// supervisor capability table and §9's agent-type catalogue imply:
// supervisor, research, writer, vision, computer-use, and code. Their
// capability tags mirror mcp.AgentCapabilities' task-type groupings so the
// bridge's capability-based worker lookup and this package's keyword
// router agree on what each worker claims.
func DefaultWorkers() map[string]*Worker {
	workers := map[string]WorkerConfig{
		WorkerSupervisor: {
			AgentID:      WorkerSupervisor,
			AgentType:    "supervisor",
			Model:        "default",
			ToolsAllowed: []string{"web-search", "file-read", "file-write", "system-info", "execute-code"},
			SystemPrompt: "You are the default supervisor for tasks with no more specific worker.",
			Capabilities: []string{string(mcp.SupervisorIntelligence), "general"},
		},
		WorkerResearch: {
			AgentID:      WorkerResearch,
			AgentType:    "research",
			Model:        "default",
			ToolsAllowed: []string{"web-search", "file-read"},
			SystemPrompt: "You research topics and summarize findings with sources.",
			Capabilities: []string{"web_research", "fact_checking", "data_analysis", mcp.TaskResearchWebSearch, mcp.TaskResearchWebScrape},
		},
		WorkerWriter: {
			AgentID:      WorkerWriter,
			AgentType:    "writer",
			Model:        "default",
			ToolsAllowed: []string{"file-write"},
			SystemPrompt: "You write and edit prose content.",
			Capabilities: []string{"content_writing", "editing", mcp.TaskWriterCompose},
		},
		WorkerVision: {
			AgentID:      WorkerVision,
			AgentType:    "vision",
			Model:        "default",
			ToolsAllowed: []string{"screenshot"},
			SystemPrompt: "You analyze images and answer questions about visual content.",
			Capabilities: []string{"image_analysis", "visual_qa", mcp.TaskHFVisionClassification, mcp.TaskHFMultimodalVQA},
		},
		WorkerComputerUse: {
			AgentID:            WorkerComputerUse,
			AgentType:          "computer-use",
			Model:              "default",
			ComputerUseEnabled: true,
			ToolsAllowed:       []string{"screenshot"},
			SystemPrompt:       "You operate a desktop GUI to complete tasks via clicks, typing, and navigation.",
			Capabilities:       []string{"gui_automation"},
		},
		WorkerCode: {
			AgentID:      WorkerCode,
			AgentType:    "code",
			Model:        "default",
			ToolsAllowed: []string{"file-read", "file-write", "execute-code"},
			SystemPrompt: "You write, review, and debug code.",
			Capabilities: []string{"code_generation", "code_review", "refactoring", mcp.TaskCodewriterGenerate},
		},
	}

	out := make(map[string]*Worker, len(workers))
	for id, cfg := range workers {
		out[id] = NewWorker(id, cfg, baselineFunc(cfg.AgentType))
	}
	return out
}

// RegisterDefaultWorkers registers every DefaultWorkers() entry with m. It
// is a convenience for callers that want the standard six-worker pool
// without constructing each Worker by hand; RegisterWorker's duplicate-id
// error still applies if called twice against the same Manager, so repeat
// invocations (e.g. from two independent bootstrap paths) are treated as
// one declaration rather than silently doubling the pool.
func RegisterDefaultWorkers(m *Manager) error {
	for id, w := range DefaultWorkers() {
		if err := m.RegisterWorker(id, w); err != nil {
			if _, dup := err.(ErrDuplicateWorker); dup {
				continue
			}
			return fmt.Errorf("register default worker %q: %w", id, err)
		}
	}
	return nil
}

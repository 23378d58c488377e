package tools

import (
	"context"
	"testing"

	"github.com/agentmesh/mcpbus/internal/common/logger"
)

func echoFunc(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return params, nil
}

func TestPermissionDenialScenario(t *testing.T) {
	r := NewRegistry(logger.Default())
	r.RegisterTool("file-read", echoFunc, PermissionRestricted, "read a file", nil)

	_, err := r.Execute(context.Background(), "file-read", map[string]interface{}{"path": "/tmp/x"}, "agent-a")
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.Error() != "Agent agent-a lacks permission for tool file-read" {
		t.Errorf("err = %q, want %q", err.Error(), "Agent agent-a lacks permission for tool file-read")
	}
}

func TestGrantIsIdempotent(t *testing.T) {
	r := NewRegistry(logger.Default())
	r.RegisterTool("file-read", echoFunc, PermissionRestricted, "read a file", nil)

	r.Grant("agent-a", "file-read")
	r.Grant("agent-a", "file-read")
	if !r.CanAccess("agent-a", "file-read") {
		t.Fatal("expected agent-a to have access to file-read")
	}

	if _, err := r.Execute(context.Background(), "file-read", map[string]interface{}{"path": "/tmp/x"}, "agent-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRevokeNeverGrantedIsNoop(t *testing.T) {
	r := NewRegistry(logger.Default())
	r.RegisterTool("file-read", echoFunc, PermissionRestricted, "read a file", nil)

	r.Revoke("agent-a", "file-read")
	if r.CanAccess("agent-a", "file-read") {
		t.Fatal("expected agent-a to still lack access to file-read")
	}
}

func TestPublicToolNeedsNoGrant(t *testing.T) {
	r := NewRegistry(logger.Default())
	r.RegisterTool("system-info", systemInfoTool, PermissionPublic, "info", nil)

	out, err := r.Execute(context.Background(), "system-info", nil, "agent-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["success"] != true {
		t.Errorf("success = %v, want true", out["success"])
	}
}

func TestUnknownToolNotFound(t *testing.T) {
	r := NewRegistry(logger.Default())
	_, err := r.Execute(context.Background(), "does-not-exist", nil, "agent-a")
	if err == nil {
		t.Fatal("expected an error for an unknown tool")
	}
}

func TestExecuteAcceptsJSONStringParams(t *testing.T) {
	r := NewRegistry(logger.Default())
	r.RegisterTool("echo", echoFunc, PermissionPublic, "echo", nil)

	out, err := r.Execute(context.Background(), "echo", `{"a":1}`, "agent-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["a"] != float64(1) {
		t.Errorf("a = %v, want 1", out["a"])
	}
}

func TestToolsForAgentUnion(t *testing.T) {
	r := NewRegistry(logger.Default())
	r.RegisterTool("system-info", systemInfoTool, PermissionPublic, "info", nil)
	r.RegisterTool("file-read", echoFunc, PermissionRestricted, "read", nil)
	r.RegisterTool("execute-code", echoFunc, PermissionSupervised, "exec", nil)
	r.Grant("agent-a", "file-read")

	names := map[string]bool{}
	for _, d := range r.ToolsForAgent("agent-a", []string{"execute-code"}) {
		names[d.Name] = true
	}
	if !names["system-info"] {
		t.Error("expected system-info in the union")
	}
	if !names["file-read"] {
		t.Error("expected file-read in the union")
	}
	if !names["execute-code"] {
		t.Error("expected execute-code in the union")
	}
}

// Package tools implements the tool registry of spec.md §4.5: a
// name-keyed table of callable capabilities gated by a four-level
// permission lattice, per-agent grant lists, invocation timing, and an
// append-only execution log. Grounded on the teacher's registration/lookup
// idiom (internal/agent/registry) generalized from "agent type config" to
// "callable tool", and on goadesign-goa-ai's JSON-schema-validated tool
// parameters (github.com/santhosh-tekuri/jsonschema/v6) for the parameter
// schema described in spec §3 ("Tool descriptor ... parameter schema
// (JSON-schema-shaped object)").
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/agentmesh/mcpbus/internal/common/logger"
	"github.com/agentmesh/mcpbus/internal/common/mcperr"
)

// Permission is one level of the permission lattice (spec §4.5):
// public < restricted < supervised < admin.
type Permission int

const (
	PermissionPublic Permission = iota
	PermissionRestricted
	PermissionSupervised
	PermissionAdmin
)

func (p Permission) String() string {
	switch p {
	case PermissionPublic:
		return "public"
	case PermissionRestricted:
		return "restricted"
	case PermissionSupervised:
		return "supervised"
	case PermissionAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Func is a tool's callable implementation. It is always invoked
// synchronously from the caller's perspective (spec: "await if it is
// asynchronous" maps, in Go, to the caller choosing Execute vs ExecuteAsync
// below); the function itself may block.
type Func func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Descriptor is the registered shape of one tool (spec §3 "Tool descriptor").
type Descriptor struct {
	Name         string
	Permission   Permission
	Description  string
	Parameters   map[string]interface{} // JSON-schema-shaped object
	RegisteredAt time.Time
}

type tool struct {
	Descriptor
	fn     Func
	schema *jsonschema.Schema // nil if Parameters was empty or failed to compile
}

// ExecutionLogEntry is one append-only record of a tool invocation.
type ExecutionLogEntry struct {
	Tool      string
	AgentID   string
	Success   bool
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// Registry owns the tool map, per-agent grants, and the execution log
// (spec §3 "Ownership": "The tool registry exclusively owns its tool map
// and execution log").
type Registry struct {
	logger *logger.Logger

	mu     sync.RWMutex
	tools  map[string]*tool
	grants map[string]map[string]bool // agentID -> tool name -> granted

	logMu sync.Mutex
	log   []ExecutionLogEntry
}

// NewRegistry constructs an empty Registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		logger: log.WithFields(zap.String("component", "tool-registry")),
		tools:  make(map[string]*tool),
		grants: make(map[string]map[string]bool),
	}
}

// RegisterTool inserts or overwrites a tool (spec §4.5: "duplicate names
// overwrite and log").
func (r *Registry) RegisterTool(name string, fn Func, permission Permission, description string, parameters map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		r.logger.Warn("overwriting existing tool registration", zap.String("tool", name))
	}

	var compiled *jsonschema.Schema
	if len(parameters) > 0 {
		c, err := compileSchema(name, parameters)
		if err != nil {
			r.logger.Warn("tool parameter schema failed to compile, skipping validation",
				zap.String("tool", name), zap.Error(err))
		} else {
			compiled = c
		}
	}

	r.tools[name] = &tool{
		Descriptor: Descriptor{
			Name:         name,
			Permission:   permission,
			Description:  description,
			Parameters:   parameters,
			RegisteredAt: time.Now().UTC(),
		},
		fn:     fn,
		schema: compiled,
	}
	return nil
}

func compileSchema(name string, parameters map[string]interface{}) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(parameters)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	url := "mem://tools/" + name
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// Grant adds toolNames to agentID's grant set. Granting a non-existent tool
// logs a warning and is ignored (spec §4.5).
func (r *Registry) Grant(agentID string, toolNames ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.grants[agentID]
	if !ok {
		set = make(map[string]bool)
		r.grants[agentID] = set
	}
	for _, name := range toolNames {
		if _, exists := r.tools[name]; !exists {
			r.logger.Warn("grant for unknown tool ignored", zap.String("tool", name), zap.String("agent_id", agentID))
			continue
		}
		set[name] = true
	}
}

// Revoke removes toolNames from agentID's grant set. Revoking a
// never-granted tool is a no-op (spec §8).
func (r *Registry) Revoke(agentID string, toolNames ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.grants[agentID]
	if !ok {
		return
	}
	for _, name := range toolNames {
		delete(set, name)
	}
}

// CanAccess reports whether agentID may invoke name: public, or explicitly
// granted (spec §8 testable invariant).
func (r *Registry) CanAccess(agentID, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return false
	}
	if t.Permission == PermissionPublic {
		return true
	}
	return r.grants[agentID][name]
}

// ToolsForAgent returns the union of public tools, tools granted to
// agentID, and tools named in requested (intersected with existing tools)
// (spec §4.5 "Enumeration for an agent").
func (r *Registry) ToolsForAgent(agentID string, requested []string) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	out := make([]Descriptor, 0, len(r.tools))
	add := func(name string) {
		if seen[name] {
			return
		}
		if t, ok := r.tools[name]; ok {
			seen[name] = true
			out = append(out, t.Descriptor)
		}
	}

	for name, t := range r.tools {
		if t.Permission == PermissionPublic {
			add(name)
		}
	}
	for name := range r.grants[agentID] {
		add(name)
	}
	for _, name := range requested {
		add(name)
	}
	return out
}

// Descriptors returns every registered tool descriptor.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Descriptor)
	}
	return out
}

// ExecutionError carries the message of the {success:false, error:...} shape
// spec §4.5 step 5/6 describes; Execute returns it as its error value for
// unknown tools, denied access and invalid parameters. Code classifies the failure
// per the bus's error-code taxonomy (internal/common/mcperr) so a caller
// that bridges this into a task-response can pick a wire error_code without
// re-deriving it from the message text.
type ExecutionError struct {
	Message string
	Code    mcperr.Code
}

func (e *ExecutionError) Error() string { return e.Message }

// Execute runs name synchronously for agentID with params (either an
// already-decoded map or a JSON string per spec §4.5 step 3), measuring
// wall-clock duration and appending to the execution log (spec §4.5 steps
// 1-6).
func (r *Registry) Execute(ctx context.Context, name string, rawParams interface{}, agentID string) (map[string]interface{}, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &ExecutionError{Message: fmt.Sprintf("tool not found: %s", name), Code: mcperr.InvalidParameters}
	}
	if !r.CanAccess(agentID, name) {
		msg := fmt.Sprintf("Agent %s lacks permission for tool %s", agentID, name)
		return nil, &ExecutionError{Message: msg, Code: mcperr.AuthorizationFailed}
	}

	params := decodeParams(rawParams)

	if t.schema != nil {
		if err := t.schema.Validate(params); err != nil {
			r.appendLog(name, agentID, false, 0, err.Error())
			return nil, &ExecutionError{Message: fmt.Sprintf("invalid parameters for tool %s: %v", name, err), Code: mcperr.InvalidParameters}
		}
	}

	start := time.Now()
	result, err := t.fn(ctx, params)
	duration := time.Since(start)

	if err != nil {
		r.appendLog(name, agentID, false, duration, err.Error())
		if _, ok := err.(*ExecutionError); ok {
			return nil, err
		}
		return nil, mcperr.Wrap(err, mcperr.AgentError, fmt.Sprintf("tool %s execution failed", name))
	}

	r.appendLog(name, agentID, true, duration, "")

	out := asMap(result)
	out["success"] = true
	out["execution_time"] = duration.Seconds()
	return out, nil
}

// ExecuteAsync runs Execute in its own goroutine and returns a channel that
// receives exactly one result (spec §4.5 step 4: "await if it is
// asynchronous").
func (r *Registry) ExecuteAsync(ctx context.Context, name string, rawParams interface{}, agentID string) <-chan AsyncResult {
	out := make(chan AsyncResult, 1)
	go func() {
		result, err := r.Execute(ctx, name, rawParams, agentID)
		out <- AsyncResult{Result: result, Err: err}
		close(out)
	}()
	return out
}

// AsyncResult is the payload delivered on an ExecuteAsync channel.
type AsyncResult struct {
	Result map[string]interface{}
	Err    error
}

func (r *Registry) appendLog(toolName, agentID string, success bool, duration time.Duration, errMsg string) {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	r.log = append(r.log, ExecutionLogEntry{
		Tool:      toolName,
		AgentID:   agentID,
		Success:   success,
		Duration:  duration,
		Error:     errMsg,
		Timestamp: time.Now().UTC(),
	})
}

// ExecutionLog returns a snapshot of the append-only execution log.
func (r *Registry) ExecutionLog() []ExecutionLogEntry {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	out := make([]ExecutionLogEntry, len(r.log))
	copy(out, r.log)
	return out
}

// decodeParams accepts either a map, a JSON string, or anything else
// (wrapped as {"input": raw}) per spec §4.5 step 3.
func decodeParams(raw interface{}) map[string]interface{} {
	switch v := raw.(type) {
	case nil:
		return map[string]interface{}{}
	case map[string]interface{}:
		return v
	case string:
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(v), &m); err == nil {
			return m
		}
		return map[string]interface{}{"input": v}
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return map[string]interface{}{"input": fmt.Sprintf("%v", v)}
		}
		var m map[string]interface{}
		if err := json.Unmarshal(b, &m); err == nil {
			return m
		}
		return map[string]interface{}{"input": fmt.Sprintf("%v", v)}
	}
}

// asMap forces a tool's return value into a mapping, wrapping non-mapping
// returns as {"output": stringified} (spec §4.5 step 6).
func asMap(v interface{}) map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	if m, ok := v.(map[string]interface{}); ok {
		out := make(map[string]interface{}, len(m)+2)
		for k, val := range m {
			out[k] = val
		}
		return out
	}
	return map[string]interface{}{"output": fmt.Sprintf("%v", v)}
}

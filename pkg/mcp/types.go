// Package mcp defines the wire contract between the orchestrator and worker
// bridges: the Message envelope, its typed sub-records, and the closed
// enumerations spec.md §3/§4.1 describes. Every type here is intended to be
// msgpack- and JSON-encodable without loss, since the framed transport
// (internal/transport) carries it as the self-describing binary body of a
// frame.
package mcp

import "time"

// MessageType is the closed set of typed message kinds validated by the
// schema, plus the control types exchanged on top that the bridge expects
// but does not validate as a typed payload.
type MessageType string

const (
	MessageTypeTaskRequest  MessageType = "task-request"
	MessageTypeTaskResponse MessageType = "task-response"
	MessageTypeTaskProgress MessageType = "task-progress"
	MessageTypeTaskCancel   MessageType = "task-cancel"

	MessageTypeStreamStart MessageType = "stream-start"
	MessageTypeStreamData  MessageType = "stream-data"
	MessageTypeStreamEnd   MessageType = "stream-end"

	MessageTypeHeartbeat   MessageType = "heartbeat"
	MessageTypeHealthCheck MessageType = "health-check"

	MessageTypeAgentRegister   MessageType = "agent-register"
	MessageTypeAgentDeregister MessageType = "agent-deregister"

	MessageTypeSystemCommand MessageType = "system-command"
	MessageTypeConfigUpdate  MessageType = "config-update"
	MessageTypeEmergencyStop MessageType = "emergency-stop"

	// Control types: exchanged between bridge and orchestrator but not
	// validated as a typed payload (spec.md §4.1).
	MessageTypeHandshake          MessageType = "handshake"
	MessageTypeHeartbeatResponse  MessageType = "heartbeat-response"
	MessageTypeAgentQuery         MessageType = "agent-query"
	MessageTypeAgentQueryResponse MessageType = "agent-query-response"
	MessageTypeStatusRequest      MessageType = "status-request"
	MessageTypeStatusResponse     MessageType = "status-response"
	MessageTypeShutdown           MessageType = "shutdown"
)

// validatedMessageTypes is the closed enum the schema validator rejects
// unknown values against; control types are deliberately excluded since
// the spec says they are "not validated as a typed payload."
var validatedMessageTypes = map[MessageType]bool{
	MessageTypeTaskRequest:    true,
	MessageTypeTaskResponse:   true,
	MessageTypeTaskProgress:   true,
	MessageTypeTaskCancel:     true,
	MessageTypeStreamStart:    true,
	MessageTypeStreamData:     true,
	MessageTypeStreamEnd:      true,
	MessageTypeHeartbeat:      true,
	MessageTypeHealthCheck:    true,
	MessageTypeAgentRegister:  true,
	MessageTypeAgentDeregister: true,
	MessageTypeSystemCommand:  true,
	MessageTypeConfigUpdate:   true,
	MessageTypeEmergencyStop:  true,
}

// IsValidatedMessageType reports whether t is one of the typed-payload
// message kinds (as opposed to a control type).
func IsValidatedMessageType(t MessageType) bool {
	return validatedMessageTypes[t]
}

// controlMessageTypes are exchanged between bridge and orchestrator but, per
// spec §4.1, are "not validated as a typed payload" — ValidateMessage still
// accepts them (they are not malformed), it just never decodes a per-arm
// payload type for them the way it implicitly does for task-request/response.
var controlMessageTypes = map[MessageType]bool{
	MessageTypeHandshake:          true,
	MessageTypeHeartbeatResponse:  true,
	MessageTypeAgentQuery:         true,
	MessageTypeAgentQueryResponse: true,
	MessageTypeStatusRequest:      true,
	MessageTypeStatusResponse:     true,
	MessageTypeShutdown:           true,
}

// IsKnownMessageType reports whether t is either a validated typed-payload
// kind or a control kind — i.e. whether the transport should accept the
// message at all. Only a type in neither set is "unknown message type".
func IsKnownMessageType(t MessageType) bool {
	return validatedMessageTypes[t] || controlMessageTypes[t]
}

// DeliveryGuarantee is the declared reliability level of a message.
type DeliveryGuarantee string

const (
	AtMostOnce  DeliveryGuarantee = "at-most-once"
	AtLeastOnce DeliveryGuarantee = "at-least-once"
	ExactlyOnce DeliveryGuarantee = "exactly-once"
)

// TaskStatus is the lifecycle state of a task-response. Widened beyond the
// spec's base enum to include StatusAccepted: see Open Question 1 — the
// bridge genuinely emits a fourth pre-terminal acknowledgement state.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusAccepted  TaskStatus = "accepted"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
	StatusTimeout   TaskStatus = "timeout"
)

// IsTerminal reports whether s is one of the terminal statuses: exactly one
// terminal response per task id is a testable property (spec §8).
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	default:
		return false
	}
}

// AgentType classifies an agent registration.
type AgentType string

const (
	AgentTypeOrchestrator AgentType = "orchestrator"
	AgentTypeSupervisor   AgentType = "supervisor"
	AgentTypeSubAgent     AgentType = "sub-agent"
)

// StreamStatus is the terminal state of a stream-end message.
type StreamStatus string

const (
	StreamCompleted StreamStatus = "completed"
	StreamCancelled StreamStatus = "cancelled"
	StreamFailed    StreamStatus = "failed"
)

// ErrorCode mirrors internal/common/mcperr.Code at the wire level; kept as
// a distinct type here so pkg/mcp has no dependency on internal/.
type ErrorCode string

const (
	ErrInvalidMessageFormat  ErrorCode = "invalid-message-format"
	ErrInvalidTaskType       ErrorCode = "invalid-task-type"
	ErrInvalidParameters     ErrorCode = "invalid-parameters"
	ErrInsufficientBudget    ErrorCode = "insufficient-budget"
	ErrResourceLimitExceeded ErrorCode = "resource-limit-exceeded"
	ErrAgentUnavailable      ErrorCode = "agent-unavailable"
	ErrQueueFull             ErrorCode = "queue-full"
	ErrTaskTimeout           ErrorCode = "task-timeout"
	ErrTaskCancelled         ErrorCode = "task-cancelled"
	ErrAgentError            ErrorCode = "agent-error"
	ErrNetworkError          ErrorCode = "network-error"
	ErrAuthenticationFailed  ErrorCode = "authentication-failed"
	ErrAuthorizationFailed   ErrorCode = "authorization-failed"
	ErrRateLimitExceeded     ErrorCode = "rate-limit-exceeded"
	ErrInternalError         ErrorCode = "internal-error"
	ErrServiceUnavailable    ErrorCode = "service-unavailable"
	ErrConfigurationError    ErrorCode = "configuration-error"
)

// CostBudget tracks per-call and per-model LLM spend.
type CostBudget struct {
	MaxUSD      float64            `json:"max_usd" msgpack:"max_usd"`
	MaxTokens   int64              `json:"max_tokens" msgpack:"max_tokens"`
	UsedUSD     float64            `json:"used_usd" msgpack:"used_usd"`
	UsedTokens  int64              `json:"used_tokens" msgpack:"used_tokens"`
	ModelCosts  map[string]float64 `json:"model_costs,omitempty" msgpack:"model_costs,omitempty"`
}

// OverBudget reports whether used spend/tokens have exceeded the max.
func (b CostBudget) OverBudget() bool {
	return b.UsedUSD > b.MaxUSD || b.UsedTokens > b.MaxTokens
}

// ResourceLimits bounds CPU/memory/concurrency/time for a request.
type ResourceLimits struct {
	MaxCPUPercent         int `json:"max_cpu_percent" msgpack:"max_cpu_percent"`
	MaxMemoryMB           int `json:"max_memory_mb" msgpack:"max_memory_mb"`
	MaxConcurrentRequests int `json:"max_concurrent_requests" msgpack:"max_concurrent_requests"`
	MaxProcessingTimeMS   int `json:"max_processing_time_ms" msgpack:"max_processing_time_ms"`
}

// Context carries tracing, identity, and budget/limit metadata alongside a
// Message.
type Context struct {
	TraceID       string            `json:"trace_id" msgpack:"trace_id"`
	SpanID        string            `json:"span_id" msgpack:"span_id"`
	ParentSpanID  string            `json:"parent_span_id,omitempty" msgpack:"parent_span_id,omitempty"`
	Baggage       map[string]string `json:"baggage,omitempty" msgpack:"baggage,omitempty"`
	UserID        string            `json:"user_id,omitempty" msgpack:"user_id,omitempty"`
	SessionID     string            `json:"session_id,omitempty" msgpack:"session_id,omitempty"`
	WorkspaceID   string            `json:"workspace_id,omitempty" msgpack:"workspace_id,omitempty"`
	RequestID     string            `json:"request_id" msgpack:"request_id"`
	TimeoutMS     int               `json:"timeout_ms" msgpack:"timeout_ms"`
	Metadata      map[string]string `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
	Budget        *CostBudget       `json:"budget,omitempty" msgpack:"budget,omitempty"`
	Limits        *ResourceLimits   `json:"limits,omitempty" msgpack:"limits,omitempty"`
}

// DeliveryOptions is the requested reliability contract for a Message.
type DeliveryOptions struct {
	Guarantee    DeliveryGuarantee `json:"guarantee" msgpack:"guarantee"`
	RetryCount   int               `json:"retry_count" msgpack:"retry_count"`
	RetryDelayMS int               `json:"retry_delay_ms" msgpack:"retry_delay_ms"`
	RequireAck   bool              `json:"require_ack" msgpack:"require_ack"`
	Priority     int               `json:"priority" msgpack:"priority"`
}

// DefaultDeliveryOptions mirrors original_source's create_delivery_options
// helper: at-least-once, priority 5, three retries, 1s retry delay, ack
// required.
func DefaultDeliveryOptions() DeliveryOptions {
	return DeliveryOptions{
		Guarantee:    AtLeastOnce,
		RetryCount:   3,
		RetryDelayMS: 1000,
		RequireAck:   true,
		Priority:     5,
	}
}

// Message is the wire envelope every frame carries.
type Message struct {
	ID            string            `json:"id" msgpack:"id"`
	CorrelationID string            `json:"correlation_id,omitempty" msgpack:"correlation_id,omitempty"`
	TraceID       string            `json:"trace_id" msgpack:"trace_id"`
	SpanID        string            `json:"span_id" msgpack:"span_id"`
	Sender        string            `json:"sender" msgpack:"sender"`
	Recipient     string            `json:"recipient" msgpack:"recipient"`
	MessageType   MessageType       `json:"message_type" msgpack:"message_type"`
	Payload       interface{}       `json:"payload" msgpack:"payload"`
	Tags          []string          `json:"tags,omitempty" msgpack:"tags,omitempty"`
	Context       Context           `json:"context" msgpack:"context"`
	Delivery      DeliveryOptions   `json:"delivery" msgpack:"delivery"`
	CreatedAt     time.Time         `json:"created_at" msgpack:"created_at"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty" msgpack:"expires_at,omitempty"`
	SecurityToken string            `json:"security_token,omitempty" msgpack:"security_token,omitempty"`
	Permissions   []string          `json:"permissions,omitempty" msgpack:"permissions,omitempty"`
}

// TaskRequest is the payload of a task-request message.
type TaskRequest struct {
	TaskType       string                 `json:"task_type" msgpack:"task_type"`
	TaskID         string                 `json:"task_id" msgpack:"task_id"`
	Parameters     interface{}            `json:"parameters,omitempty" msgpack:"parameters,omitempty"`
	Metadata       map[string]string      `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
	PreferredAgent string                 `json:"preferred_agent,omitempty" msgpack:"preferred_agent,omitempty"`
	Priority       int                    `json:"priority" msgpack:"priority"`
	Deadline       *time.Time             `json:"deadline,omitempty" msgpack:"deadline,omitempty"`
}

// TaskMetrics is attached to every TaskResponse.
type TaskMetrics struct {
	ProcessingMS   int64              `json:"processing_time_ms" msgpack:"processing_time_ms"`
	QueueMS        int64              `json:"queue_time_ms" msgpack:"queue_time_ms"`
	RetryCount     int                `json:"retry_count" msgpack:"retry_count"`
	CostUSD        float64            `json:"cost_usd" msgpack:"cost_usd"`
	TokensUsed     int64              `json:"tokens_used" msgpack:"tokens_used"`
	ModelUsed      string             `json:"model_used,omitempty" msgpack:"model_used,omitempty"`
	CustomMetrics  map[string]float64 `json:"custom_metrics,omitempty" msgpack:"custom_metrics,omitempty"`
}

// TaskResponse is the payload of a task-response message.
type TaskResponse struct {
	TaskID       string      `json:"task_id" msgpack:"task_id"`
	Status       TaskStatus  `json:"status" msgpack:"status"`
	Result       interface{} `json:"result,omitempty" msgpack:"result,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty" msgpack:"error_message,omitempty"`
	ErrorCode    ErrorCode   `json:"error_code,omitempty" msgpack:"error_code,omitempty"`
	Metrics      TaskMetrics `json:"metrics" msgpack:"metrics"`
	Warnings     []string    `json:"warnings,omitempty" msgpack:"warnings,omitempty"`

	// AssignedAgent names the worker chosen to handle the task; set on the
	// accepted response per spec §4.3 step 6.
	AssignedAgent string `json:"assigned_agent,omitempty" msgpack:"assigned_agent,omitempty"`
}

// HealthStatus summarizes an agent's runtime health.
type HealthStatus struct {
	Healthy       bool      `json:"healthy" msgpack:"healthy"`
	StatusMessage string    `json:"status_message" msgpack:"status_message"`
	CPUPercent    float64   `json:"cpu_usage" msgpack:"cpu_usage"`
	MemoryMB      int       `json:"memory_mb" msgpack:"memory_mb"`
	ActiveTasks   int       `json:"active_tasks" msgpack:"active_tasks"`
	LastHeartbeat time.Time `json:"last_heartbeat" msgpack:"last_heartbeat"`
}

// AgentRegistration is the payload of an agent-register message.
type AgentRegistration struct {
	AgentID      string            `json:"agent_id" msgpack:"agent_id"`
	AgentName    string            `json:"agent_name" msgpack:"agent_name"`
	Type         AgentType         `json:"type" msgpack:"type"`
	Version      string            `json:"version" msgpack:"version"`
	Capabilities []string          `json:"capabilities" msgpack:"capabilities"`
	Metadata     map[string]string `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
	Health       HealthStatus      `json:"health" msgpack:"health"`
	RegisteredAt time.Time         `json:"registered_at" msgpack:"registered_at"`
}

// HandshakePayload is the payload of a handshake control message.
type HandshakePayload struct {
	ServiceType  string   `json:"service_type" msgpack:"service_type"`
	Version      string   `json:"version" msgpack:"version"`
	Capabilities []string `json:"capabilities" msgpack:"capabilities"`
	Port         int      `json:"port,omitempty" msgpack:"port,omitempty"`
}

// HeartbeatPayload is the payload of a heartbeat message.
type HeartbeatPayload struct {
	Status    string    `json:"status" msgpack:"status"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// AgentRegistrationPayload is a flat registration payload shape (name,
// type, language, capabilities, endpoint, status). Bridge.RegisterAgent does
// not send it: it sends the fuller health-bearing AgentRegistration record
// above over agent-register, and nothing in this module sends this type.
type AgentRegistrationPayload struct {
	AgentName       string   `json:"agent_name" msgpack:"agent_name"`
	AgentType       string   `json:"agent_type" msgpack:"agent_type"`
	Language        string   `json:"language" msgpack:"language"`
	Capabilities    []string `json:"capabilities" msgpack:"capabilities"`
	ServiceEndpoint string   `json:"service_endpoint,omitempty" msgpack:"service_endpoint,omitempty"`
	Status          string   `json:"status" msgpack:"status"`
}

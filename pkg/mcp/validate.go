package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ValidationError reports a single field-level validation failure. Each
// validator returns the first failure it finds; failures are not
// accumulated into a multi-error report.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ValidateMessage rejects unknown message types, out-of-range priorities,
// malformed UUIDs, and missing required fields (spec §4.1).
func ValidateMessage(m *Message) error {
	if m == nil {
		return ValidationError{"message", "nil"}
	}
	if _, err := uuid.Parse(m.ID); err != nil {
		return ValidationError{"id", "not a valid UUID"}
	}
	if m.CorrelationID != "" {
		if _, err := uuid.Parse(m.CorrelationID); err != nil {
			return ValidationError{"correlation_id", "not a valid UUID"}
		}
	}
	if m.Sender == "" {
		return ValidationError{"sender", "required"}
	}
	if m.Recipient == "" {
		return ValidationError{"recipient", "required"}
	}
	if !IsKnownMessageType(m.MessageType) {
		return ValidationError{"message_type", fmt.Sprintf("unknown message type %q", m.MessageType)}
	}
	if err := validateDelivery(m.Delivery); err != nil {
		return err
	}
	if err := validateContext(m.Context); err != nil {
		return err
	}
	return nil
}

func validateContext(c Context) error {
	if c.RequestID == "" {
		return ValidationError{"context.request_id", "required"}
	}
	if c.TimeoutMS < 0 {
		return ValidationError{"context.timeout_ms", "must be >= 0"}
	}
	return nil
}

func validateDelivery(d DeliveryOptions) error {
	if d.RetryCount < 0 || d.RetryCount > 10 {
		return ValidationError{"delivery.retry_count", "must be in [0,10]"}
	}
	if d.RetryDelayMS < 0 {
		return ValidationError{"delivery.retry_delay_ms", "must be >= 0"}
	}
	if d.Priority < 0 || d.Priority > 10 {
		return ValidationError{"delivery.priority", "must be in [0,10]"}
	}
	switch d.Guarantee {
	case AtMostOnce, AtLeastOnce, ExactlyOnce:
	default:
		return ValidationError{"delivery.guarantee", fmt.Sprintf("unknown guarantee %q", d.Guarantee)}
	}
	return nil
}

// ValidateTaskRequest validates a task-request payload.
func ValidateTaskRequest(r *TaskRequest) error {
	if r == nil {
		return ValidationError{"task_request", "nil"}
	}
	if strings.TrimSpace(r.TaskType) == "" {
		return ValidationError{"task_type", "required"}
	}
	if strings.TrimSpace(r.TaskID) == "" {
		return ValidationError{"task_id", "required"}
	}
	if r.Priority < 0 || r.Priority > 10 {
		return ValidationError{"priority", "must be in [0,10]"}
	}
	return nil
}

// ValidateTaskResponse validates a task-response payload.
func ValidateTaskResponse(r *TaskResponse) error {
	if r == nil {
		return ValidationError{"task_response", "nil"}
	}
	if strings.TrimSpace(r.TaskID) == "" {
		return ValidationError{"task_id", "required"}
	}
	switch r.Status {
	case StatusPending, StatusAccepted, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout:
	default:
		return ValidationError{"status", fmt.Sprintf("unknown status %q", r.Status)}
	}
	return nil
}

// ErrUnsupportedGuarantee is returned when a caller requests a delivery
// guarantee this bus declares on the wire but does not implement end to
// end (spec §9 Open Question: "exactly-once ... is declared but not
// implemented; specify as unsupported and return configuration-error when
// requested"). at-most-once and at-least-once are both fully supported.
var ErrUnsupportedGuarantee = fmt.Errorf("delivery guarantee %q is declared but not implemented", ExactlyOnce)

// RequiresUnsupportedDelivery reports whether d asks for a delivery
// guarantee this bus cannot honor. Callers dispatching a task-request
// check this before admission and reject with ErrConfigurationError rather
// than silently downgrading to at-least-once.
func RequiresUnsupportedDelivery(d DeliveryOptions) bool {
	return d.Guarantee == ExactlyOnce
}

// NewMessageID mints a UUID v4 message id.
func NewMessageID() string {
	return uuid.New().String()
}

// NewContext builds a Context the way original_source's create_mcp_context
// helper does: fresh trace/span ids when not supplied, empty baggage/metadata.
func NewContext(requestID string, timeoutMS int) Context {
	return Context{
		TraceID:   uuid.New().String(),
		SpanID:    uuid.New().String(),
		RequestID: requestID,
		TimeoutMS: timeoutMS,
		Baggage:   map[string]string{},
		Metadata:  map[string]string{},
	}
}

// ErrorResponseFor builds the task-response a server/bridge must synthesize
// when a handler fails while processing a task-request (spec §4.2): status
// failed, error-code internal-error, preserving correlation id/trace/span/
// sender-recipient(swapped)/context/delivery.
func ErrorResponseFor(req *Message, errCode ErrorCode, errMsg string) *Message {
	return &Message{
		ID:            NewMessageID(),
		CorrelationID: req.ID,
		TraceID:       req.TraceID,
		SpanID:        req.SpanID,
		Sender:        req.Recipient,
		Recipient:     req.Sender,
		MessageType:   MessageTypeTaskResponse,
		Context:       req.Context,
		Delivery:      req.Delivery,
		CreatedAt:     time.Now().UTC(),
		Payload: TaskResponse{
			Status:       StatusFailed,
			ErrorCode:    errCode,
			ErrorMessage: errMsg,
		},
	}
}

package mcp

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func validMessage() *Message {
	return &Message{
		ID:          uuid.New().String(),
		TraceID:     uuid.New().String(),
		SpanID:      uuid.New().String(),
		Sender:      "orchestrator",
		Recipient:   "worker-1",
		MessageType: MessageTypeTaskRequest,
		Context:     NewContext(uuid.New().String(), 30000),
		Delivery:    DefaultDeliveryOptions(),
		CreatedAt:   time.Now().UTC(),
	}
}

func TestValidateMessage_Valid(t *testing.T) {
	if err := ValidateMessage(validMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateMessage_BadUUID(t *testing.T) {
	m := validMessage()
	m.ID = "not-a-uuid"
	if err := ValidateMessage(m); err == nil {
		t.Error("expected an error for a non-UUID message id")
	}
}

func TestValidateMessage_UnknownType(t *testing.T) {
	m := validMessage()
	m.MessageType = "bogus"
	if err := ValidateMessage(m); err == nil {
		t.Error("expected an error for an unknown message type")
	}
}

func TestValidateMessage_ControlTypeAccepted(t *testing.T) {
	// Control types (handshake, heartbeat-response, shutdown, ...) are "not
	// validated as a typed payload" per spec §4.1 — meaning no per-arm
	// payload type is enforced for them — but they are still known,
	// acceptable message types the transport must pass through to the
	// handler rather than drop.
	for _, mt := range []MessageType{
		MessageTypeHandshake, MessageTypeHeartbeatResponse, MessageTypeAgentQuery,
		MessageTypeAgentQueryResponse, MessageTypeStatusRequest, MessageTypeStatusResponse,
		MessageTypeShutdown,
	} {
		m := validMessage()
		m.MessageType = mt
		if err := ValidateMessage(m); err != nil {
			t.Errorf("control type %s should be accepted, got error: %v", mt, err)
		}
	}
}

func TestValidateMessage_PriorityOutOfRange(t *testing.T) {
	m := validMessage()
	m.Delivery.Priority = 11
	if err := ValidateMessage(m); err == nil {
		t.Error("expected an error for an out-of-range priority")
	}
}

func TestValidateTaskRequest(t *testing.T) {
	req := &TaskRequest{TaskType: TaskCodewriterGenerate, TaskID: uuid.New().String(), Priority: 5}
	if err := ValidateTaskRequest(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req.TaskID = ""
	if err := ValidateTaskRequest(req); err == nil {
		t.Error("expected an error for a missing task id")
	}
}

func TestIsValidTaskType(t *testing.T) {
	if !IsValidTaskType(TaskResearchWebSearch) {
		t.Error("expected a known task type to be valid")
	}
	if IsValidTaskType("not.a.real.task") {
		t.Error("expected an unknown task type to be invalid")
	}
}

func TestSupervisorForTask(t *testing.T) {
	if got := SupervisorForTask(TaskSecAudit); got != SupervisorSystem {
		t.Errorf("SupervisorForTask(TaskSecAudit) = %v, want %v", got, SupervisorSystem)
	}
	if got := SupervisorForTask(TaskArtistGenerateImage); got != SupervisorMultimodal {
		t.Errorf("SupervisorForTask(TaskArtistGenerateImage) = %v, want %v", got, SupervisorMultimodal)
	}
	if got := SupervisorForTask("totally.unknown.task"); got != SupervisorIntelligence {
		t.Errorf("SupervisorForTask(unknown) = %v, want %v", got, SupervisorIntelligence)
	}
}

func TestRequiresUnsupportedDelivery(t *testing.T) {
	if !RequiresUnsupportedDelivery(DeliveryOptions{Guarantee: ExactlyOnce}) {
		t.Error("expected exactly-once delivery to be unsupported")
	}
	if RequiresUnsupportedDelivery(DeliveryOptions{Guarantee: AtLeastOnce}) {
		t.Error("expected at-least-once delivery to be supported")
	}
	if RequiresUnsupportedDelivery(DeliveryOptions{Guarantee: AtMostOnce}) {
		t.Error("expected at-most-once delivery to be supported")
	}
}

func TestErrorResponseFor_SwapsSenderRecipient(t *testing.T) {
	req := validMessage()
	req.CorrelationID = ""
	resp := ErrorResponseFor(req, ErrInternalError, "boom")

	if resp.CorrelationID != req.ID {
		t.Errorf("correlation id = %v, want %v", resp.CorrelationID, req.ID)
	}
	if resp.Sender != req.Recipient {
		t.Errorf("sender = %v, want %v", resp.Sender, req.Recipient)
	}
	if resp.Recipient != req.Sender {
		t.Errorf("recipient = %v, want %v", resp.Recipient, req.Sender)
	}
	if resp.TraceID != req.TraceID {
		t.Errorf("trace id = %v, want %v", resp.TraceID, req.TraceID)
	}
	payload, ok := resp.Payload.(TaskResponse)
	if !ok {
		t.Fatalf("payload is %T, want TaskResponse", resp.Payload)
	}
	if payload.Status != StatusFailed {
		t.Errorf("status = %v, want %v", payload.Status, StatusFailed)
	}
	if payload.ErrorCode != ErrInternalError {
		t.Errorf("error code = %v, want %v", payload.ErrorCode, ErrInternalError)
	}
}

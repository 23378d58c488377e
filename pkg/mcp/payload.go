package mcp

import "github.com/vmihailenco/msgpack/v5"

// DecodePayload re-marshals m.Payload (which arrives as a generic
// map[string]interface{} after a msgpack round-trip, since Message.Payload
// is declared interface{}) into dest, a pointer to one of the typed payload
// structs in this package (TaskRequest, TaskResponse, HandshakePayload, ...).
// Payload is a tagged union over MessageType, and each arm has its own
// concrete Go type, decoded on demand instead of up front.
func DecodePayload(m *Message, dest interface{}) error {
	raw, err := msgpack.Marshal(m.Payload)
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(raw, dest)
}

// WithPayload returns a shallow copy of m with Payload replaced; used when
// building a reply message from a typed payload struct.
func WithPayload(m Message, payload interface{}) *Message {
	m.Payload = payload
	return &m
}

// Package eventbus is an optional NATS-backed fan-out for agent
// registration, heartbeat, and task-delegation events, wired when
// config.NATSConfig.Enabled is true. Adapted from the teacher's
// internal/events/bus NATSEventBus (same sibling repository, apps/backend):
// same connect-with-reconnect-options and JSON-over-nats.Publish idiom,
// trimmed to this bus's three fixed publish subjects and with the
// generic Subscribe/Request surface dropped since nothing here consumes
// events, only emits them.
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/agentmesh/mcpbus/internal/common/config"
	"github.com/agentmesh/mcpbus/internal/common/logger"
)

// Fixed publish subjects. External consumers (dashboards, other services)
// subscribe to these directly on the NATS server.
const (
	SubjectAgentRegistered = "mcpbus.agent.registered"
	SubjectAgentHeartbeat  = "mcpbus.agent.heartbeat"
	SubjectTaskDelegated   = "mcpbus.task.delegated"
)

// Bus publishes JSON-encoded events to NATS subjects. It implements
// agentmanager.EventPublisher and transport.CapabilityBroadcaster so it can
// be wired into either without an adapter type.
type Bus struct {
	conn   *nats.Conn
	logger *logger.Logger
}

// Connect dials cfg.URL when cfg.Enabled; otherwise it returns a disabled
// Bus whose Publish/BroadcastCapabilities calls are no-ops, so callers
// never need a nil check at the call site.
func Connect(cfg config.NATSConfig, log *logger.Logger) (*Bus, error) {
	b := &Bus{logger: log.WithFields(zap.String("component", "eventbus"))}
	if !cfg.Enabled {
		return b, nil
	}

	opts := []nats.Option{
		nats.Name("mcpbus"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", cfg.URL, err)
	}
	b.conn = conn
	log.Info("connected to nats", zap.String("url", cfg.URL))
	return b, nil
}

// Enabled reports whether this Bus holds a live NATS connection.
func (b *Bus) Enabled() bool { return b.conn != nil }

// Publish JSON-encodes payload and sends it on subject. A no-op on a
// disabled Bus.
func (b *Bus) Publish(subject string, payload interface{}) error {
	if b.conn == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", subject, err)
	}
	if err := b.conn.Publish(subject, data); err != nil {
		b.logger.Warn("nats publish failed", zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// BroadcastCapabilities implements transport.CapabilityBroadcaster,
// publishing an agent-registered event alongside the framed reply path the
// transport server already sends.
func (b *Bus) BroadcastCapabilities(agentID string, capabilities []string) error {
	return b.Publish(SubjectAgentRegistered, map[string]interface{}{
		"agent_id":     agentID,
		"capabilities": capabilities,
	})
}

// Close drains and closes the underlying NATS connection; a no-op on a
// disabled Bus.
func (b *Bus) Close() {
	if b.conn == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.logger.Warn("error draining nats connection", zap.Error(err))
		b.conn.Close()
	}
}

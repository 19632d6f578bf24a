// Package events delivers analysis-result domain events to the message bus.
// The engine's obligation ends at producing a well-formed event; consumers own
// persistence and downstream schemas.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Event types emitted by the risk services.
const (
	TypeSimulationCompleted  = "risk.simulation.completed"
	TypeLiquidityAssessed    = "risk.liquidity.assessed"
	TypeStressTestCompleted  = "risk.stress_test.completed"
	TypeCorrelationAnalyzed  = "risk.correlation.analyzed"
	TypeLimitCycleCompleted  = "risk.limits.cycle_completed"
	TypeLimitBreachDetected  = "risk.limits.breach_detected"
	TypeLimitAlertRaised     = "risk.limits.alert_raised"
	TypeEscalationDispatched = "risk.limits.escalation_dispatched"
)

// Event is the envelope published for every completed analysis.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	EventType string          `json:"event_type"`
	EntityID  string          `json:"entity_id"`
	TenantID  string          `json:"tenant_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent builds an envelope with the payload marshaled to JSON.
func NewEvent(eventType, entityID, tenantID string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return &Event{
		ID:        uuid.New(),
		EventType: eventType,
		EntityID:  entityID,
		TenantID:  tenantID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// Publisher is the result sink consumed by the risk services.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// NATSPublisher publishes events on `<prefix><event_type>` subjects.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NATSPublisherConfig configures the publisher.
type NATSPublisherConfig struct {
	URL    string
	Prefix string
}

// DefaultNATSPublisherConfig returns default configuration.
func DefaultNATSPublisherConfig() NATSPublisherConfig {
	return NATSPublisherConfig{
		URL:    nats.DefaultURL,
		Prefix: "riskengine.",
	}
}

// NewNATSPublisher connects to NATS with automatic reconnection.
func NewNATSPublisher(config NATSPublisherConfig) (*NATSPublisher, error) {
	if config.Prefix == "" {
		config.Prefix = "riskengine."
	}

	nc, err := nats.Connect(
		config.URL,
		nats.Name("riskengine-publisher"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", config.URL, err)
	}

	log.Info().Str("url", config.URL).Str("prefix", config.Prefix).Msg("NATS event publisher connected")

	return &NATSPublisher{nc: nc, prefix: config.Prefix}, nil
}

// Publish sends the event on its type-derived subject.
func (p *NATSPublisher) Publish(ctx context.Context, event *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := p.prefix + event.EventType
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event on %s: %w", subject, err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_type", event.EventType).
		Str("entity_id", event.EntityID).
		Msg("Event published")

	return nil
}

// Close flushes and closes the connection.
func (p *NATSPublisher) Close() error {
	if err := p.nc.Flush(); err != nil {
		log.Warn().Err(err).Msg("NATS flush failed during close")
	}
	p.nc.Close()
	return nil
}

// NoopPublisher discards events; used when no bus is configured.
type NoopPublisher struct{}

// Publish drops the event after a debug log.
func (NoopPublisher) Publish(_ context.Context, event *Event) error {
	log.Debug().Str("event_type", event.EventType).Msg("Event discarded (no publisher configured)")
	return nil
}

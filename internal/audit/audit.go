// Package audit persists a tamper-evident trail of analysis runs, limit
// breaches and breach lifecycle actions. Every event is also written to the
// structured log, so the trail survives even when no database is attached.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// EventType classifies an audit trail entry.
type EventType string

const (
	EventTypeRunCompleted       EventType = "RUN_COMPLETED"
	EventTypeRunFailed          EventType = "RUN_FAILED"
	EventTypeLimitBreach        EventType = "LIMIT_BREACH"
	EventTypeBreachAcknowledged EventType = "BREACH_ACKNOWLEDGED"
	EventTypeBreachResolved     EventType = "BREACH_RESOLVED"
	EventTypeEscalation         EventType = "ESCALATION"
)

// Severity grades an audit event.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Event is a single audit trail entry.
type Event struct {
	ID          uuid.UUID              `json:"id"`
	Timestamp   time.Time              `json:"timestamp"`
	EventType   EventType              `json:"event_type"`
	Severity    Severity               `json:"severity"`
	TenantID    string                 `json:"tenant_id"`
	PortfolioID string                 `json:"portfolio_id,omitempty"`
	Resource    string                 `json:"resource,omitempty"` // run ID, breach ID or limit ID
	Action      string                 `json:"action"`
	Success     bool                   `json:"success"`
	ErrorMsg    string                 `json:"error_message,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Execer is the database surface the audit trail needs; satisfied by
// pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Logger writes audit events. A nil db disables persistence; a disabled
// logger drops events entirely.
type Logger struct {
	db      Execer
	enabled bool
}

// NewLogger creates an audit logger. Pass a nil db for log-only operation.
func NewLogger(db Execer, enabled bool) *Logger {
	return &Logger{db: db, enabled: enabled}
}

// Log records one audit event.
func (l *Logger) Log(ctx context.Context, event *Event) error {
	if l == nil || !l.enabled {
		return nil
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	logEvent := log.With().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.EventType)).
		Str("severity", string(event.Severity)).
		Str("tenant_id", event.TenantID).
		Str("portfolio_id", event.PortfolioID).
		Str("resource", event.Resource).
		Str("action", event.Action).
		Bool("success", event.Success).
		Logger()
	switch event.Severity {
	case SeverityCritical, SeverityError:
		logEvent.Error().Str("error", event.ErrorMsg).Msg("Audit event")
	case SeverityWarning:
		logEvent.Warn().Msg("Audit event")
	default:
		logEvent.Info().Msg("Audit event")
	}

	if l.db == nil {
		return nil
	}
	return l.persist(ctx, event)
}

func (l *Logger) persist(ctx context.Context, event *Event) error {
	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal audit event metadata")
			metadataJSON = []byte("{}")
		}
	}

	query := `
		INSERT INTO audit_log (
			id, timestamp, event_type, severity, tenant_id, portfolio_id,
			resource, action, success, error_message, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := l.db.Exec(ctx, query,
		event.ID, event.Timestamp, event.EventType, event.Severity,
		event.TenantID, event.PortfolioID, event.Resource, event.Action,
		event.Success, event.ErrorMsg, metadataJSON,
	)
	if err != nil {
		log.Error().Err(err).
			Str("event_id", event.ID.String()).
			Str("event_type", string(event.EventType)).
			Msg("Failed to persist audit event")
		return err
	}
	return nil
}

// LogRun records the outcome of one full analysis pass over a portfolio.
func (l *Logger) LogRun(ctx context.Context, tenantID, portfolioID, runID string, elapsed time.Duration, runErr error) error {
	event := &Event{
		EventType:   EventTypeRunCompleted,
		Severity:    SeverityInfo,
		TenantID:    tenantID,
		PortfolioID: portfolioID,
		Resource:    runID,
		Action:      "Analysis pass completed",
		Success:     true,
		Metadata:    map[string]interface{}{"elapsed_ms": elapsed.Milliseconds()},
	}
	if runErr != nil {
		event.EventType = EventTypeRunFailed
		event.Severity = SeverityError
		event.Action = "Analysis pass failed"
		event.Success = false
		event.ErrorMsg = runErr.Error()
	}
	return l.Log(ctx, event)
}

// LogBreach records a detected limit breach.
func (l *Logger) LogBreach(ctx context.Context, tenantID, portfolioID, breachID, limitID string, utilizationPct float64, severity string) error {
	sev := SeverityWarning
	if severity == "HIGH" || severity == "CRITICAL" {
		sev = SeverityCritical
	}
	return l.Log(ctx, &Event{
		EventType:   EventTypeLimitBreach,
		Severity:    sev,
		TenantID:    tenantID,
		PortfolioID: portfolioID,
		Resource:    breachID,
		Action:      "Limit breached",
		Success:     false,
		Metadata: map[string]interface{}{
			"limit_id":        limitID,
			"utilization_pct": utilizationPct,
			"breach_severity": severity,
		},
	})
}

// LogEscalation records a breach escalation to the next responder role.
func (l *Logger) LogEscalation(ctx context.Context, tenantID, portfolioID, breachID, fromRole, toRole string) error {
	return l.Log(ctx, &Event{
		EventType:   EventTypeEscalation,
		Severity:    SeverityWarning,
		TenantID:    tenantID,
		PortfolioID: portfolioID,
		Resource:    breachID,
		Action:      "Breach escalated",
		Success:     true,
		Metadata: map[string]interface{}{
			"from_role": fromRole,
			"to_role":   toRole,
		},
	})
}

// LogLifecycle records an acknowledge or resolve action on a breach.
func (l *Logger) LogLifecycle(ctx context.Context, eventType EventType, tenantID, breachID, actor string) error {
	action := "Breach acknowledged"
	if eventType == EventTypeBreachResolved {
		action = "Breach resolved"
	}
	return l.Log(ctx, &Event{
		EventType: eventType,
		Severity:  SeverityInfo,
		TenantID:  tenantID,
		Resource:  breachID,
		Action:    action,
		Success:   true,
		Metadata:  map[string]interface{}{"actor": actor},
	})
}

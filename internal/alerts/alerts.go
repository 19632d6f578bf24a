package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Severity levels for alerts
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Alert represents an alert message
type Alert struct {
	Title     string
	Message   string
	Severity  Severity
	Timestamp time.Time
	Metadata  map[string]interface{}
}

// Alerter defines the interface for sending alerts
type Alerter interface {
	Send(ctx context.Context, alert Alert) error
}

// Manager fans an alert out to every configured channel
type Manager struct {
	alerters []Alerter
}

// NewManager creates a new alert manager
func NewManager(alerters ...Alerter) *Manager {
	return &Manager{
		alerters: alerters,
	}
}

// Send sends an alert to all configured alerters
func (m *Manager) Send(ctx context.Context, alert Alert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	var lastErr error
	for _, alerter := range m.alerters {
		if err := alerter.Send(ctx, alert); err != nil {
			log.Error().
				Err(err).
				Str("title", alert.Title).
				Msg("Failed to send alert")
			lastErr = err
		}
	}

	return lastErr
}

// SendCritical is a convenience method for sending critical alerts
func (m *Manager) SendCritical(ctx context.Context, title, message string, metadata map[string]interface{}) error {
	return m.Send(ctx, Alert{
		Title:    title,
		Message:  message,
		Severity: SeverityCritical,
		Metadata: metadata,
	})
}

// SendWarning is a convenience method for sending warning alerts
func (m *Manager) SendWarning(ctx context.Context, title, message string, metadata map[string]interface{}) error {
	return m.Send(ctx, Alert{
		Title:    title,
		Message:  message,
		Severity: SeverityWarning,
		Metadata: metadata,
	})
}

// SendInfo is a convenience method for sending info alerts
func (m *Manager) SendInfo(ctx context.Context, title, message string, metadata map[string]interface{}) error {
	return m.Send(ctx, Alert{
		Title:    title,
		Message:  message,
		Severity: SeverityInfo,
		Metadata: metadata,
	})
}

// LogAlerter logs alerts using zerolog
type LogAlerter struct{}

// NewLogAlerter creates a new log-based alerter
func NewLogAlerter() *LogAlerter {
	return &LogAlerter{}
}

// Send sends an alert by logging it
func (l *LogAlerter) Send(ctx context.Context, alert Alert) error {
	event := log.Log()

	switch alert.Severity {
	case SeverityCritical:
		event = log.Error()
	case SeverityWarning:
		event = log.Warn()
	case SeverityInfo:
		event = log.Info()
	}

	if alert.Metadata != nil {
		for key, value := range alert.Metadata {
			event = event.Interface(key, value)
		}
	}

	event.
		Str("alert_title", alert.Title).
		Str("alert_severity", string(alert.Severity)).
		Time("alert_time", alert.Timestamp).
		Msg(fmt.Sprintf("ALERT: %s", alert.Message))

	return nil
}

// Default global alert manager (can be replaced with custom configuration)
var defaultManager *Manager

func init() {
	defaultManager = NewManager(NewLogAlerter())
}

// GetDefaultManager returns the default alert manager
func GetDefaultManager() *Manager {
	return defaultManager
}

// SetDefaultManager sets the default alert manager
func SetDefaultManager(manager *Manager) {
	defaultManager = manager
}

// AlertLimitBreach sends an alert when a risk limit is breached
func (m *Manager) AlertLimitBreach(ctx context.Context, limitName, portfolioID string, utilizationPct float64, severity Severity) {
	msg := fmt.Sprintf("Limit %s breached on %s at %.1f%% utilization", limitName, portfolioID, utilizationPct)
	metadata := map[string]interface{}{
		"limit_name":      limitName,
		"portfolio_id":    portfolioID,
		"utilization_pct": utilizationPct,
	}
	if severity == SeverityCritical {
		m.SendCritical(ctx, "Risk Limit Breach", msg, metadata)
		return
	}
	m.SendWarning(ctx, "Risk Limit Breach", msg, metadata)
}

// AlertEscalation sends an alert when a breach escalates up the chain
func (m *Manager) AlertEscalation(ctx context.Context, limitName, portfolioID, toRole string, utilizationPct float64) {
	m.SendCritical(ctx, "Limit Breach Escalation", fmt.Sprintf(
		"Limit %s on %s at %.1f%% escalated to %s", limitName, portfolioID, utilizationPct, toRole,
	), map[string]interface{}{
		"limit_name":      limitName,
		"portfolio_id":    portfolioID,
		"utilization_pct": utilizationPct,
		"escalated_to":    toRole,
	})
}

// AlertAnalysisFailed sends an alert when a scheduled analysis run fails
func AlertAnalysisFailed(ctx context.Context, analysis, portfolioID string, err error) {
	defaultManager.SendCritical(ctx, "Analysis Run Failed", fmt.Sprintf(
		"%s analysis failed for %s: %v", analysis, portfolioID, err,
	), map[string]interface{}{
		"analysis":     analysis,
		"portfolio_id": portfolioID,
		"error":        err.Error(),
	})
}

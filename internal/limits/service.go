package limits

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/finbrook/riskengine/internal/alerts"
	"github.com/finbrook/riskengine/internal/events"
	"github.com/finbrook/riskengine/internal/metrics"
)

// Service runs monitoring cycles over a configured limit set. Measured
// values come from the caller: the engine computes VaR, concentration and
// the rest upstream and hands the numbers in, keyed by limit ID.
type Service struct {
	limits    []RiskLimit
	monitor   *Monitor
	publisher events.Publisher
	alerter   *alerts.Manager
	tenantID  string
}

// NewService creates a limit monitoring service over the given limit set.
func NewService(limits []RiskLimit, publisher events.Publisher, alerter *alerts.Manager, tenantID string) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if alerter == nil {
		alerter = alerts.GetDefaultManager()
	}
	return &Service{
		limits:    limits,
		monitor:   NewMonitor(),
		publisher: publisher,
		alerter:   alerter,
		tenantID:  tenantID,
	}
}

// Monitor exposes the breach registry for acknowledge/resolve workflows.
func (s *Service) Monitor() *Monitor {
	return s.monitor
}

// LimitsFor returns the enabled limits configured for a portfolio whose
// effective window covers now.
func (s *Service) LimitsFor(portfolioID string, now time.Time) []RiskLimit {
	var out []RiskLimit
	for _, l := range s.limits {
		if l.Enabled && l.PortfolioID == portfolioID && l.ActiveAt(now) {
			out = append(out, l)
		}
	}
	return out
}

// EvaluateCycle runs one monitoring cycle for a portfolio. measurements maps
// limit ID to the current measured value; every enabled limit for the
// portfolio must be covered.
func (s *Service) EvaluateCycle(ctx context.Context, portfolioID string, measurements map[string]float64) (*CycleResult, error) {
	started := time.Now()
	result, err := s.evaluateCycle(ctx, portfolioID, measurements)
	metrics.ObserveAnalysis(metrics.AnalysisLimits, time.Since(started), err == nil)
	return result, err
}

func (s *Service) evaluateCycle(ctx context.Context, portfolioID string, measurements map[string]float64) (*CycleResult, error) {
	if portfolioID == "" {
		return nil, fmt.Errorf("portfolio ID is required")
	}

	now := time.Now().UTC()
	limits := s.LimitsFor(portfolioID, now)
	if len(limits) == 0 {
		return nil, fmt.Errorf("no enabled limits configured for portfolio %s", portfolioID)
	}
	sort.Slice(limits, func(i, j int) bool { return limits[i].ID < limits[j].ID })

	result := &CycleResult{
		RunID:       uuid.NewString(),
		PortfolioID: portfolioID,
		RunAt:       now,
	}

	log.Info().
		Str("portfolio_id", portfolioID).
		Int("limits", len(limits)).
		Msg("Starting limit monitoring cycle")

	for _, limit := range limits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current, ok := measurements[limit.ID]
		if !ok {
			return nil, fmt.Errorf("no measurement supplied for limit %s", limit.ID)
		}

		u := evaluate(limit, current, now)
		result.Utilizations = append(result.Utilizations, u)

		switch {
		case u.IsBreached:
			breach, isNew := s.monitor.recordBreach(limit, u, now)
			result.Breaches = append(result.Breaches, breach)
			if isNew {
				s.onBreach(ctx, breach)
			}
			if u.UtilizationPct >= limit.EscalationThreshold() {
				result.Escalations = append(result.Escalations, s.escalate(ctx, breach, now))
			}

		case u.IsWarning || u.IsSoftBreach:
			s.onWarning(ctx, limit, u)
		}
	}

	log.Info().
		Str("run_id", result.RunID).
		Int("breaches", len(result.Breaches)).
		Int("escalations", len(result.Escalations)).
		Msg("Limit monitoring cycle completed")

	event, err := events.NewEvent(events.TypeLimitCycleCompleted, portfolioID, s.tenantID, result)
	if err != nil {
		return nil, err
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Error().Err(err).Str("run_id", result.RunID).Msg("Failed to publish limit cycle event")
	}

	return result, nil
}

func (s *Service) onBreach(ctx context.Context, breach *Breach) {
	metrics.CountLimitBreach(string(breach.Severity))

	log.Warn().
		Str("limit_id", breach.LimitID).
		Str("severity", string(breach.Severity)).
		Float64("utilization_pct", breach.UtilizationPct).
		Str("assigned_role", string(breach.AssignedRole)).
		Time("respond_by", breach.RespondBy).
		Msg("Risk limit breached")

	severity := alerts.SeverityWarning
	if breach.Severity == SeverityHigh || breach.Severity == SeverityCritical {
		severity = alerts.SeverityCritical
	}
	s.alerter.AlertLimitBreach(ctx, breach.LimitName, breach.PortfolioID, breach.UtilizationPct, severity)

	event, err := events.NewEvent(events.TypeLimitBreachDetected, breach.PortfolioID, s.tenantID, breach)
	if err == nil {
		if err := s.publisher.Publish(ctx, event); err != nil {
			log.Error().Err(err).Str("breach_id", breach.ID).Msg("Failed to publish breach event")
		}
	}
}

func (s *Service) onWarning(ctx context.Context, limit RiskLimit, u Utilization) {
	log.Warn().
		Str("limit_id", limit.ID).
		Float64("utilization_pct", u.UtilizationPct).
		Bool("soft_breach", u.IsSoftBreach).
		Msg("Risk limit approaching")

	s.alerter.SendWarning(ctx, "Risk Limit Warning", fmt.Sprintf(
		"Limit %s on %s at %.1f%% utilization", limit.Name, limit.PortfolioID, u.UtilizationPct,
	), map[string]interface{}{
		"limit_id":        limit.ID,
		"portfolio_id":    limit.PortfolioID,
		"utilization_pct": u.UtilizationPct,
	})

	event, err := events.NewEvent(events.TypeLimitAlertRaised, limit.PortfolioID, s.tenantID, u)
	if err == nil {
		if err := s.publisher.Publish(ctx, event); err != nil {
			log.Error().Err(err).Str("limit_id", limit.ID).Msg("Failed to publish limit alert event")
		}
	}
}

func (s *Service) escalate(ctx context.Context, breach *Breach, now time.Time) Escalation {
	esc := Escalation{
		ID:             uuid.NewString(),
		BreachID:       breach.ID,
		LimitID:        breach.LimitID,
		FromRole:       breach.AssignedRole,
		ToRole:         nextRole(breach.AssignedRole),
		UtilizationPct: breach.UtilizationPct,
		EscalatedAt:    now,
	}

	s.alerter.AlertEscalation(ctx, breach.LimitName, breach.PortfolioID, string(esc.ToRole), breach.UtilizationPct)

	event, err := events.NewEvent(events.TypeEscalationDispatched, breach.PortfolioID, s.tenantID, esc)
	if err == nil {
		if err := s.publisher.Publish(ctx, event); err != nil {
			log.Error().Err(err).Str("breach_id", breach.ID).Msg("Failed to publish escalation event")
		}
	}
	return esc
}

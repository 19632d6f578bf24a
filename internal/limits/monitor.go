package limits

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default utilization thresholds; limits may override them individually.
const (
	defaultWarningThresholdPct    = 80.0
	defaultBreachThresholdPct     = 100.0
	defaultEscalationThresholdPct = 120.0
)

// severityFor grades a breach by utilization percentage.
func severityFor(utilizationPct float64) BreachSeverity {
	switch {
	case utilizationPct >= 150:
		return SeverityCritical
	case utilizationPct >= 120:
		return SeverityHigh
	case utilizationPct >= 100:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// roleFor routes a breach to the rung of the ladder matching its severity.
func roleFor(severity BreachSeverity) Role {
	switch severity {
	case SeverityCritical:
		return RoleChiefRiskOfficer
	case SeverityHigh:
		return RoleHeadOfRisk
	case SeverityMedium:
		return RoleRiskManager
	default:
		return RoleRiskAnalyst
	}
}

// nextRole returns the rung above; the top of the ladder escalates to itself.
func nextRole(role Role) Role {
	switch role {
	case RoleRiskAnalyst:
		return RoleRiskManager
	case RoleRiskManager:
		return RoleHeadOfRisk
	default:
		return RoleChiefRiskOfficer
	}
}

// responseSLA is how long the assigned role has to respond.
func responseSLA(severity BreachSeverity) time.Duration {
	switch severity {
	case SeverityCritical:
		return time.Hour
	case SeverityHigh:
		return 4 * time.Hour
	case SeverityMedium:
		return 12 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// evaluate computes the utilization state of one limit against the current
// measured value. Utilization is always recomputed from scratch, never
// carried over from a previous cycle.
func evaluate(limit RiskLimit, currentValue float64, now time.Time) Utilization {
	pct := 100 * currentValue / limit.LimitValue
	u := Utilization{
		LimitID:        limit.ID,
		LimitName:      limit.Name,
		PortfolioID:    limit.PortfolioID,
		Type:           limit.Type,
		CurrentValue:   currentValue,
		LimitValue:     limit.LimitValue,
		UtilizationPct: pct,
		IsWarning:      pct >= limit.WarningThreshold(),
		IsBreached:     pct >= limit.BreachThreshold(),
		MeasuredAt:     now,
	}
	if limit.SoftLimitValue > 0 && currentValue >= limit.SoftLimitValue && !u.IsBreached {
		u.IsSoftBreach = true
	}
	return u
}

// Monitor tracks breach lifecycles across monitoring cycles. Safe for
// concurrent use.
type Monitor struct {
	mu       sync.Mutex
	breaches map[string]*Breach // by breach ID
	active   map[string]string  // limit ID -> unresolved breach ID
}

// NewMonitor creates an empty breach registry.
func NewMonitor() *Monitor {
	return &Monitor{
		breaches: make(map[string]*Breach),
		active:   make(map[string]string),
	}
}

// recordBreach opens a breach for the limit, or refreshes the unresolved one
// so a persisting violation does not spawn a duplicate per cycle. The second
// return reports whether the breach is newly opened.
func (m *Monitor) recordBreach(limit RiskLimit, u Utilization, now time.Time) (*Breach, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	severity := severityFor(u.UtilizationPct)

	if id, ok := m.active[limit.ID]; ok {
		breach := m.breaches[id]
		breach.UtilizationPct = u.UtilizationPct
		breach.CurrentValue = u.CurrentValue
		if severity != breach.Severity {
			breach.Severity = severity
			breach.AssignedRole = roleFor(severity)
			breach.RespondBy = breach.DetectedAt.Add(responseSLA(severity))
		}
		return breach, false
	}

	breach := &Breach{
		ID:             uuid.NewString(),
		LimitID:        limit.ID,
		LimitName:      limit.Name,
		PortfolioID:    limit.PortfolioID,
		Severity:       severity,
		UtilizationPct: u.UtilizationPct,
		CurrentValue:   u.CurrentValue,
		LimitValue:     u.LimitValue,
		Status:         StatusOpen,
		AssignedRole:   roleFor(severity),
		DetectedAt:     now,
		RespondBy:      now.Add(responseSLA(severity)),
	}
	m.breaches[breach.ID] = breach
	m.active[limit.ID] = breach.ID
	return breach, true
}

// Get returns a breach by ID.
func (m *Monitor) Get(breachID string) (*Breach, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	breach, ok := m.breaches[breachID]
	if !ok {
		return nil, fmt.Errorf("breach %s not found", breachID)
	}
	return breach, nil
}

// Acknowledge moves an open breach to ACKNOWLEDGED.
func (m *Monitor) Acknowledge(breachID, by string) (*Breach, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	breach, ok := m.breaches[breachID]
	if !ok {
		return nil, fmt.Errorf("breach %s not found", breachID)
	}
	if breach.Status != StatusOpen {
		return nil, fmt.Errorf("breach %s is %s, only OPEN breaches can be acknowledged", breachID, breach.Status)
	}

	now := time.Now().UTC()
	breach.Status = StatusAcknowledged
	breach.AcknowledgedAt = &now
	breach.AcknowledgedBy = by
	return breach, nil
}

// Resolve closes an acknowledged breach.
func (m *Monitor) Resolve(breachID, by, resolution string) (*Breach, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	breach, ok := m.breaches[breachID]
	if !ok {
		return nil, fmt.Errorf("breach %s not found", breachID)
	}
	if breach.Status != StatusAcknowledged {
		return nil, fmt.Errorf("breach %s is %s, only ACKNOWLEDGED breaches can be resolved", breachID, breach.Status)
	}

	now := time.Now().UTC()
	breach.Status = StatusResolved
	breach.ResolvedAt = &now
	breach.ResolvedBy = by
	breach.Resolution = resolution
	delete(m.active, breach.LimitID)
	return breach, nil
}

// OpenBreaches returns every breach not yet resolved.
func (m *Monitor) OpenBreaches() []*Breach {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Breach, 0, len(m.active))
	for _, id := range m.active {
		out = append(out, m.breaches[id])
	}
	return out
}

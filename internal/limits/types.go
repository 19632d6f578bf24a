// Package limits implements risk limit monitoring: limit definitions loaded
// from YAML, per-cycle utilization, breach detection with severity grading,
// role-based escalation with response SLAs, and the breach lifecycle.
package limits

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LimitType classifies what quantity a limit constrains.
type LimitType string

const (
	LimitTypeVaR            LimitType = "VAR"
	LimitTypeConcentration  LimitType = "CONCENTRATION"
	LimitTypeCreditExposure LimitType = "CREDIT_EXPOSURE"
	LimitTypeLiquidityPct   LimitType = "LIQUIDITY_PCT"
	LimitTypeLeverage       LimitType = "LEVERAGE"
)

// RiskLimit is one configured limit. SoftLimitValue, when set, marks an
// early-warning level below the hard limit. The three threshold percentages
// are optional per-limit overrides of the 80/100/120 defaults. A limit with
// an effective window is only monitored between EffectiveDate and ExpiryDate
// inclusive; zero dates leave that side of the window open.
type RiskLimit struct {
	ID                string    `yaml:"id" json:"id"`
	Name              string    `yaml:"name" json:"name"`
	PortfolioID       string    `yaml:"portfolio_id" json:"portfolio_id"`
	Type              LimitType `yaml:"type" json:"type"`
	MeasurementMethod string    `yaml:"measurement_method,omitempty" json:"measurement_method,omitempty"`
	LimitValue        float64   `yaml:"limit_value" json:"limit_value"`
	SoftLimitValue    float64   `yaml:"soft_limit_value,omitempty" json:"soft_limit_value,omitempty"`

	WarningThresholdPct    float64 `yaml:"warning_threshold_pct,omitempty" json:"warning_threshold_pct,omitempty"`
	BreachThresholdPct     float64 `yaml:"breach_threshold_pct,omitempty" json:"breach_threshold_pct,omitempty"`
	EscalationThresholdPct float64 `yaml:"escalation_threshold_pct,omitempty" json:"escalation_threshold_pct,omitempty"`

	EffectiveDate time.Time `yaml:"effective_date,omitempty" json:"effective_date,omitempty"`
	ExpiryDate    time.Time `yaml:"expiry_date,omitempty" json:"expiry_date,omitempty"`

	Enabled bool `yaml:"enabled" json:"enabled"`
}

// WarningThreshold is the utilization percentage at which the limit warns.
func (l *RiskLimit) WarningThreshold() float64 {
	if l.WarningThresholdPct > 0 {
		return l.WarningThresholdPct
	}
	return defaultWarningThresholdPct
}

// BreachThreshold is the utilization percentage at which the limit breaches.
func (l *RiskLimit) BreachThreshold() float64 {
	if l.BreachThresholdPct > 0 {
		return l.BreachThresholdPct
	}
	return defaultBreachThresholdPct
}

// EscalationThreshold is the utilization percentage at which an open breach
// escalates.
func (l *RiskLimit) EscalationThreshold() float64 {
	if l.EscalationThresholdPct > 0 {
		return l.EscalationThresholdPct
	}
	return defaultEscalationThresholdPct
}

// ActiveAt reports whether the limit's effective window covers now.
func (l *RiskLimit) ActiveAt(now time.Time) bool {
	if !l.EffectiveDate.IsZero() && now.Before(l.EffectiveDate) {
		return false
	}
	if !l.ExpiryDate.IsZero() && now.After(l.ExpiryDate) {
		return false
	}
	return true
}

// Validate checks one limit definition.
func (l *RiskLimit) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("limit ID is required")
	}
	if l.PortfolioID == "" {
		return fmt.Errorf("limit %s: portfolio ID is required", l.ID)
	}
	switch l.Type {
	case LimitTypeVaR, LimitTypeConcentration, LimitTypeCreditExposure, LimitTypeLiquidityPct, LimitTypeLeverage:
	default:
		return fmt.Errorf("limit %s: unknown limit type %q", l.ID, l.Type)
	}
	if l.LimitValue <= 0 {
		return fmt.Errorf("limit %s: limit value must be positive, got %g", l.ID, l.LimitValue)
	}
	if l.SoftLimitValue != 0 && (l.SoftLimitValue < 0 || l.SoftLimitValue >= l.LimitValue) {
		return fmt.Errorf("limit %s: soft limit must be in (0, limit value), got %g", l.ID, l.SoftLimitValue)
	}
	if l.WarningThresholdPct < 0 || l.BreachThresholdPct < 0 || l.EscalationThresholdPct < 0 {
		return fmt.Errorf("limit %s: threshold percentages must be non-negative", l.ID)
	}
	if l.WarningThreshold() >= l.BreachThreshold() || l.BreachThreshold() > l.EscalationThreshold() {
		return fmt.Errorf("limit %s: thresholds must satisfy warning < breach <= escalation, got %g/%g/%g",
			l.ID, l.WarningThreshold(), l.BreachThreshold(), l.EscalationThreshold())
	}
	if !l.EffectiveDate.IsZero() && !l.ExpiryDate.IsZero() && l.ExpiryDate.Before(l.EffectiveDate) {
		return fmt.Errorf("limit %s: expiry date precedes effective date", l.ID)
	}
	return nil
}

type limitsFile struct {
	Limits []RiskLimit `yaml:"limits"`
}

// LoadLimits reads limit definitions from a YAML file and validates every
// entry. Duplicate IDs are rejected.
func LoadLimits(path string) ([]RiskLimit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read limits file: %w", err)
	}

	var file limitsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse limits file: %w", err)
	}
	if len(file.Limits) == 0 {
		return nil, fmt.Errorf("limits file %s defines no limits", path)
	}

	seen := make(map[string]bool, len(file.Limits))
	for i := range file.Limits {
		if err := file.Limits[i].Validate(); err != nil {
			return nil, err
		}
		if seen[file.Limits[i].ID] {
			return nil, fmt.Errorf("duplicate limit ID %s", file.Limits[i].ID)
		}
		seen[file.Limits[i].ID] = true
	}
	return file.Limits, nil
}

// BreachSeverity grades how badly a limit is exceeded.
type BreachSeverity string

const (
	SeverityLow      BreachSeverity = "LOW"
	SeverityMedium   BreachSeverity = "MEDIUM"
	SeverityHigh     BreachSeverity = "HIGH"
	SeverityCritical BreachSeverity = "CRITICAL"
)

// Role is a rung on the escalation ladder, most junior first.
type Role string

const (
	RoleRiskAnalyst      Role = "Risk Analyst"
	RoleRiskManager      Role = "Risk Manager"
	RoleHeadOfRisk       Role = "Head of Risk"
	RoleChiefRiskOfficer Role = "Chief Risk Officer"
)

// BreachStatus is the lifecycle state of a breach record.
type BreachStatus string

const (
	StatusOpen         BreachStatus = "OPEN"
	StatusAcknowledged BreachStatus = "ACKNOWLEDGED"
	StatusResolved     BreachStatus = "RESOLVED"
)

// Utilization is the per-cycle state of one limit.
type Utilization struct {
	LimitID        string    `json:"limit_id"`
	LimitName      string    `json:"limit_name"`
	PortfolioID    string    `json:"portfolio_id"`
	Type           LimitType `json:"type"`
	CurrentValue   float64   `json:"current_value"`
	LimitValue     float64   `json:"limit_value"`
	UtilizationPct float64   `json:"utilization_pct"`
	IsWarning      bool      `json:"is_warning"` // at or above the warning threshold
	IsBreached     bool      `json:"is_breached"`
	IsSoftBreach   bool      `json:"is_soft_breach"` // above soft limit, below hard
	MeasuredAt     time.Time `json:"measured_at"`
}

// Breach is a lifecycle-tracked limit violation.
type Breach struct {
	ID             string         `json:"id"`
	LimitID        string         `json:"limit_id"`
	LimitName      string         `json:"limit_name"`
	PortfolioID    string         `json:"portfolio_id"`
	Severity       BreachSeverity `json:"severity"`
	UtilizationPct float64        `json:"utilization_pct"`
	CurrentValue   float64        `json:"current_value"`
	LimitValue     float64        `json:"limit_value"`
	Status         BreachStatus   `json:"status"`
	AssignedRole   Role           `json:"assigned_role"`
	DetectedAt     time.Time      `json:"detected_at"`
	RespondBy      time.Time      `json:"respond_by"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string         `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy     string         `json:"resolved_by,omitempty"`
	Resolution     string         `json:"resolution,omitempty"`
}

// Escalation records a breach pushed one rung up the ladder.
type Escalation struct {
	ID             string    `json:"id"`
	BreachID       string    `json:"breach_id"`
	LimitID        string    `json:"limit_id"`
	FromRole       Role      `json:"from_role"`
	ToRole         Role      `json:"to_role"`
	UtilizationPct float64   `json:"utilization_pct"`
	EscalatedAt    time.Time `json:"escalated_at"`
}

// CycleResult is the outcome of one monitoring cycle.
type CycleResult struct {
	RunID       string    `json:"run_id"`
	PortfolioID string    `json:"portfolio_id"`
	RunAt       time.Time `json:"run_at"`

	Utilizations []Utilization `json:"utilizations"`
	Breaches     []*Breach     `json:"breaches"`
	Escalations  []Escalation  `json:"escalations"`
}

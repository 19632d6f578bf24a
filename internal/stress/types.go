// Package stress implements scenario-based stress testing: factor shock
// definitions, position-level sensitivity repricing, stressed risk metrics
// with crisis correlation scaling, and cross-scenario factor attribution.
package stress

import (
	"fmt"
	"time"
)

// RiskFactor identifies one dimension of a scenario shock.
type RiskFactor string

const (
	FactorEquity       RiskFactor = "EQUITY"        // shock in fractional return, -0.40 = -40%
	FactorInterestRate RiskFactor = "INTEREST_RATE" // shock in basis points
	FactorCreditSpread RiskFactor = "CREDIT_SPREAD" // shock in basis points
	FactorCurrency     RiskFactor = "CURRENCY"      // shock in fractional return vs base
	FactorCommodity    RiskFactor = "COMMODITY"     // shock in fractional return
	FactorVolatility   RiskFactor = "VOLATILITY"    // shock in annualized vol points, 0.10 = +10 pts
)

// Scenario is a named set of simultaneous factor shocks. Severity in [0, 1]
// drives how far correlations are pulled toward 1 when metrics are recomputed
// under the scenario.
type Scenario struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Shocks      map[RiskFactor]float64 `json:"shocks"`
	Severity    float64                `json:"severity"`
	Historical  bool                   `json:"historical"`
}

// Validate checks a scenario definition, including user-supplied ones.
func (s *Scenario) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("scenario ID is required")
	}
	if len(s.Shocks) == 0 {
		return fmt.Errorf("scenario %s defines no shocks", s.ID)
	}
	if s.Severity < 0 || s.Severity > 1 {
		return fmt.Errorf("scenario %s: severity must be in [0,1], got %g", s.ID, s.Severity)
	}
	for factor := range s.Shocks {
		switch factor {
		case FactorEquity, FactorInterestRate, FactorCreditSpread,
			FactorCurrency, FactorCommodity, FactorVolatility:
		default:
			return fmt.Errorf("scenario %s: unknown risk factor %q", s.ID, factor)
		}
	}
	return nil
}

// Request parameterizes one stress test run. An empty ScenarioIDs list runs
// the full built-in library; CustomScenarios are always appended.
type Request struct {
	PortfolioID     string     `json:"portfolio_id"`
	AsOf            time.Time  `json:"as_of"`
	ScenarioIDs     []string   `json:"scenario_ids,omitempty"`
	CustomScenarios []Scenario `json:"custom_scenarios,omitempty"`
}

// Validate checks the request before any data is fetched.
func (r *Request) Validate() error {
	if r.PortfolioID == "" {
		return fmt.Errorf("portfolio ID is required")
	}
	for i := range r.CustomScenarios {
		if err := r.CustomScenarios[i].Validate(); err != nil {
			return fmt.Errorf("custom scenario %d: %w", i, err)
		}
	}
	return nil
}

// Sensitivities captures how one position responds to factor shocks.
type Sensitivities struct {
	Beta       float64 `json:"beta"`        // equity and commodity shock multiplier
	Duration   float64 `json:"duration"`    // rate and spread sensitivity, years
	FXExposure float64 `json:"fx_exposure"` // 1 when the position carries currency risk
	Vega       float64 `json:"vega"`        // fractional value change per vol point
}

// PositionImpact is the repriced state of one position under a scenario.
type PositionImpact struct {
	PositionID    string  `json:"position_id"`
	Symbol        string  `json:"symbol"`
	BaseValue     float64 `json:"base_value"`
	StressedValue float64 `json:"stressed_value"`
	PnL           float64 `json:"pnl"`
	PnLPct        float64 `json:"pnl_pct"`
}

// ScenarioResult is the portfolio outcome under one scenario.
type ScenarioResult struct {
	ScenarioID   string `json:"scenario_id"`
	ScenarioName string `json:"scenario_name"`

	BaseValue     float64 `json:"base_value"`
	StressedValue float64 `json:"stressed_value"`
	PortfolioPnL  float64 `json:"portfolio_pnl"`
	PnLPct        float64 `json:"pnl_pct"`

	// Risk metrics recomputed under the scenario: shocked vols, correlations
	// pulled toward 1 by scenario severity.
	StressedVolatility float64 `json:"stressed_volatility"`
	StressedVaR95      float64 `json:"stressed_var_95"`

	// FactorAttribution decomposes the portfolio P&L by risk factor.
	FactorAttribution map[RiskFactor]float64 `json:"factor_attribution"`

	PositionImpacts []PositionImpact `json:"position_impacts"`
}

// FactorContribution ranks a factor by its share of loss variance across all
// scenarios run.
type FactorContribution struct {
	Factor       RiskFactor `json:"factor"`
	LossVariance float64    `json:"loss_variance"`
	Share        float64    `json:"share"`
}

// Result is the full output of one stress test run.
type Result struct {
	RunID       string    `json:"run_id"`
	PortfolioID string    `json:"portfolio_id"`
	RunAt       time.Time `json:"run_at"`

	Scenarios []ScenarioResult `json:"scenarios"`

	WorstScenarioID string `json:"worst_scenario_id"`
	BestScenarioID  string `json:"best_scenario_id"`

	FactorRanking []FactorContribution `json:"factor_ranking"`
}

// Package montecarlo implements the correlated path-simulation engine: a
// geometric Brownian motion model with optional jump diffusion, driven by
// Cholesky-correlated shocks, producing a full return distribution with tail
// metrics and convergence diagnostics.
package montecarlo

import (
	"fmt"
	"time"
)

// TimeHorizon is a simulation horizon expressed in calendar shorthand.
type TimeHorizon string

// Supported horizons and their trading-day step counts.
const (
	Horizon1D TimeHorizon = "1D"
	Horizon1W TimeHorizon = "1W"
	Horizon1M TimeHorizon = "1M"
	Horizon3M TimeHorizon = "3M"
	Horizon6M TimeHorizon = "6M"
	Horizon1Y TimeHorizon = "1Y"
)

var horizonSteps = map[TimeHorizon]int{
	Horizon1D: 1,
	Horizon1W: 5,
	Horizon1M: 21,
	Horizon3M: 63,
	Horizon6M: 126,
	Horizon1Y: 252,
}

// Steps returns the trading-day step count for the horizon.
func (h TimeHorizon) Steps() (int, error) {
	steps, ok := horizonSteps[h]
	if !ok {
		return 0, fmt.Errorf("unknown time horizon %q", h)
	}
	return steps, nil
}

// VolatilityModel selects how per-step volatility evolves along a path.
type VolatilityModel string

const (
	// VolatilityModelConstant holds each asset's volatility fixed.
	VolatilityModelConstant VolatilityModel = "CONSTANT"
	// VolatilityModelEWMA updates each asset's variance with a RiskMetrics
	// exponentially weighted average of realized step returns.
	VolatilityModelEWMA VolatilityModel = "EWMA"
)

// SimulationRequest parameterizes one engine run.
type SimulationRequest struct {
	PortfolioID         string          `json:"portfolio_id"`
	AsOf                time.Time       `json:"as_of"`
	NumberOfSimulations int             `json:"number_of_simulations"`
	TimeHorizon         TimeHorizon     `json:"time_horizon"`
	ConfidenceLevel     float64         `json:"confidence_level"`
	IncludeJumpRisk     bool            `json:"include_jump_risk"`
	VolatilityModel     VolatilityModel `json:"volatility_model"`
	// RandomSeed, when non-zero, makes the run reproducible: each worker
	// derives an independent stream from it.
	RandomSeed int64 `json:"random_seed,omitempty"`
}

// Validate checks the request before any data is fetched.
func (r *SimulationRequest) Validate() error {
	if r.PortfolioID == "" {
		return fmt.Errorf("portfolio ID is required")
	}
	if r.NumberOfSimulations < 100 {
		return fmt.Errorf("number of simulations must be at least 100, got %d", r.NumberOfSimulations)
	}
	if _, err := r.TimeHorizon.Steps(); err != nil {
		return err
	}
	if r.ConfidenceLevel <= 0 || r.ConfidenceLevel >= 1 {
		return fmt.Errorf("confidence level must be in (0, 1), got %g", r.ConfidenceLevel)
	}
	switch r.VolatilityModel {
	case "", VolatilityModelConstant, VolatilityModelEWMA:
	default:
		return fmt.Errorf("unknown volatility model %q", r.VolatilityModel)
	}
	return nil
}

// PercentileEntry is one rung of the percentile ladder.
type PercentileEntry struct {
	Percentile float64 `json:"percentile"`
	Value      float64 `json:"value"`
}

// ConvergenceDiagnostics reports the batch-means convergence test: trial-order
// results are split into 10 batches and the standard error of the batch-mean
// estimator is compared against 1% of the overall mean.
type ConvergenceDiagnostics struct {
	BatchCount       int     `json:"batch_count"`
	StandardError    float64 `json:"standard_error"`
	HasConverged     bool    `json:"has_converged"`
	ConfidenceLow95  float64 `json:"confidence_low_95"`
	ConfidenceHigh95 float64 `json:"confidence_high_95"`
}

// SimulationResult is the immutable output of one run.
type SimulationResult struct {
	RunID       string      `json:"run_id"`
	PortfolioID string      `json:"portfolio_id"`
	RunAt       time.Time   `json:"run_at"`
	Trials      int         `json:"trials"`
	TimeHorizon TimeHorizon `json:"time_horizon"`
	TimeSteps   int         `json:"time_steps"`

	// Distribution statistics (population formulas, kurtosis as excess).
	ExpectedReturn    float64 `json:"expected_return"`
	StandardDeviation float64 `json:"standard_deviation"`
	Skewness          float64 `json:"skewness"`
	ExcessKurtosis    float64 `json:"excess_kurtosis"`

	// Tail metrics. VaR values are magnitudes of the empirical loss quantile.
	VaR95             float64 `json:"var_95"`
	VaR99             float64 `json:"var_99"`
	CVaR95            float64 `json:"cvar_95"`
	CVaR99            float64 `json:"cvar_99"`
	ExpectedShortfall float64 `json:"expected_shortfall"` // at the requested confidence
	VaRAtConfidence   float64 `json:"var_at_confidence"`

	// Normal-approximation cross-check from the simulated moments.
	ParametricVaR95 float64 `json:"parametric_var_95"`
	ParametricVaR99 float64 `json:"parametric_var_99"`

	Percentiles []PercentileEntry `json:"percentiles"`

	// Path statistics. MaxDrawdown is the magnitude of the worst terminal
	// return, a single-period proxy rather than an intra-path running
	// drawdown.
	MaxDrawdown        float64 `json:"max_drawdown"`
	TimeToRecoveryDays int     `json:"time_to_recovery_days"`
	ProbabilityOfLoss  float64 `json:"probability_of_loss"`

	Convergence ConvergenceDiagnostics `json:"convergence"`
}

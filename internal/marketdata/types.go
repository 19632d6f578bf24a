// Package marketdata defines the portfolio data collaborator consumed by the
// risk analytics services: position snapshots, market parameters, historical
// return series and liquidity profiles. Implementations are database-backed
// with optional Redis caching and circuit-breaker protection.
package marketdata

import (
	"errors"
	"fmt"

	"github.com/finbrook/riskengine/internal/linalg"
)

// Sentinel errors returned by providers.
var (
	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrEmptyPortfolio    = errors.New("portfolio has no positions")
)

// AssetClass buckets used for class-based liquidity defaults and breakdowns.
type AssetClass string

const (
	AssetClassEquity      AssetClass = "EQUITY"
	AssetClassFixedIncome AssetClass = "FIXED_INCOME"
	AssetClassAlternative AssetClass = "ALTERNATIVE"
	AssetClassCash        AssetClass = "CASH"
)

// Position is an immutable snapshot of a single holding as of a given date.
type Position struct {
	PositionID   string     `json:"position_id"`
	SecurityID   string     `json:"security_id"`
	Symbol       string     `json:"symbol"`
	MarketValue  float64    `json:"market_value"`
	AssetClass   AssetClass `json:"asset_class"`
	Sector       string     `json:"sector"`
	Geography    string     `json:"geography"`
	Currency     string     `json:"currency"`
	CurrentPrice float64    `json:"current_price"`
}

// TotalMarketValue sums position market values.
func TotalMarketValue(positions []Position) float64 {
	var total float64
	for _, p := range positions {
		total += p.MarketValue
	}
	return total
}

// Weights returns market-value weights aligned with the position list.
// Returns an error when the portfolio has zero total value.
func Weights(positions []Position) ([]float64, error) {
	total := TotalMarketValue(positions)
	if total <= 0 {
		return nil, fmt.Errorf("portfolio total market value must be positive, got %g", total)
	}
	weights := make([]float64, len(positions))
	for i, p := range positions {
		weights[i] = p.MarketValue / total
	}
	return weights, nil
}

// MarketParameters carries per-position model inputs, index-aligned with the
// position list they were fetched for.
type MarketParameters struct {
	ExpectedReturns []float64      `json:"expected_returns"` // annualized drift per position
	Volatilities    []float64      `json:"volatilities"`     // annualized vol per position
	Correlations    *linalg.Matrix `json:"-"`
	CorrelationData [][]float64    `json:"correlation_matrix"`
	JumpIntensity   float64        `json:"jump_intensity"` // expected jumps per year
}

// NewMarketParameters validates alignment and correlation-matrix structure up
// front: square, symmetric, unit diagonal and positive definite (checked by a
// Cholesky probe) so simulations never see a silently broken matrix.
func NewMarketParameters(expectedReturns, volatilities []float64, correlations [][]float64, jumpIntensity float64) (*MarketParameters, error) {
	n := len(expectedReturns)
	if n == 0 {
		return nil, fmt.Errorf("expected returns vector is empty")
	}
	if len(volatilities) != n {
		return nil, fmt.Errorf("volatilities length %d does not match expected returns length %d", len(volatilities), n)
	}
	if len(correlations) != n {
		return nil, fmt.Errorf("correlation matrix has %d rows, expected %d", len(correlations), n)
	}

	matrix, err := linalg.NewMatrix(correlations)
	if err != nil {
		return nil, fmt.Errorf("invalid correlation matrix: %w", err)
	}
	if matrix.Cols() != n {
		return nil, fmt.Errorf("correlation matrix is %dx%d, expected %dx%d", matrix.Rows(), matrix.Cols(), n, n)
	}
	if !matrix.IsSymmetric(1e-9) {
		return nil, fmt.Errorf("correlation matrix is not symmetric")
	}
	for i := 0; i < n; i++ {
		if diff := matrix.At(i, i) - 1.0; diff > 1e-9 || diff < -1e-9 {
			return nil, fmt.Errorf("correlation matrix diagonal must be 1.0, got %g at index %d", matrix.At(i, i), i)
		}
	}
	if _, err := matrix.Cholesky(); err != nil {
		return nil, fmt.Errorf("correlation matrix rejected: %w", err)
	}
	if jumpIntensity < 0 {
		return nil, fmt.Errorf("jump intensity must be non-negative, got %g", jumpIntensity)
	}

	return &MarketParameters{
		ExpectedReturns: expectedReturns,
		Volatilities:    volatilities,
		Correlations:    matrix,
		CorrelationData: correlations,
		JumpIntensity:   jumpIntensity,
	}, nil
}

// Rehydrate rebuilds the matrix view after JSON round-trips (cache reads).
func (p *MarketParameters) Rehydrate() error {
	if p.Correlations != nil {
		return nil
	}
	matrix, err := linalg.NewMatrix(p.CorrelationData)
	if err != nil {
		return fmt.Errorf("rehydrating correlation matrix: %w", err)
	}
	p.Correlations = matrix
	return nil
}

// LiquidityProfile describes trading conditions for one position. Volume is
// in currency units per day; spread is a fraction of price.
type LiquidityProfile struct {
	AvgDailyVolume float64 `json:"avg_daily_volume"`
	BidAskSpread   float64 `json:"bid_ask_spread"`
	MarketCap      float64 `json:"market_cap"`
}

package marketdata

import (
	"context"
	"fmt"
	"time"
)

// StaticProvider is an in-memory Provider for tests and local runs. All data
// is fixed at construction.
type StaticProvider struct {
	PortfolioID string
	Positions   []Position
	Parameters  *MarketParameters
	Series      [][]float64
	Profiles    []LiquidityProfile
}

// GetPortfolio returns the fixed position list when the ID matches.
func (s *StaticProvider) GetPortfolio(_ context.Context, portfolioID string, _ time.Time) ([]Position, error) {
	if portfolioID != s.PortfolioID {
		return nil, fmt.Errorf("%w: %s", ErrPortfolioNotFound, portfolioID)
	}
	if len(s.Positions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPortfolio, portfolioID)
	}
	return s.Positions, nil
}

// GetMarketParameters returns the fixed parameters.
func (s *StaticProvider) GetMarketParameters(_ context.Context, positions []Position) (*MarketParameters, error) {
	if s.Parameters == nil {
		return nil, fmt.Errorf("no market parameters configured")
	}
	if len(s.Parameters.ExpectedReturns) != len(positions) {
		return nil, fmt.Errorf("parameters configured for %d positions, requested %d",
			len(s.Parameters.ExpectedReturns), len(positions))
	}
	return s.Parameters, nil
}

// GetReturnSeries returns the fixed series.
func (s *StaticProvider) GetReturnSeries(_ context.Context, positions []Position, _ int) ([][]float64, error) {
	if len(s.Series) != len(positions) {
		return nil, fmt.Errorf("series configured for %d positions, requested %d", len(s.Series), len(positions))
	}
	return s.Series, nil
}

// GetLiquidityProfiles returns the fixed profiles, or zero-valued entries
// when none are configured.
func (s *StaticProvider) GetLiquidityProfiles(_ context.Context, positions []Position) ([]LiquidityProfile, error) {
	if len(s.Profiles) == 0 {
		return make([]LiquidityProfile, len(positions)), nil
	}
	if len(s.Profiles) != len(positions) {
		return nil, fmt.Errorf("profiles configured for %d positions, requested %d", len(s.Profiles), len(positions))
	}
	return s.Profiles, nil
}

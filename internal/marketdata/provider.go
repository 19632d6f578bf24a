package marketdata

import (
	"context"
	"time"
)

// Provider supplies portfolio and market data to the risk services. All
// vectors and matrices returned are index-aligned with the position list
// passed in. Implementations must be safe for concurrent use.
type Provider interface {
	// GetPortfolio returns the position snapshot for a portfolio as of a date.
	// Returns ErrPortfolioNotFound when the portfolio does not exist and
	// ErrEmptyPortfolio when it exists but holds nothing.
	GetPortfolio(ctx context.Context, portfolioID string, asOf time.Time) ([]Position, error)

	// GetMarketParameters returns validated simulation inputs for the
	// positions: expected returns, volatilities, correlation matrix and jump
	// intensity.
	GetMarketParameters(ctx context.Context, positions []Position) (*MarketParameters, error)

	// GetReturnSeries returns one historical daily return series per position
	// over the lookback window, index-aligned and equal length.
	GetReturnSeries(ctx context.Context, positions []Position, lookbackDays int) ([][]float64, error)

	// GetLiquidityProfiles returns per-position trading profiles. Entries may
	// be zero-valued when no market data exists; callers apply class-based
	// defaults.
	GetLiquidityProfiles(ctx context.Context, positions []Position) ([]LiquidityProfile, error)
}

package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Default jump intensity (expected jumps per year) applied when no market
// regime row exists.
const defaultJumpIntensity = 2.0

// PoolInterface defines the interface for database pool operations
type PoolInterface interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PostgresProvider loads portfolio and market data from Postgres.
type PostgresProvider struct {
	pool PoolInterface
}

// NewPostgresProvider creates a provider backed by the given pool.
func NewPostgresProvider(pool PoolInterface) *PostgresProvider {
	return &PostgresProvider{pool: pool}
}

// NewPostgresProviderWithPool creates a provider from a concrete pgxpool.Pool.
func NewPostgresProviderWithPool(pool *pgxpool.Pool) *PostgresProvider {
	return &PostgresProvider{pool: pool}
}

// GetPortfolio returns the position snapshot for portfolioID as of a date.
func (p *PostgresProvider) GetPortfolio(ctx context.Context, portfolioID string, asOf time.Time) ([]Position, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("no database pool available")
	}

	query := `
		SELECT position_id, security_id, symbol, market_value, asset_class,
			sector, geography, currency, current_price
		FROM positions
		WHERE portfolio_id = $1
			AND as_of_date = $2::date
		ORDER BY position_id ASC
	`

	rows, err := p.pool.Query(ctx, query, portfolioID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var pos Position
		var assetClass string
		if err := rows.Scan(&pos.PositionID, &pos.SecurityID, &pos.Symbol, &pos.MarketValue,
			&assetClass, &pos.Sector, &pos.Geography, &pos.Currency, &pos.CurrentPrice); err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		pos.AssetClass = AssetClass(assetClass)
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}

	if len(positions) == 0 {
		var exists bool
		err := p.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM portfolios WHERE portfolio_id = $1)`,
			portfolioID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check portfolio existence: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrPortfolioNotFound, portfolioID)
		}
		return nil, fmt.Errorf("%w: %s as of %s", ErrEmptyPortfolio, portfolioID, asOf.Format("2006-01-02"))
	}

	log.Debug().
		Str("portfolio_id", portfolioID).
		Int("positions", len(positions)).
		Msg("Portfolio snapshot loaded from database")

	return positions, nil
}

// GetMarketParameters loads expected returns, volatilities and the pairwise
// correlation matrix for the positions. Missing parameter or correlation rows
// are an error rather than a silent default.
func (p *PostgresProvider) GetMarketParameters(ctx context.Context, positions []Position) (*MarketParameters, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("no database pool available")
	}
	if len(positions) == 0 {
		return nil, ErrEmptyPortfolio
	}

	securityIDs := make([]string, len(positions))
	index := make(map[string]int, len(positions))
	for i, pos := range positions {
		securityIDs[i] = pos.SecurityID
		index[pos.SecurityID] = i
	}

	query := `
		SELECT security_id, expected_return, volatility
		FROM security_parameters
		WHERE security_id = ANY($1)
	`
	rows, err := p.pool.Query(ctx, query, securityIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query security parameters: %w", err)
	}
	defer rows.Close()

	n := len(positions)
	expectedReturns := make([]float64, n)
	volatilities := make([]float64, n)
	seen := make(map[string]bool, n)

	for rows.Next() {
		var securityID string
		var expectedReturn, volatility float64
		if err := rows.Scan(&securityID, &expectedReturn, &volatility); err != nil {
			return nil, fmt.Errorf("failed to scan parameter row: %w", err)
		}
		i, ok := index[securityID]
		if !ok {
			continue
		}
		expectedReturns[i] = expectedReturn
		volatilities[i] = volatility
		seen[securityID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parameter rows: %w", err)
	}
	for _, id := range securityIDs {
		if !seen[id] {
			return nil, fmt.Errorf("no market parameters found for security %s", id)
		}
	}

	correlations, err := p.loadCorrelations(ctx, securityIDs, index)
	if err != nil {
		return nil, err
	}

	jumpIntensity, err := p.loadJumpIntensity(ctx)
	if err != nil {
		return nil, err
	}

	params, err := NewMarketParameters(expectedReturns, volatilities, correlations, jumpIntensity)
	if err != nil {
		return nil, fmt.Errorf("market parameters for %d positions rejected: %w", n, err)
	}

	log.Debug().
		Int("positions", n).
		Float64("jump_intensity", jumpIntensity).
		Msg("Market parameters loaded from database")

	return params, nil
}

// loadCorrelations builds the full symmetric matrix from pairwise rows stored
// once per unordered pair.
func (p *PostgresProvider) loadCorrelations(ctx context.Context, securityIDs []string, index map[string]int) ([][]float64, error) {
	n := len(securityIDs)
	matrix := make([][]float64, n)
	filled := make([][]bool, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		filled[i] = make([]bool, n)
		matrix[i][i] = 1.0
		filled[i][i] = true
	}

	query := `
		SELECT security_id_a, security_id_b, correlation
		FROM security_correlations
		WHERE security_id_a = ANY($1)
			AND security_id_b = ANY($1)
	`
	rows, err := p.pool.Query(ctx, query, securityIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query correlations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a, b string
		var rho float64
		if err := rows.Scan(&a, &b, &rho); err != nil {
			return nil, fmt.Errorf("failed to scan correlation row: %w", err)
		}
		i, okA := index[a]
		j, okB := index[b]
		if !okA || !okB || i == j {
			continue
		}
		matrix[i][j] = rho
		matrix[j][i] = rho
		filled[i][j] = true
		filled[j][i] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating correlation rows: %w", err)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if !filled[i][j] {
				return nil, fmt.Errorf("no correlation found for pair %s/%s", securityIDs[i], securityIDs[j])
			}
		}
	}

	return matrix, nil
}

// loadJumpIntensity reads the latest market regime row. A missing row falls
// back to the documented default with a warning.
func (p *PostgresProvider) loadJumpIntensity(ctx context.Context) (float64, error) {
	var jumpIntensity float64
	err := p.pool.QueryRow(ctx, `
		SELECT jump_intensity
		FROM market_regime
		ORDER BY as_of_date DESC
		LIMIT 1
	`).Scan(&jumpIntensity)
	if err != nil {
		if err == pgx.ErrNoRows {
			log.Warn().
				Float64("default", defaultJumpIntensity).
				Msg("No market regime row found, using default jump intensity")
			return defaultJumpIntensity, nil
		}
		return 0, fmt.Errorf("failed to query jump intensity: %w", err)
	}
	return jumpIntensity, nil
}

// GetReturnSeries loads daily return series for the positions, truncated to a
// common length so the series stay index-aligned and comparable.
func (p *PostgresProvider) GetReturnSeries(ctx context.Context, positions []Position, lookbackDays int) ([][]float64, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("no database pool available")
	}
	if len(positions) == 0 {
		return nil, ErrEmptyPortfolio
	}
	if lookbackDays <= 0 {
		return nil, fmt.Errorf("lookback days must be positive, got %d", lookbackDays)
	}

	securityIDs := make([]string, len(positions))
	index := make(map[string]int, len(positions))
	for i, pos := range positions {
		securityIDs[i] = pos.SecurityID
		index[pos.SecurityID] = i
	}

	query := `
		SELECT security_id, daily_return
		FROM daily_returns
		WHERE security_id = ANY($1)
			AND trade_date >= NOW() - INTERVAL '1 day' * $2
		ORDER BY security_id ASC, trade_date ASC
	`
	rows, err := p.pool.Query(ctx, query, securityIDs, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("failed to query return series: %w", err)
	}
	defer rows.Close()

	series := make([][]float64, len(positions))
	for rows.Next() {
		var securityID string
		var dailyReturn float64
		if err := rows.Scan(&securityID, &dailyReturn); err != nil {
			return nil, fmt.Errorf("failed to scan return row: %w", err)
		}
		if i, ok := index[securityID]; ok {
			series[i] = append(series[i], dailyReturn)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating return rows: %w", err)
	}

	minLen := -1
	for i, s := range series {
		if len(s) < 2 {
			return nil, fmt.Errorf("insufficient return history for security %s: %d observations", securityIDs[i], len(s))
		}
		if minLen < 0 || len(s) < minLen {
			minLen = len(s)
		}
	}
	for i := range series {
		series[i] = series[i][len(series[i])-minLen:]
	}

	log.Debug().
		Int("positions", len(positions)).
		Int("observations", minLen).
		Msg("Return series loaded from database")

	return series, nil
}

// GetLiquidityProfiles loads per-position trading profiles. Securities with
// no profile row get a zero-valued entry; callers apply class defaults.
func (p *PostgresProvider) GetLiquidityProfiles(ctx context.Context, positions []Position) ([]LiquidityProfile, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("no database pool available")
	}
	if len(positions) == 0 {
		return nil, ErrEmptyPortfolio
	}

	securityIDs := make([]string, len(positions))
	index := make(map[string]int, len(positions))
	for i, pos := range positions {
		securityIDs[i] = pos.SecurityID
		index[pos.SecurityID] = i
	}

	query := `
		SELECT security_id, avg_daily_volume, bid_ask_spread, market_cap
		FROM liquidity_profiles
		WHERE security_id = ANY($1)
	`
	rows, err := p.pool.Query(ctx, query, securityIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query liquidity profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]LiquidityProfile, len(positions))
	for rows.Next() {
		var securityID string
		var profile LiquidityProfile
		if err := rows.Scan(&securityID, &profile.AvgDailyVolume, &profile.BidAskSpread, &profile.MarketCap); err != nil {
			return nil, fmt.Errorf("failed to scan liquidity row: %w", err)
		}
		if i, ok := index[securityID]; ok {
			profiles[i] = profile
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating liquidity rows: %w", err)
	}

	return profiles, nil
}

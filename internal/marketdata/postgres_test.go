package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

func TestGetPortfolio(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	provider := NewPostgresProvider(mock)

	rows := pgxmock.NewRows([]string{
		"position_id", "security_id", "symbol", "market_value", "asset_class",
		"sector", "geography", "currency", "current_price",
	}).
		AddRow("POS-1", "SEC-1", "AAPL", 1_000_000.0, "EQUITY", "Technology", "US", "USD", 210.0).
		AddRow("POS-2", "SEC-2", "UST10", 500_000.0, "FIXED_INCOME", "Government", "US", "USD", 98.5)

	mock.ExpectQuery("SELECT position_id, security_id, symbol, market_value, asset_class").
		WithArgs("PORT-1", asOf).
		WillReturnRows(rows)

	positions, err := provider.GetPortfolio(context.Background(), "PORT-1", asOf)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.Equal(t, AssetClassFixedIncome, positions[1].AssetClass)
	assert.Equal(t, 1_000_000.0, positions[0].MarketValue)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPortfolioNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	provider := NewPostgresProvider(mock)

	mock.ExpectQuery("SELECT position_id, security_id, symbol, market_value, asset_class").
		WithArgs("MISSING", asOf).
		WillReturnRows(pgxmock.NewRows([]string{
			"position_id", "security_id", "symbol", "market_value", "asset_class",
			"sector", "geography", "currency", "current_price",
		}))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("MISSING").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	_, err = provider.GetPortfolio(context.Background(), "MISSING", asOf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPortfolioNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPortfolioEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	provider := NewPostgresProvider(mock)

	mock.ExpectQuery("SELECT position_id, security_id, symbol, market_value, asset_class").
		WithArgs("PORT-1", asOf).
		WillReturnRows(pgxmock.NewRows([]string{
			"position_id", "security_id", "symbol", "market_value", "asset_class",
			"sector", "geography", "currency", "current_price",
		}))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("PORT-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	_, err = provider.GetPortfolio(context.Background(), "PORT-1", asOf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyPortfolio)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMarketParameters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	provider := NewPostgresProvider(mock)
	positions := []Position{
		{SecurityID: "SEC-1"},
		{SecurityID: "SEC-2"},
	}

	mock.ExpectQuery("SELECT security_id, expected_return, volatility").
		WithArgs([]string{"SEC-1", "SEC-2"}).
		WillReturnRows(pgxmock.NewRows([]string{"security_id", "expected_return", "volatility"}).
			AddRow("SEC-1", 0.08, 0.20).
			AddRow("SEC-2", 0.04, 0.08))

	mock.ExpectQuery("SELECT security_id_a, security_id_b, correlation").
		WithArgs([]string{"SEC-1", "SEC-2"}).
		WillReturnRows(pgxmock.NewRows([]string{"security_id_a", "security_id_b", "correlation"}).
			AddRow("SEC-1", "SEC-2", 0.35))

	mock.ExpectQuery("SELECT jump_intensity").
		WillReturnRows(pgxmock.NewRows([]string{"jump_intensity"}).AddRow(3.0))

	params, err := provider.GetMarketParameters(context.Background(), positions)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.08, 0.04}, params.ExpectedReturns)
	assert.Equal(t, []float64{0.20, 0.08}, params.Volatilities)
	assert.InDelta(t, 0.35, params.Correlations.At(0, 1), 1e-12)
	assert.InDelta(t, 0.35, params.Correlations.At(1, 0), 1e-12)
	assert.Equal(t, 3.0, params.JumpIntensity)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMarketParametersMissingSecurity(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	provider := NewPostgresProvider(mock)
	positions := []Position{
		{SecurityID: "SEC-1"},
		{SecurityID: "SEC-2"},
	}

	mock.ExpectQuery("SELECT security_id, expected_return, volatility").
		WithArgs([]string{"SEC-1", "SEC-2"}).
		WillReturnRows(pgxmock.NewRows([]string{"security_id", "expected_return", "volatility"}).
			AddRow("SEC-1", 0.08, 0.20))

	_, err = provider.GetMarketParameters(context.Background(), positions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no market parameters found for security SEC-2")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMarketParametersMissingCorrelation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	provider := NewPostgresProvider(mock)
	positions := []Position{
		{SecurityID: "SEC-1"},
		{SecurityID: "SEC-2"},
	}

	mock.ExpectQuery("SELECT security_id, expected_return, volatility").
		WithArgs([]string{"SEC-1", "SEC-2"}).
		WillReturnRows(pgxmock.NewRows([]string{"security_id", "expected_return", "volatility"}).
			AddRow("SEC-1", 0.08, 0.20).
			AddRow("SEC-2", 0.04, 0.08))

	mock.ExpectQuery("SELECT security_id_a, security_id_b, correlation").
		WithArgs([]string{"SEC-1", "SEC-2"}).
		WillReturnRows(pgxmock.NewRows([]string{"security_id_a", "security_id_b", "correlation"}))

	_, err = provider.GetMarketParameters(context.Background(), positions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no correlation found for pair")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMarketParametersDefaultJumpIntensity(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	provider := NewPostgresProvider(mock)
	positions := []Position{{SecurityID: "SEC-1"}}

	mock.ExpectQuery("SELECT security_id, expected_return, volatility").
		WithArgs([]string{"SEC-1"}).
		WillReturnRows(pgxmock.NewRows([]string{"security_id", "expected_return", "volatility"}).
			AddRow("SEC-1", 0.08, 0.20))

	mock.ExpectQuery("SELECT security_id_a, security_id_b, correlation").
		WithArgs([]string{"SEC-1"}).
		WillReturnRows(pgxmock.NewRows([]string{"security_id_a", "security_id_b", "correlation"}))

	mock.ExpectQuery("SELECT jump_intensity").
		WillReturnError(pgx.ErrNoRows)

	params, err := provider.GetMarketParameters(context.Background(), positions)
	require.NoError(t, err)
	assert.Equal(t, defaultJumpIntensity, params.JumpIntensity)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReturnSeriesAlignment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	provider := NewPostgresProvider(mock)
	positions := []Position{
		{SecurityID: "SEC-1"},
		{SecurityID: "SEC-2"},
	}

	// SEC-1 has one extra observation; series must truncate to common length.
	mock.ExpectQuery("SELECT security_id, daily_return").
		WithArgs([]string{"SEC-1", "SEC-2"}, 30).
		WillReturnRows(pgxmock.NewRows([]string{"security_id", "daily_return"}).
			AddRow("SEC-1", 0.010).
			AddRow("SEC-1", 0.005).
			AddRow("SEC-1", -0.002).
			AddRow("SEC-2", 0.001).
			AddRow("SEC-2", -0.001))

	series, err := provider.GetReturnSeries(context.Background(), positions, 30)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, []float64{0.005, -0.002}, series[0])
	assert.Equal(t, []float64{0.001, -0.001}, series[1])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReturnSeriesInsufficientHistory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	provider := NewPostgresProvider(mock)
	positions := []Position{{SecurityID: "SEC-1"}}

	mock.ExpectQuery("SELECT security_id, daily_return").
		WithArgs([]string{"SEC-1"}, 30).
		WillReturnRows(pgxmock.NewRows([]string{"security_id", "daily_return"}).
			AddRow("SEC-1", 0.010))

	_, err = provider.GetReturnSeries(context.Background(), positions, 30)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient return history")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLiquidityProfiles(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	provider := NewPostgresProvider(mock)
	positions := []Position{
		{SecurityID: "SEC-1"},
		{SecurityID: "SEC-2"},
	}

	mock.ExpectQuery("SELECT security_id, avg_daily_volume, bid_ask_spread, market_cap").
		WithArgs([]string{"SEC-1", "SEC-2"}).
		WillReturnRows(pgxmock.NewRows([]string{"security_id", "avg_daily_volume", "bid_ask_spread", "market_cap"}).
			AddRow("SEC-1", 25_000_000.0, 0.0008, 3_000_000_000.0))

	profiles, err := provider.GetLiquidityProfiles(context.Background(), positions)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, 25_000_000.0, profiles[0].AvgDailyVolume)
	// SEC-2 has no profile row; zero-valued entry lets callers apply defaults.
	assert.Equal(t, 0.0, profiles[1].AvgDailyVolume)

	require.NoError(t, mock.ExpectationsWereMet())
}

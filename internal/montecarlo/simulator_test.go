package montecarlo

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbrook/riskengine/internal/marketdata"
)

func singleAsset(t *testing.T, mu, sigma float64) ([]marketdata.Position, *marketdata.MarketParameters) {
	t.Helper()
	positions := []marketdata.Position{{
		PositionID:   "POS-1",
		SecurityID:   "SEC-1",
		Symbol:       "AAPL",
		MarketValue:  1_000_000,
		CurrentPrice: 100,
		AssetClass:   marketdata.AssetClassEquity,
	}}
	params, err := marketdata.NewMarketParameters(
		[]float64{mu}, []float64{sigma}, [][]float64{{1.0}}, 0,
	)
	require.NoError(t, err)
	return positions, params
}

func twoAssets(t *testing.T, rho float64) ([]marketdata.Position, *marketdata.MarketParameters) {
	t.Helper()
	positions := []marketdata.Position{
		{PositionID: "POS-1", SecurityID: "SEC-1", MarketValue: 500_000, CurrentPrice: 100},
		{PositionID: "POS-2", SecurityID: "SEC-2", MarketValue: 500_000, CurrentPrice: 50},
	}
	params, err := marketdata.NewMarketParameters(
		[]float64{0.05, 0.05},
		[]float64{0.20, 0.20},
		[][]float64{
			{1.0, rho},
			{rho, 1.0},
		},
		0,
	)
	require.NoError(t, err)
	return positions, params
}

// TestSimulatorZeroDriftZeroVol: with no drift and no volatility every trial
// return must be exactly zero.
func TestSimulatorZeroDriftZeroVol(t *testing.T) {
	positions, params := singleAsset(t, 0, 0)
	sim, err := NewSimulator(positions, params)
	require.NoError(t, err)

	req := &SimulationRequest{
		PortfolioID:         "PORT-1",
		NumberOfSimulations: 100_000,
		TimeHorizon:         Horizon1D,
		ConfidenceLevel:     0.95,
	}
	returns, err := sim.Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, returns, 100_000)

	result := BuildResult(req, returns)
	assert.InDelta(t, 0.0, result.ExpectedReturn, 1e-12)
	assert.InDelta(t, 0.0, result.StandardDeviation, 1e-12)
	assert.InDelta(t, 0.0, result.VaR95, 1e-12)
}

// TestSimulatorDeterministicDrift: zero volatility makes GBM deterministic,
// so a 1Y horizon compounds to exp(mu) - 1 exactly.
func TestSimulatorDeterministicDrift(t *testing.T) {
	mu := 0.10
	positions, params := singleAsset(t, mu, 0)
	sim, err := NewSimulator(positions, params)
	require.NoError(t, err)

	req := &SimulationRequest{
		PortfolioID:         "PORT-1",
		NumberOfSimulations: 100,
		TimeHorizon:         Horizon1Y,
		ConfidenceLevel:     0.95,
	}
	returns, err := sim.Run(context.Background(), req)
	require.NoError(t, err)

	expected := math.Exp(mu) - 1
	for _, r := range returns {
		assert.InDelta(t, expected, r, 1e-9)
	}
}

// TestSimulatorSeedReproducibility: a fixed seed and worker count must
// reproduce trial returns exactly.
func TestSimulatorSeedReproducibility(t *testing.T) {
	positions, params := twoAssets(t, 0.5)

	run := func() []float64 {
		sim, err := NewSimulator(positions, params)
		require.NoError(t, err)
		sim.Workers = 4

		req := &SimulationRequest{
			PortfolioID:         "PORT-1",
			NumberOfSimulations: 2_000,
			TimeHorizon:         Horizon1M,
			ConfidenceLevel:     0.95,
			RandomSeed:          42,
		}
		returns, err := sim.Run(context.Background(), req)
		require.NoError(t, err)
		return returns
	}

	assert.Equal(t, run(), run())
}

func TestSimulatorSeedsDiffer(t *testing.T) {
	positions, params := singleAsset(t, 0.05, 0.20)
	sim, err := NewSimulator(positions, params)
	require.NoError(t, err)
	sim.Workers = 1

	req := &SimulationRequest{
		PortfolioID:         "PORT-1",
		NumberOfSimulations: 500,
		TimeHorizon:         Horizon1W,
		ConfidenceLevel:     0.95,
		RandomSeed:          1,
	}
	first, err := sim.Run(context.Background(), req)
	require.NoError(t, err)

	req.RandomSeed = 2
	second, err := sim.Run(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

// TestSimulatorCorrelationWidensPortfolioSpread: perfectly correlated assets
// remove diversification, so the return distribution is wider than with
// independent assets.
func TestSimulatorCorrelationWidensPortfolioSpread(t *testing.T) {
	req := &SimulationRequest{
		PortfolioID:         "PORT-1",
		NumberOfSimulations: 20_000,
		TimeHorizon:         Horizon1M,
		ConfidenceLevel:     0.95,
		RandomSeed:          7,
	}

	spread := func(rho float64) float64 {
		positions, params := twoAssets(t, rho)
		sim, err := NewSimulator(positions, params)
		require.NoError(t, err)
		sim.Workers = 2

		returns, err := sim.Run(context.Background(), req)
		require.NoError(t, err)
		return BuildResult(req, returns).StandardDeviation
	}

	correlated := spread(0.99)
	independent := spread(0.0)
	assert.Greater(t, correlated, independent)
}

// TestSimulatorJumpRiskShiftsTail: down-biased jumps must lower the mean
// return relative to the same seed without jumps.
func TestSimulatorJumpRiskShiftsTail(t *testing.T) {
	positions := []marketdata.Position{{
		PositionID: "POS-1", SecurityID: "SEC-1", MarketValue: 1_000_000, CurrentPrice: 100,
	}}
	params, err := marketdata.NewMarketParameters(
		[]float64{0.0}, []float64{0.10}, [][]float64{{1.0}}, 50.0,
	)
	require.NoError(t, err)

	run := func(jumps bool) float64 {
		sim, err := NewSimulator(positions, params)
		require.NoError(t, err)
		sim.Workers = 1

		req := &SimulationRequest{
			PortfolioID:         "PORT-1",
			NumberOfSimulations: 10_000,
			TimeHorizon:         Horizon1M,
			ConfidenceLevel:     0.95,
			IncludeJumpRisk:     jumps,
			RandomSeed:          11,
		}
		returns, err := sim.Run(context.Background(), req)
		require.NoError(t, err)
		return BuildResult(req, returns).ExpectedReturn
	}

	assert.Less(t, run(true), run(false))
}

func TestSimulatorCancellation(t *testing.T) {
	positions, params := singleAsset(t, 0.05, 0.20)
	sim, err := NewSimulator(positions, params)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := &SimulationRequest{
		PortfolioID:         "PORT-1",
		NumberOfSimulations: 1_000_000,
		TimeHorizon:         Horizon1Y,
		ConfidenceLevel:     0.95,
	}
	_, err = sim.Run(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSimulatorRejectsBadPositions(t *testing.T) {
	params, err := marketdata.NewMarketParameters(
		[]float64{0.05}, []float64{0.20}, [][]float64{{1.0}}, 0,
	)
	require.NoError(t, err)

	_, err = NewSimulator([]marketdata.Position{
		{PositionID: "POS-1", MarketValue: 1000, CurrentPrice: 0},
	}, params)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-positive price")

	_, err = NewSimulator(nil, params)
	assert.ErrorIs(t, err, marketdata.ErrEmptyPortfolio)
}

func TestSimulationRequestValidate(t *testing.T) {
	valid := SimulationRequest{
		PortfolioID:         "PORT-1",
		NumberOfSimulations: 10_000,
		TimeHorizon:         Horizon1M,
		ConfidenceLevel:     0.99,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*SimulationRequest)
	}{
		{"missing portfolio", func(r *SimulationRequest) { r.PortfolioID = "" }},
		{"too few trials", func(r *SimulationRequest) { r.NumberOfSimulations = 10 }},
		{"bad horizon", func(r *SimulationRequest) { r.TimeHorizon = "2Y" }},
		{"bad confidence", func(r *SimulationRequest) { r.ConfidenceLevel = 1.5 }},
		{"bad vol model", func(r *SimulationRequest) { r.VolatilityModel = "GARCH" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			assert.Error(t, req.Validate())
		})
	}
}

package liquidity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbrook/riskengine/internal/events"
	"github.com/finbrook/riskengine/internal/marketdata"
)

type capturingPublisher struct {
	events []*events.Event
}

func (c *capturingPublisher) Publish(_ context.Context, event *events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func serviceFixture() (*Service, *capturingPublisher) {
	provider := &marketdata.StaticProvider{
		PortfolioID: "PORT-1",
		Positions: []marketdata.Position{
			{
				PositionID:  "POS-1",
				SecurityID:  "SEC-1",
				Symbol:      "MEGA",
				AssetClass:  marketdata.AssetClassEquity,
				Sector:      "Technology",
				MarketValue: 1_500_000,
			},
			{
				PositionID:  "POS-2",
				SecurityID:  "SEC-2",
				Symbol:      "CORP-BOND",
				AssetClass:  marketdata.AssetClassFixedIncome,
				Sector:      "Financials",
				MarketValue: 600_000,
			},
			{
				PositionID:  "POS-3",
				SecurityID:  "SEC-3",
				Symbol:      "VENTURE",
				AssetClass:  marketdata.AssetClassAlternative,
				Sector:      "Technology",
				MarketValue: 80_000,
			},
		},
		Profiles: []marketdata.LiquidityProfile{
			{AvgDailyVolume: 50_000_000, BidAskSpread: 0.0008, MarketCap: 40_000_000_000},
			{AvgDailyVolume: 3_000_000, BidAskSpread: 0.008},
			{}, // no market data; falls back to alternatives defaults
		},
	}

	publisher := &capturingPublisher{}
	return NewService(provider, publisher, "tenant-a"), publisher
}

func TestServiceAssessLiquidity(t *testing.T) {
	service, publisher := serviceFixture()

	result, err := service.AssessLiquidity(context.Background(), &AssessmentRequest{
		PortfolioID:              "PORT-1",
		LiquidationTimeframeDays: 5,
		ImpactModel:              ImpactModelSquareRoot,
	})
	require.NoError(t, err)

	require.Len(t, result.Positions, 3)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "PORT-1", result.PortfolioID)

	// The mega-cap clears in a day; the bond needs one as well at $600K
	// against $3M ADV; the alternative sits at $80K against $200K/day.
	assert.Equal(t, CategoryImmediate, result.Positions[0].Category)
	assert.Equal(t, 1, result.Positions[1].DaysToLiquidate)
	assert.Equal(t, CategoryImmediate, result.Positions[2].Category)

	assert.Greater(t, result.Metrics.LiquidityScore, 0.0)
	assert.LessOrEqual(t, result.Metrics.LiquidityScore, 100.0)
	assert.Greater(t, result.Metrics.TotalLiquidationCost, 0.0)
	assert.GreaterOrEqual(t, result.Metrics.WeightedDaysToLiquidate, 1.0)

	// Breakdowns cover every group present in the fixture.
	assert.Len(t, result.ByAssetClass, 3)
	assert.Len(t, result.BySector, 2)
	assert.Len(t, result.BySizeBucket, 3)

	// All three canned scenarios run, each strictly costlier than baseline.
	require.Len(t, result.StressResults, 3)
	for _, sr := range result.StressResults {
		assert.Equal(t, result.Metrics, sr.Baseline)
		assert.Greater(t, sr.Stressed.TotalLiquidationCost, sr.Baseline.TotalLiquidationCost, sr.Scenario.Name)
	}

	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.TypeLiquidityAssessed, publisher.events[0].EventType)
	assert.Equal(t, "PORT-1", publisher.events[0].EntityID)
	assert.Equal(t, "tenant-a", publisher.events[0].TenantID)
}

func TestServiceRejectsInvalidRequest(t *testing.T) {
	service, publisher := serviceFixture()

	_, err := service.AssessLiquidity(context.Background(), &AssessmentRequest{
		PortfolioID:              "PORT-1",
		LiquidationTimeframeDays: 0,
		ImpactModel:              ImpactModelLinear,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeframe")

	_, err = service.AssessLiquidity(context.Background(), &AssessmentRequest{
		PortfolioID:              "PORT-1",
		LiquidationTimeframeDays: 5,
		ImpactModel:              "EXPONENTIAL",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "impact model")

	assert.Empty(t, publisher.events)
}

func TestServiceUnknownPortfolio(t *testing.T) {
	service, _ := serviceFixture()

	_, err := service.AssessLiquidity(context.Background(), &AssessmentRequest{
		PortfolioID:              "MISSING",
		LiquidationTimeframeDays: 5,
		ImpactModel:              ImpactModelLinear,
	})
	require.ErrorIs(t, err, marketdata.ErrPortfolioNotFound)
}

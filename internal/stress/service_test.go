package stress

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

func serviceFixture(t *testing.T) (*Service, *capturingPublisher) {
	t.Helper()

	params, err := marketdata.NewMarketParameters(
		[]float64{0.08, 0.04, 0.06},
		[]float64{0.22, 0.06, 0.30},
		[][]float64{
			{1.0, 0.2, 0.5},
			{0.2, 1.0, 0.1},
			{0.5, 0.1, 1.0},
		},
		0,
	)
	require.NoError(t, err)

	provider := &marketdata.StaticProvider{
		PortfolioID: "PORT-1",
		Positions: []marketdata.Position{
			{PositionID: "POS-1", Symbol: "EQ", AssetClass: marketdata.AssetClassEquity, MarketValue: 500_000, Currency: "USD"},
			{PositionID: "POS-2", Symbol: "FI", AssetClass: marketdata.AssetClassFixedIncome, MarketValue: 300_000, Currency: "USD"},
			{PositionID: "POS-3", Symbol: "ALT", AssetClass: marketdata.AssetClassAlternative, MarketValue: 200_000, Currency: "GBP"},
		},
		Parameters: params,
	}

	publisher := &capturingPublisher{}
	return NewService(provider, publisher, "tenant-a"), publisher
}

func TestServiceRunStressTest(t *testing.T) {
	service, publisher := serviceFixture(t)

	result, err := service.RunStressTest(context.Background(), &Request{PortfolioID: "PORT-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Scenarios, len(BuiltinScenarios()))

	byID := make(map[string]ScenarioResult)
	for _, sr := range result.Scenarios {
		byID[sr.ScenarioID] = sr
		assert.InDelta(t, 1_000_000, sr.BaseValue, 1e-6)
		assert.Len(t, sr.PositionImpacts, 3)
		assert.Greater(t, sr.StressedVolatility, 0.0)
		assert.Greater(t, sr.StressedVaR95, 0.0)
	}

	// A 45% equity crash must hurt more than an isolated vol spike.
	assert.Less(t, byID["GFC_2008"].PortfolioPnL, byID["VOL_SPIKE"].PortfolioPnL)

	worst := byID[result.WorstScenarioID]
	best := byID[result.BestScenarioID]
	for _, sr := range result.Scenarios {
		assert.GreaterOrEqual(t, sr.PortfolioPnL, worst.PortfolioPnL)
		assert.LessOrEqual(t, sr.PortfolioPnL, best.PortfolioPnL)
	}

	require.NotEmpty(t, result.FactorRanking)
	for i := 1; i < len(result.FactorRanking); i++ {
		assert.GreaterOrEqual(t, result.FactorRanking[i-1].LossVariance, result.FactorRanking[i].LossVariance)
	}

	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.TypeStressTestCompleted, publisher.events[0].EventType)
	assert.Equal(t, "tenant-a", publisher.events[0].TenantID)
}

func TestServiceCustomScenario(t *testing.T) {
	service, _ := serviceFixture(t)

	result, err := service.RunStressTest(context.Background(), &Request{
		PortfolioID: "PORT-1",
		ScenarioIDs: []string{"RATE_SHOCK_300"},
		CustomScenarios: []Scenario{
			{
				ID:       "EQUITY_ONLY",
				Name:     "Equity -30%",
				Shocks:   map[RiskFactor]float64{FactorEquity: -0.30},
				Severity: 0.7,
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Scenarios, 2)

	custom := result.Scenarios[1]
	assert.Equal(t, "EQUITY_ONLY", custom.ScenarioID)
	// Only equity-beta carriers lose; the bond is untouched.
	assert.Less(t, custom.PortfolioPnL, 0.0)
	assert.InDelta(t, 300_000, custom.PositionImpacts[1].StressedValue, 1e-6)
}

func TestServiceRejectsInvalidRequests(t *testing.T) {
	service, publisher := serviceFixture(t)

	_, err := service.RunStressTest(context.Background(), &Request{})
	require.Error(t, err)

	_, err = service.RunStressTest(context.Background(), &Request{
		PortfolioID:     "PORT-1",
		CustomScenarios: []Scenario{{ID: "BAD"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no shocks")

	_, err = service.RunStressTest(context.Background(), &Request{PortfolioID: "MISSING"})
	require.ErrorIs(t, err, marketdata.ErrPortfolioNotFound)

	assert.Empty(t, publisher.events)
}

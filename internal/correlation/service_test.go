package correlation

import (
	"context"
	"math"
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

// equicorrelatedSeries builds three zero-mean return series with an exact
// pairwise Pearson correlation of 0.5, from an orthogonal basis.
func equicorrelatedSeries() [][]float64 {
	e1 := []float64{1, 1, -1, -1}
	e2 := []float64{1, -1, 1, -1}
	e3 := []float64{1, -1, -1, 1}

	combine := func(a, b, c float64) []float64 {
		out := make([]float64, len(e1))
		for t := range out {
			out[t] = 0.01 * (a*e1[t] + b*e2[t] + c*e3[t])
		}
		return out
	}

	b := 0.25 / math.Sqrt(0.75)
	c := math.Sqrt(1 - 0.25 - b*b)
	return [][]float64{
		combine(1, 0, 0),
		combine(0.5, math.Sqrt(0.75), 0),
		combine(0.5, b, c),
	}
}

func serviceFixture() (*Service, *capturingPublisher) {
	provider := &marketdata.StaticProvider{
		PortfolioID: "PORT-1",
		Positions: []marketdata.Position{
			{PositionID: "POS-1", Symbol: "AAA", AssetClass: marketdata.AssetClassEquity, Sector: "Technology", Geography: "US", MarketValue: 1_000_000},
			{PositionID: "POS-2", Symbol: "BBB", AssetClass: marketdata.AssetClassEquity, Sector: "Healthcare", Geography: "US", MarketValue: 1_000_000},
			{PositionID: "POS-3", Symbol: "CCC", AssetClass: marketdata.AssetClassFixedIncome, Sector: "Financials", Geography: "EU", MarketValue: 1_000_000},
		},
		Series: equicorrelatedSeries(),
	}

	publisher := &capturingPublisher{}
	return NewService(provider, publisher, "tenant-a"), publisher
}

// Three equal positions at pairwise correlation 0.5: the effective position
// count is exactly 3 and diversification still pays.
func TestServiceAnalyzeEqualWeightPortfolio(t *testing.T) {
	service, publisher := serviceFixture()

	result, err := service.Analyze(context.Background(), &Request{
		PortfolioID:  "PORT-1",
		LookbackDays: 4,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Matrices, len(AllGranularities()))

	byGranularity := make(map[Granularity]MatrixResult)
	for _, m := range result.Matrices {
		byGranularity[m.Granularity] = m
	}

	position := byGranularity[GranularityPosition]
	require.Len(t, position.Matrix, 3)
	assert.InDelta(t, 0.5, position.Matrix[0][1], 1e-9)
	assert.InDelta(t, 0.5, position.Matrix[0][2], 1e-9)
	assert.InDelta(t, 0.5, position.Matrix[1][2], 1e-9)
	assert.InDelta(t, 0.5, position.AvgCorrelation, 1e-9)

	assert.Len(t, byGranularity[GranularityAssetClass].Matrix, 2)
	assert.Len(t, byGranularity[GranularitySector].Matrix, 3)
	assert.Len(t, byGranularity[GranularityGeography].Matrix, 2)

	assert.InDelta(t, 3.0, result.Concentration.EffectivePositions, 1e-9)
	assert.InDelta(t, 1.0/3.0, result.Concentration.Herfindahl, 1e-9)
	require.Len(t, result.Concentration.AssetClassRankings, 2)
	assert.InDelta(t, 2.0/3.0, result.Concentration.AssetClassRankings[0].Weight, 1e-9)
	require.Len(t, result.Concentration.GeographyRankings, 2)
	assert.Equal(t, "US", result.Concentration.GeographyRankings[0].Category)

	assert.Greater(t, result.DiversificationRatio, 1.0)
	assert.InDelta(t, math.Sqrt(1.5), result.DiversificationRatio, 1e-6)

	var total float64
	for _, rc := range result.RiskContributions {
		total += rc.ContributionPct
	}
	assert.InDelta(t, 100.0, total, 0.01)

	require.Len(t, result.PrincipalComponents, 3)
	assert.InDelta(t, 2.0, result.PrincipalComponents[0].Eigenvalue, 1e-6)
	assert.InDelta(t, 1.0, result.PrincipalComponents[2].CumulativeVariance, 1e-6)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.TypeCorrelationAnalyzed, publisher.events[0].EventType)
	assert.Equal(t, "PORT-1", publisher.events[0].EntityID)
}

func TestServiceSingleGranularity(t *testing.T) {
	service, _ := serviceFixture()

	result, err := service.Analyze(context.Background(), &Request{
		PortfolioID:   "PORT-1",
		LookbackDays:  4,
		Granularities: []Granularity{GranularityAssetClass},
	})
	require.NoError(t, err)
	require.Len(t, result.Matrices, 1)
	assert.Equal(t, GranularityAssetClass, result.Matrices[0].Granularity)

	// Position-level decomposition still runs.
	assert.NotEmpty(t, result.PrincipalComponents)
	assert.NotEmpty(t, result.RiskContributions)
}

// A one-position book still gets a principal component: the 1x1 correlation
// matrix has the single eigenvalue 1.
func TestServiceSinglePositionPortfolio(t *testing.T) {
	provider := &marketdata.StaticProvider{
		PortfolioID: "PORT-1",
		Positions: []marketdata.Position{
			{PositionID: "POS-1", Symbol: "AAA", AssetClass: marketdata.AssetClassEquity, Sector: "Technology", Geography: "US", MarketValue: 1_000_000},
		},
		Series: [][]float64{{0.01, -0.02, 0.03, -0.01}},
	}
	service := NewService(provider, &capturingPublisher{}, "tenant-a")

	result, err := service.Analyze(context.Background(), &Request{
		PortfolioID:  "PORT-1",
		LookbackDays: 4,
	})
	require.NoError(t, err)

	require.Len(t, result.PrincipalComponents, 1)
	assert.InDelta(t, 1.0, result.PrincipalComponents[0].Eigenvalue, 1e-9)
	assert.InDelta(t, 1.0, result.PrincipalComponents[0].VarianceExplained, 1e-9)
	assert.InDelta(t, 1.0, result.PrincipalComponents[0].CumulativeVariance, 1e-9)

	require.Len(t, result.RiskContributions, 1)
	assert.InDelta(t, 100.0, result.RiskContributions[0].ContributionPct, 1e-9)
	assert.InDelta(t, 1.0, result.DiversificationRatio, 1e-9)
}

func TestServiceRejectsInvalidRequests(t *testing.T) {
	service, publisher := serviceFixture()

	_, err := service.Analyze(context.Background(), &Request{LookbackDays: 4})
	require.Error(t, err)

	_, err = service.Analyze(context.Background(), &Request{PortfolioID: "PORT-1", LookbackDays: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookback")

	_, err = service.Analyze(context.Background(), &Request{
		PortfolioID:   "PORT-1",
		LookbackDays:  4,
		Granularities: []Granularity{"COUNTRY"},
	})
	require.Error(t, err)

	_, err = service.Analyze(context.Background(), &Request{PortfolioID: "MISSING", LookbackDays: 4})
	require.ErrorIs(t, err, marketdata.ErrPortfolioNotFound)

	assert.Empty(t, publisher.events)
}

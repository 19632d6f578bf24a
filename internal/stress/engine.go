package stress

import (
	"math"
	"sort"

	"github.com/finbrook/riskengine/internal/linalg"
	"github.com/finbrook/riskengine/internal/marketdata"
)

const (
	// referenceMarketVol anchors the implied beta: a position with this
	// annualized volatility moves one-for-one with the equity factor.
	referenceMarketVol = 0.15

	defaultDuration       = 5.0  // years, fixed income without a curve model
	alternativeEquityBeta = 0.6  // alternatives participate partially in equity moves
	defaultVega           = 0.05 // fractional value change per vol point

	baseCurrency = "USD"

	z95 = 1.645
)

// deriveSensitivities maps a position and its model volatility onto factor
// sensitivities. Equity beta is implied from volatility against the reference
// market vol; fixed income carries duration; anything non-base-currency
// carries FX exposure.
func deriveSensitivities(pos marketdata.Position, volatility float64) Sensitivities {
	var s Sensitivities

	switch pos.AssetClass {
	case marketdata.AssetClassEquity:
		s.Beta = volatility / referenceMarketVol
		s.Vega = defaultVega
	case marketdata.AssetClassFixedIncome:
		s.Duration = defaultDuration
	case marketdata.AssetClassAlternative:
		s.Beta = alternativeEquityBeta
		s.Vega = defaultVega
	case marketdata.AssetClassCash:
		// insensitive except to currency
	}

	if pos.Currency != "" && pos.Currency != baseCurrency {
		s.FXExposure = 1.0
	}
	return s
}

// factorDelta converts one factor shock into a fractional value change for a
// position with the given sensitivities.
func factorDelta(s Sensitivities, factor RiskFactor, shock float64) float64 {
	switch factor {
	case FactorEquity:
		return s.Beta * shock
	case FactorInterestRate:
		return -s.Duration * shock / 10_000
	case FactorCreditSpread:
		return -s.Duration * shock / 10_000
	case FactorCommodity:
		// Commodity exposure rides the same beta channel, damped.
		return 0.3 * s.Beta * shock
	case FactorCurrency:
		return s.FXExposure * shock
	case FactorVolatility:
		return -s.Vega * shock
	default:
		return 0
	}
}

// reprice applies every shock in the scenario to every position and returns
// the impacts plus the per-factor P&L attribution.
func reprice(positions []marketdata.Position, sens []Sensitivities, sc Scenario) ([]PositionImpact, map[RiskFactor]float64) {
	impacts := make([]PositionImpact, len(positions))
	attribution := make(map[RiskFactor]float64, len(sc.Shocks))

	for i, pos := range positions {
		totalDelta := 0.0
		for factor, shock := range sc.Shocks {
			d := factorDelta(sens[i], factor, shock)
			totalDelta += d
			attribution[factor] += d * pos.MarketValue
		}

		stressed := pos.MarketValue * (1 + totalDelta)
		impacts[i] = PositionImpact{
			PositionID:    pos.PositionID,
			Symbol:        pos.Symbol,
			BaseValue:     pos.MarketValue,
			StressedValue: stressed,
			PnL:           stressed - pos.MarketValue,
			PnLPct:        totalDelta,
		}
	}
	return impacts, attribution
}

// stressedPortfolioVol recomputes annualized portfolio volatility under the
// scenario: per-position vols take the volatility shock additively and
// pairwise correlations are pulled toward 1 in proportion to severity.
func stressedPortfolioVol(params *marketdata.MarketParameters, weights []float64, sc Scenario) float64 {
	n := len(weights)
	volShock := sc.Shocks[FactorVolatility]

	vols := make([]float64, n)
	for i, v := range params.Volatilities {
		vols[i] = math.Max(0, v+volShock)
	}

	var variance float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rho := params.Correlations.At(i, j)
			if i != j {
				rho += (1 - rho) * sc.Severity
			}
			variance += weights[i] * weights[j] * vols[i] * vols[j] * rho
		}
	}
	return math.Sqrt(math.Max(0, variance))
}

// runScenario reprices the portfolio and recomputes risk metrics under one
// scenario.
func runScenario(positions []marketdata.Position, params *marketdata.MarketParameters, weights []float64, sens []Sensitivities, sc Scenario) ScenarioResult {
	impacts, attribution := reprice(positions, sens, sc)

	var baseValue, stressedValue float64
	for _, imp := range impacts {
		baseValue += imp.BaseValue
		stressedValue += imp.StressedValue
	}
	pnl := stressedValue - baseValue

	vol := stressedPortfolioVol(params, weights, sc)
	// One-day parametric VaR on the stressed portfolio value.
	var95 := stressedValue * z95 * vol / math.Sqrt(252)

	result := ScenarioResult{
		ScenarioID:         sc.ID,
		ScenarioName:       sc.Name,
		BaseValue:          baseValue,
		StressedValue:      stressedValue,
		PortfolioPnL:       pnl,
		StressedVolatility: vol,
		StressedVaR95:      var95,
		FactorAttribution:  attribution,
		PositionImpacts:    impacts,
	}
	if baseValue > 0 {
		result.PnLPct = pnl / baseValue
	}
	return result
}

// rankFactors measures each factor's loss variance across the scenario set
// and returns factors sorted by descending share.
func rankFactors(scenarios []ScenarioResult) []FactorContribution {
	samples := make(map[RiskFactor][]float64)
	for _, sc := range scenarios {
		for factor, pnl := range sc.FactorAttribution {
			samples[factor] = append(samples[factor], pnl)
		}
	}

	var total float64
	ranking := make([]FactorContribution, 0, len(samples))
	for factor, pnls := range samples {
		v := linalg.Variance(pnls)
		total += v
		ranking = append(ranking, FactorContribution{Factor: factor, LossVariance: v})
	}
	if total > 0 {
		for i := range ranking {
			ranking[i].Share = ranking[i].LossVariance / total
		}
	}

	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].LossVariance != ranking[j].LossVariance {
			return ranking[i].LossVariance > ranking[j].LossVariance
		}
		return ranking[i].Factor < ranking[j].Factor
	})
	return ranking
}

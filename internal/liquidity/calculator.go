package liquidity

import (
	"fmt"
	"math"
	"sort"

	"github.com/finbrook/riskengine/internal/marketdata"
)

const (
	// participationRate caps how much of a security's daily volume a single
	// liquidation consumes without moving the market beyond the impact model.
	participationRate = 0.20

	linearImpactCoeff     = 0.01
	squareRootImpactCoeff = 0.015
	powerLawImpactCoeff   = 0.02
	powerLawExponent      = 0.6
)

// classDefaultProfile fills in volume and spread assumptions for securities
// with no liquidity profile on record.
func classDefaultProfile(assetClass marketdata.AssetClass) marketdata.LiquidityProfile {
	switch assetClass {
	case marketdata.AssetClassEquity:
		return marketdata.LiquidityProfile{AvgDailyVolume: 10_000_000, BidAskSpread: 0.005}
	case marketdata.AssetClassFixedIncome:
		return marketdata.LiquidityProfile{AvgDailyVolume: 5_000_000, BidAskSpread: 0.01}
	default:
		return marketdata.LiquidityProfile{AvgDailyVolume: 1_000_000, BidAskSpread: 0.02}
	}
}

// daysToLiquidate is the number of trading days needed to unwind a position
// at the participation cap. A position with no tradable volume cannot be
// assessed and is reported as an error rather than an infinite horizon.
func daysToLiquidate(marketValue, avgDailyVolume float64) (int, error) {
	if avgDailyVolume <= 0 {
		return 0, fmt.Errorf("average daily volume must be positive, got %g", avgDailyVolume)
	}
	days := int(math.Ceil(marketValue / (avgDailyVolume * participationRate)))
	if days < 1 {
		days = 1
	}
	return days, nil
}

func categorize(days int) Category {
	switch {
	case days <= 1:
		return CategoryImmediate
	case days <= 7:
		return CategoryHigh
	case days <= 30:
		return CategoryMedium
	case days <= 90:
		return CategoryLow
	default:
		return CategoryIlliquid
	}
}

// urgencyMultiplier prices the premium for an accelerated unwind.
func urgencyMultiplier(timeframeDays int) float64 {
	switch {
	case timeframeDays <= 1:
		return 1.5
	case timeframeDays <= 7:
		return 1.2
	default:
		return 1.0
	}
}

// marketImpact estimates the price concession from consuming volumeRatio of
// daily capacity, as a dollar cost on the position.
func marketImpact(marketValue, volumeRatio float64, model MarketImpactModel) float64 {
	switch model {
	case ImpactModelSquareRoot:
		return marketValue * squareRootImpactCoeff * math.Sqrt(volumeRatio)
	case ImpactModelPowerLaw:
		return marketValue * powerLawImpactCoeff * math.Pow(volumeRatio, powerLawExponent)
	default:
		return marketValue * linearImpactCoeff * volumeRatio
	}
}

// liquidationCost decomposes the unwind cost into half-spread plus impact,
// scaled by the urgency premium.
func liquidationCost(marketValue, spread, volumeRatio float64, model MarketImpactModel, timeframeDays int) (spreadCost, impact, total float64) {
	spreadCost = marketValue * spread * 0.5
	impact = marketImpact(marketValue, volumeRatio, model)
	total = (spreadCost + impact) * urgencyMultiplier(timeframeDays)
	return spreadCost, impact, total
}

// positionScore maps a position onto a 0-100 liquidity scale. The category
// sets the base and spread tightness plus market-cap tier nudge it.
func positionScore(category Category, spread, marketCap float64) float64 {
	var score float64
	switch category {
	case CategoryImmediate:
		score = 95
	case CategoryHigh:
		score = 75
	case CategoryMedium:
		score = 50
	case CategoryLow:
		score = 30
	default:
		score = 10
	}

	switch {
	case spread <= 0.002:
		score += 5
	case spread >= 0.015:
		score -= 10
	case spread >= 0.008:
		score -= 5
	}

	switch {
	case marketCap >= 10_000_000_000:
		score += 3
	case marketCap > 0 && marketCap < 250_000_000:
		score -= 5
	}

	return math.Max(0, math.Min(100, score))
}

// sizeBucket classifies the position by market value.
func sizeBucket(marketValue float64) string {
	switch {
	case marketValue > 1_000_000:
		return "LARGE"
	case marketValue >= 100_000:
		return "MEDIUM"
	default:
		return "SMALL"
	}
}

// assessPosition runs the full per-position pipeline against one profile.
// Zero-valued profiles are replaced by asset-class defaults first.
func assessPosition(pos marketdata.Position, profile marketdata.LiquidityProfile, req *AssessmentRequest) (PositionLiquidity, error) {
	if profile.AvgDailyVolume == 0 && profile.BidAskSpread == 0 {
		profile = classDefaultProfile(pos.AssetClass)
	}
	mv := pos.MarketValue
	days, err := daysToLiquidate(mv, profile.AvgDailyVolume)
	if err != nil {
		return PositionLiquidity{}, fmt.Errorf("position %s: %w", pos.Symbol, err)
	}
	category := categorize(days)
	volumeRatio := mv / (profile.AvgDailyVolume * participationRate)
	spreadCost, impact, total := liquidationCost(mv, profile.BidAskSpread, volumeRatio, req.ImpactModel, req.LiquidationTimeframeDays)

	return PositionLiquidity{
		PositionID:      pos.PositionID,
		Symbol:          pos.Symbol,
		AssetClass:      string(pos.AssetClass),
		Sector:          pos.Sector,
		MarketValue:     mv,
		DaysToLiquidate: days,
		Category:        category,
		SpreadCost:      spreadCost,
		MarketImpact:    impact,
		LiquidationCost: total,
		Score:           positionScore(category, profile.BidAskSpread, profile.MarketCap),
	}, nil
}

// aggregate folds per-position assessments into portfolio metrics. Weights
// are by market value.
func aggregate(positions []PositionLiquidity) PortfolioMetrics {
	var totalValue, totalCost, weightedDays, weightedScore, immediateValue float64
	for _, p := range positions {
		totalValue += p.MarketValue
		totalCost += p.LiquidationCost
	}
	if totalValue <= 0 {
		return PortfolioMetrics{}
	}
	for _, p := range positions {
		w := p.MarketValue / totalValue
		weightedDays += w * float64(p.DaysToLiquidate)
		weightedScore += w * p.Score
		if p.DaysToLiquidate <= 1 {
			immediateValue += p.MarketValue
		}
	}
	return PortfolioMetrics{
		LiquidityScore:           weightedScore,
		TotalLiquidationCost:     totalCost,
		WeightedDaysToLiquidate:  weightedDays,
		ImmediatelyLiquidablePct: immediateValue / totalValue,
	}
}

// groupBy builds a breakdown keyed by the supplied classifier, sorted by
// descending market value.
func groupBy(positions []PositionLiquidity, key func(PositionLiquidity) string) []GroupMetrics {
	type acc struct {
		value, cost, valueDays float64
	}
	byGroup := make(map[string]*acc)
	for _, p := range positions {
		g := key(p)
		a, ok := byGroup[g]
		if !ok {
			a = &acc{}
			byGroup[g] = a
		}
		a.value += p.MarketValue
		a.cost += p.LiquidationCost
		a.valueDays += p.MarketValue * float64(p.DaysToLiquidate)
	}

	out := make([]GroupMetrics, 0, len(byGroup))
	for g, a := range byGroup {
		row := GroupMetrics{Group: g, MarketValue: a.value, TotalLiquidationCost: a.cost}
		if a.value > 0 {
			row.WeightedDaysToLiquidate = a.valueDays / a.value
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MarketValue != out[j].MarketValue {
			return out[i].MarketValue > out[j].MarketValue
		}
		return out[i].Group < out[j].Group
	})
	return out
}

// defaultStressScenarios are the canned liquidity shocks every assessment
// reports. Volume reductions are surviving fractions.
func defaultStressScenarios() []StressScenario {
	return []StressScenario{
		{
			Name:             "Market Volatility Spike",
			Description:      "Elevated volatility drains depth and widens quotes",
			VolumeReduction:  0.6,
			SpreadMultiplier: 2.0,
			TimeMultiplier:   1.2,
		},
		{
			Name:             "Credit Crisis",
			Description:      "Dealer balance sheets contract, credit markets seize",
			VolumeReduction:  0.4,
			SpreadMultiplier: 3.0,
			TimeMultiplier:   1.5,
		},
		{
			Name:             "Flash Crash",
			Description:      "Liquidity providers withdraw, order books empty",
			VolumeReduction:  0.2,
			SpreadMultiplier: 5.0,
			TimeMultiplier:   2.0,
		},
	}
}

// applyStress reprices every position under the scenario and re-aggregates.
// Profiles are parallel to positions; zero-valued entries take class defaults
// before the shock is applied.
func applyStress(positions []marketdata.Position, profiles []marketdata.LiquidityProfile, req *AssessmentRequest, sc StressScenario) (PortfolioMetrics, error) {
	stressed := make([]PositionLiquidity, 0, len(positions))
	for i, pos := range positions {
		profile := profiles[i]
		if profile.AvgDailyVolume == 0 && profile.BidAskSpread == 0 {
			profile = classDefaultProfile(pos.AssetClass)
		}
		profile.AvgDailyVolume *= sc.VolumeReduction
		profile.BidAskSpread *= sc.SpreadMultiplier

		pl, err := assessPosition(pos, profile, req)
		if err != nil {
			return PortfolioMetrics{}, err
		}
		pl.DaysToLiquidate = int(math.Ceil(float64(pl.DaysToLiquidate) * sc.TimeMultiplier))
		pl.Category = categorize(pl.DaysToLiquidate)
		pl.Score = positionScore(pl.Category, profile.BidAskSpread, profile.MarketCap)
		stressed = append(stressed, pl)
	}
	return aggregate(stressed), nil
}

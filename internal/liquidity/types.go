// Package liquidity implements per-position liquidation modeling: days to
// liquidate under a volume-participation constraint, spread and market-impact
// cost estimates, a 0-100 portfolio liquidity score and canned liquidity
// stress scenarios.
package liquidity

import (
	"fmt"
	"time"
)

// MarketImpactModel selects the market-impact cost curve.
type MarketImpactModel string

const (
	ImpactModelLinear     MarketImpactModel = "LINEAR"
	ImpactModelSquareRoot MarketImpactModel = "SQUARE_ROOT"
	ImpactModelPowerLaw   MarketImpactModel = "POWER_LAW"
)

// Category is an ordinal liquidity bucket derived from days-to-liquidate.
type Category string

const (
	CategoryImmediate Category = "IMMEDIATE" // <= 1 day
	CategoryHigh      Category = "HIGH"      // <= 7 days
	CategoryMedium    Category = "MEDIUM"    // <= 30 days
	CategoryLow       Category = "LOW"       // <= 90 days
	CategoryIlliquid  Category = "ILLIQUID"  // > 90 days
)

// Rank returns the ordinal position of the category, 0 being most liquid.
func (c Category) Rank() int {
	switch c {
	case CategoryImmediate:
		return 0
	case CategoryHigh:
		return 1
	case CategoryMedium:
		return 2
	case CategoryLow:
		return 3
	default:
		return 4
	}
}

// AssessmentRequest parameterizes one liquidity assessment.
type AssessmentRequest struct {
	PortfolioID string    `json:"portfolio_id"`
	AsOf        time.Time `json:"as_of"`
	// LiquidationTimeframeDays is the urgency of the hypothetical unwind and
	// drives the urgency cost premium.
	LiquidationTimeframeDays int               `json:"liquidation_timeframe_days"`
	ImpactModel              MarketImpactModel `json:"impact_model"`
}

// Validate checks the request before any data is fetched.
func (r *AssessmentRequest) Validate() error {
	if r.PortfolioID == "" {
		return fmt.Errorf("portfolio ID is required")
	}
	if r.LiquidationTimeframeDays <= 0 {
		return fmt.Errorf("liquidation timeframe must be positive, got %d", r.LiquidationTimeframeDays)
	}
	switch r.ImpactModel {
	case ImpactModelLinear, ImpactModelSquareRoot, ImpactModelPowerLaw:
		return nil
	default:
		return fmt.Errorf("unknown market impact model %q", r.ImpactModel)
	}
}

// PositionLiquidity is the per-position assessment.
type PositionLiquidity struct {
	PositionID      string   `json:"position_id"`
	Symbol          string   `json:"symbol"`
	AssetClass      string   `json:"asset_class"`
	Sector          string   `json:"sector"`
	MarketValue     float64  `json:"market_value"`
	DaysToLiquidate int      `json:"days_to_liquidate"`
	Category        Category `json:"category"`
	SpreadCost      float64  `json:"spread_cost"`
	MarketImpact    float64  `json:"market_impact"`
	LiquidationCost float64  `json:"liquidation_cost"`
	Score           float64  `json:"score"`
}

// PortfolioMetrics aggregates a position set into portfolio-level liquidity
// measures.
type PortfolioMetrics struct {
	LiquidityScore           float64 `json:"liquidity_score"` // 0-100, value-weighted
	TotalLiquidationCost     float64 `json:"total_liquidation_cost"`
	WeightedDaysToLiquidate  float64 `json:"weighted_days_to_liquidate"`
	ImmediatelyLiquidablePct float64 `json:"immediately_liquidable_pct"` // value share at <= 1 day
}

// GroupMetrics is a breakdown row for one asset class, sector or size bucket.
type GroupMetrics struct {
	Group                   string  `json:"group"`
	MarketValue             float64 `json:"market_value"`
	WeightedDaysToLiquidate float64 `json:"weighted_days_to_liquidate"`
	TotalLiquidationCost    float64 `json:"total_liquidation_cost"`
}

// StressScenario defines a canned liquidity shock.
type StressScenario struct {
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	VolumeReduction  float64 `json:"volume_reduction"`  // surviving fraction of daily volume
	SpreadMultiplier float64 `json:"spread_multiplier"` // widened spreads
	TimeMultiplier   float64 `json:"time_multiplier"`   // lengthened liquidation times
}

// StressResult is the before/after comparison for one scenario.
type StressResult struct {
	Scenario StressScenario   `json:"scenario"`
	Baseline PortfolioMetrics `json:"baseline"`
	Stressed PortfolioMetrics `json:"stressed"`
}

// Assessment is the full output of one run.
type Assessment struct {
	RunID       string    `json:"run_id"`
	PortfolioID string    `json:"portfolio_id"`
	RunAt       time.Time `json:"run_at"`

	Positions []PositionLiquidity `json:"positions"`
	Metrics   PortfolioMetrics    `json:"metrics"`

	ByAssetClass []GroupMetrics `json:"by_asset_class"`
	BySector     []GroupMetrics `json:"by_sector"`
	BySizeBucket []GroupMetrics `json:"by_size_bucket"`

	StressResults []StressResult `json:"stress_results"`
}

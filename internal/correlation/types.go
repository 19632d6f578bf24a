// Package correlation analyzes portfolio co-movement and concentration:
// correlation matrices at several granularities, principal component
// analysis, Herfindahl concentration, diversification ratio and risk
// contribution decomposition.
package correlation

import (
	"fmt"
	"time"
)

// Granularity selects the level at which return series are aggregated before
// the correlation matrix is built.
type Granularity string

const (
	GranularityPosition   Granularity = "POSITION"
	GranularityAssetClass Granularity = "ASSET_CLASS"
	GranularitySector     Granularity = "SECTOR"
	GranularityGeography  Granularity = "GEOGRAPHY"
)

// AllGranularities is the default set when a request names none.
func AllGranularities() []Granularity {
	return []Granularity{GranularityPosition, GranularityAssetClass, GranularitySector, GranularityGeography}
}

// Request parameterizes one correlation analysis.
type Request struct {
	PortfolioID   string        `json:"portfolio_id"`
	AsOf          time.Time     `json:"as_of"`
	LookbackDays  int           `json:"lookback_days"`
	Granularities []Granularity `json:"granularities,omitempty"`
}

// Validate checks the request before any data is fetched.
func (r *Request) Validate() error {
	if r.PortfolioID == "" {
		return fmt.Errorf("portfolio ID is required")
	}
	if r.LookbackDays < 2 {
		return fmt.Errorf("lookback must cover at least 2 observations, got %d", r.LookbackDays)
	}
	for _, g := range r.Granularities {
		switch g {
		case GranularityPosition, GranularityAssetClass, GranularitySector, GranularityGeography:
		default:
			return fmt.Errorf("unknown granularity %q", g)
		}
	}
	return nil
}

// MatrixResult is one correlation matrix with its labels and summary stats.
type MatrixResult struct {
	Granularity    Granularity `json:"granularity"`
	Labels         []string    `json:"labels"`
	Matrix         [][]float64 `json:"matrix"`
	AvgCorrelation float64     `json:"avg_correlation"` // off-diagonal mean
	MaxCorrelation float64     `json:"max_correlation"` // off-diagonal max
}

// Component is one principal component of the position-level correlation
// matrix.
type Component struct {
	Index              int       `json:"index"`
	Eigenvalue         float64   `json:"eigenvalue"`
	VarianceExplained  float64   `json:"variance_explained"`
	CumulativeVariance float64   `json:"cumulative_variance"`
	Loadings           []float64 `json:"loadings"`
}

// PositionWeight is a concentration ranking row.
type PositionWeight struct {
	PositionID string  `json:"position_id"`
	Symbol     string  `json:"symbol"`
	Weight     float64 `json:"weight"`
}

// CategoryWeight is an aggregate-weight ranking row for one category value.
type CategoryWeight struct {
	Category string  `json:"category"`
	Weight   float64 `json:"weight"`
}

// ConcentrationMetrics summarizes how lumpy the portfolio is, at the
// position level and rolled up by asset class, sector and geography.
type ConcentrationMetrics struct {
	Herfindahl         float64          `json:"herfindahl"`          // sum of squared weights
	EffectivePositions float64          `json:"effective_positions"` // 1 / Herfindahl
	Top5Weight         float64          `json:"top_5_weight"`
	Top10Weight        float64          `json:"top_10_weight"`
	Rankings           []PositionWeight `json:"rankings"` // descending weight

	AssetClassRankings []CategoryWeight `json:"asset_class_rankings"`
	SectorRankings     []CategoryWeight `json:"sector_rankings"`
	GeographyRankings  []CategoryWeight `json:"geography_rankings"`
}

// RiskContribution decomposes portfolio variance by position. Contribution
// is the absolute variance contribution w_i * (cov * w)_i; ContributionPct
// is its share of total portfolio variance.
type RiskContribution struct {
	PositionID      string  `json:"position_id"`
	Symbol          string  `json:"symbol"`
	Weight          float64 `json:"weight"`
	Contribution    float64 `json:"contribution"`
	ContributionPct float64 `json:"contribution_pct"` // sums to 100
}

// Result is the full output of one correlation analysis.
type Result struct {
	RunID       string    `json:"run_id"`
	PortfolioID string    `json:"portfolio_id"`
	RunAt       time.Time `json:"run_at"`

	Matrices []MatrixResult `json:"matrices"`

	PrincipalComponents []Component `json:"principal_components"`

	Concentration ConcentrationMetrics `json:"concentration"`

	// DiversificationRatio is weighted-average volatility over portfolio
	// volatility; above 1 means diversification is working.
	DiversificationRatio float64 `json:"diversification_ratio"`

	RiskContributions []RiskContribution `json:"risk_contributions"`
}

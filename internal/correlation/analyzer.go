package correlation

import (
	"fmt"
	"math"
	"sort"

	"github.com/finbrook/riskengine/internal/linalg"
	"github.com/finbrook/riskengine/internal/marketdata"
)

// buildMatrix computes the pairwise Pearson matrix for the given aligned
// return series.
func buildMatrix(series [][]float64) ([][]float64, error) {
	n := len(series)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1.0
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			rho, err := linalg.Pearson(series[i], series[j])
			if err != nil {
				return nil, fmt.Errorf("correlating series %d and %d: %w", i, j, err)
			}
			matrix[i][j] = rho
			matrix[j][i] = rho
		}
	}
	return matrix, nil
}

// summarize computes off-diagonal mean and max. A single-entry matrix has no
// pairs and reports zeros.
func summarize(matrix [][]float64) (avg, max float64) {
	n := len(matrix)
	if n < 2 {
		return 0, 0
	}
	var sum float64
	max = math.Inf(-1)
	count := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += matrix[i][j]
			if matrix[i][j] > max {
				max = matrix[i][j]
			}
			count++
		}
	}
	return sum / float64(count), max
}

// groupKey selects the aggregation label for a position at a granularity.
func groupKey(pos marketdata.Position, g Granularity) string {
	switch g {
	case GranularityAssetClass:
		return string(pos.AssetClass)
	case GranularitySector:
		return pos.Sector
	case GranularityGeography:
		return pos.Geography
	default:
		return pos.Symbol
	}
}

// aggregateSeries collapses position return series into value-weighted group
// series. Labels come back sorted for deterministic output.
func aggregateSeries(positions []marketdata.Position, series [][]float64, g Granularity) ([]string, [][]float64) {
	if g == GranularityPosition {
		labels := make([]string, len(positions))
		for i, pos := range positions {
			labels[i] = pos.Symbol
		}
		return labels, series
	}

	groupValue := make(map[string]float64)
	for _, pos := range positions {
		groupValue[groupKey(pos, g)] += pos.MarketValue
	}

	labels := make([]string, 0, len(groupValue))
	for label := range groupValue {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	length := len(series[0])
	grouped := make([][]float64, len(labels))
	index := make(map[string]int, len(labels))
	for i, label := range labels {
		grouped[i] = make([]float64, length)
		index[label] = i
	}

	for p, pos := range positions {
		label := groupKey(pos, g)
		w := pos.MarketValue / groupValue[label]
		row := grouped[index[label]]
		for t, r := range series[p] {
			row[t] += w * r
		}
	}
	return labels, grouped
}

// principalComponents runs PCA on the position-level correlation matrix. The
// trace of a correlation matrix equals its dimension, so variance explained
// is eigenvalue over n.
func principalComponents(matrix [][]float64, k int) ([]Component, error) {
	m, err := linalg.NewMatrix(matrix)
	if err != nil {
		return nil, err
	}
	n := m.Rows()
	if k <= 0 || k > n {
		k = n
	}

	pairs, err := m.Eigen(k, linalg.DefaultEigenTolerance, linalg.DefaultEigenMaxIter)
	if err != nil {
		return nil, fmt.Errorf("eigendecomposition failed: %w", err)
	}

	components := make([]Component, len(pairs))
	cumulative := 0.0
	for i, pair := range pairs {
		explained := pair.Value / float64(n)
		cumulative += explained
		components[i] = Component{
			Index:              i + 1,
			Eigenvalue:         pair.Value,
			VarianceExplained:  explained,
			CumulativeVariance: cumulative,
			Loadings:           pair.Vector,
		}
	}
	return components, nil
}

// concentration computes Herfindahl-based metrics from position weights.
func concentration(positions []marketdata.Position, weights []float64) ConcentrationMetrics {
	rankings := make([]PositionWeight, len(positions))
	for i, pos := range positions {
		rankings[i] = PositionWeight{PositionID: pos.PositionID, Symbol: pos.Symbol, Weight: weights[i]}
	}
	sort.Slice(rankings, func(i, j int) bool {
		if rankings[i].Weight != rankings[j].Weight {
			return rankings[i].Weight > rankings[j].Weight
		}
		return rankings[i].Symbol < rankings[j].Symbol
	})

	var herfindahl float64
	for _, w := range weights {
		herfindahl += w * w
	}

	topN := func(n int) float64 {
		var sum float64
		for i := 0; i < n && i < len(rankings); i++ {
			sum += rankings[i].Weight
		}
		return sum
	}

	m := ConcentrationMetrics{
		Herfindahl:         herfindahl,
		Top5Weight:         topN(5),
		Top10Weight:        topN(10),
		Rankings:           rankings,
		AssetClassRankings: categoryRankings(positions, weights, GranularityAssetClass),
		SectorRankings:     categoryRankings(positions, weights, GranularitySector),
		GeographyRankings:  categoryRankings(positions, weights, GranularityGeography),
	}
	if herfindahl > 0 {
		m.EffectivePositions = 1 / herfindahl
	}
	return m
}

// categoryRankings rolls position weights up by one category and sorts the
// aggregates heaviest first.
func categoryRankings(positions []marketdata.Position, weights []float64, g Granularity) []CategoryWeight {
	grouped := make(map[string]float64)
	for i, pos := range positions {
		grouped[groupKey(pos, g)] += weights[i]
	}

	out := make([]CategoryWeight, 0, len(grouped))
	for category, weight := range grouped {
		out = append(out, CategoryWeight{Category: category, Weight: weight})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// covarianceFromSeries builds the sample covariance matrix via per-series
// sample volatilities and the correlation matrix.
func covarianceFromSeries(series [][]float64, corr [][]float64) ([]float64, [][]float64) {
	n := len(series)
	vols := make([]float64, n)
	for i, s := range series {
		vols[i] = linalg.SampleStdDev(s)
	}
	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			cov[i][j] = corr[i][j] * vols[i] * vols[j]
		}
	}
	return vols, cov
}

// portfolioRisk returns portfolio variance and the marginal vector sigma*w.
func portfolioRisk(weights []float64, cov [][]float64) (variance float64, marginal []float64) {
	n := len(weights)
	marginal = make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			marginal[i] += cov[i][j] * weights[j]
		}
		variance += weights[i] * marginal[i]
	}
	return variance, marginal
}

// riskContributions decomposes portfolio variance position by position. The
// shares are normalized so they always total 100.
func riskContributions(positions []marketdata.Position, weights []float64, cov [][]float64) ([]RiskContribution, error) {
	variance, marginal := portfolioRisk(weights, cov)
	if variance <= 0 {
		return nil, fmt.Errorf("portfolio variance must be positive, got %g", variance)
	}

	out := make([]RiskContribution, len(positions))
	for i, pos := range positions {
		contribution := weights[i] * marginal[i]
		out[i] = RiskContribution{
			PositionID:      pos.PositionID,
			Symbol:          pos.Symbol,
			Weight:          weights[i],
			Contribution:    contribution,
			ContributionPct: 100 * contribution / variance,
		}
	}
	return out, nil
}

// diversificationRatio is the weighted-average standalone volatility over the
// portfolio volatility. Perfectly correlated portfolios score 1; anything
// above 1 is diversification benefit.
func diversificationRatio(weights, vols []float64, cov [][]float64) (float64, error) {
	variance, _ := portfolioRisk(weights, cov)
	if variance <= 0 {
		return 0, fmt.Errorf("portfolio variance must be positive, got %g", variance)
	}
	var weightedVol float64
	for i, w := range weights {
		weightedVol += w * vols[i]
	}
	return weightedVol / math.Sqrt(variance), nil
}

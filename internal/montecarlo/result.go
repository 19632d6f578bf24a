package montecarlo

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/finbrook/riskengine/internal/linalg"
)

// Convergence test parameters: 10 batches, t-value for 95% CI at 9 degrees of
// freedom, convergence when the batch-mean standard error is below 1% of the
// overall mean.
const (
	convergenceBatches   = 10
	convergenceTValue95  = 2.262
	convergenceTolerance = 0.01
)

// Z-scores for the parametric VaR cross-check.
const (
	z95 = 1.645
	z99 = 2.326
)

var percentileLadder = []float64{1, 5, 10, 25, 50, 75, 90, 95, 99}

// BuildResult aggregates trial-order returns into the full result. The input
// slice is not modified; sorting happens on a copy because the convergence
// test needs the original simulation order.
func BuildResult(req *SimulationRequest, trialReturns []float64) *SimulationResult {
	steps, _ := req.TimeHorizon.Steps()

	sorted := make([]float64, len(trialReturns))
	copy(sorted, trialReturns)
	sort.Float64s(sorted)

	mean := linalg.Mean(sorted)
	stdev := linalg.StdDev(sorted)

	result := &SimulationResult{
		RunID:             uuid.New().String(),
		PortfolioID:       req.PortfolioID,
		RunAt:             time.Now().UTC(),
		Trials:            len(trialReturns),
		TimeHorizon:       req.TimeHorizon,
		TimeSteps:         steps,
		ExpectedReturn:    mean,
		StandardDeviation: stdev,
		Skewness:          linalg.Skewness(sorted),
		ExcessKurtosis:    linalg.ExcessKurtosis(sorted),
	}

	result.VaR95, result.CVaR95 = tailMetrics(sorted, 0.95)
	result.VaR99, result.CVaR99 = tailMetrics(sorted, 0.99)
	result.VaRAtConfidence, result.ExpectedShortfall = tailMetrics(sorted, req.ConfidenceLevel)

	result.ParametricVaR95 = math.Max(0, z95*stdev-mean)
	result.ParametricVaR99 = math.Max(0, z99*stdev-mean)

	result.Percentiles = make([]PercentileEntry, len(percentileLadder))
	for i, p := range percentileLadder {
		result.Percentiles[i] = PercentileEntry{
			Percentile: p,
			Value:      linalg.Percentile(sorted, p),
		}
	}

	result.MaxDrawdown = math.Abs(sorted[0])
	result.TimeToRecoveryDays = timeToRecovery(result.MaxDrawdown, mean, steps)

	var losses int
	for _, r := range sorted {
		if r < 0 {
			losses++
		}
	}
	result.ProbabilityOfLoss = float64(losses) / float64(len(sorted))

	result.Convergence = convergence(trialReturns, mean)

	return result
}

// tailMetrics returns the VaR magnitude at the empirical (1-c) quantile and
// the CVaR as the mean magnitude of results at or below the VaR index.
func tailMetrics(sorted []float64, confidence float64) (varValue, cvar float64) {
	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	varValue = math.Abs(sorted[idx])

	var sum float64
	for i := 0; i <= idx; i++ {
		sum += sorted[i]
	}
	cvar = math.Abs(sum / float64(idx+1))
	return varValue, cvar
}

// timeToRecovery estimates trading days to earn back the worst loss at the
// mean per-step return. Non-positive drift never recovers and reports 0.
func timeToRecovery(maxDrawdown, mean float64, steps int) int {
	if mean <= 0 || maxDrawdown == 0 {
		return 0
	}
	perStep := mean / float64(steps)
	return int(math.Ceil(maxDrawdown / perStep))
}

// convergence runs the batch-means test over trial-order results.
func convergence(trialReturns []float64, overallMean float64) ConvergenceDiagnostics {
	batchSize := len(trialReturns) / convergenceBatches
	if batchSize == 0 {
		return ConvergenceDiagnostics{BatchCount: 0}
	}

	batchMeans := make([]float64, convergenceBatches)
	for b := 0; b < convergenceBatches; b++ {
		batchMeans[b] = linalg.Mean(trialReturns[b*batchSize : (b+1)*batchSize])
	}

	standardError := linalg.SampleStdDev(batchMeans) / math.Sqrt(convergenceBatches)
	halfWidth := convergenceTValue95 * standardError

	return ConvergenceDiagnostics{
		BatchCount:       convergenceBatches,
		StandardError:    standardError,
		HasConverged:     standardError < math.Abs(overallMean)*convergenceTolerance,
		ConfidenceLow95:  overallMean - halfWidth,
		ConfidenceHigh95: overallMean + halfWidth,
	}
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Analysis kinds (bounded set).
const (
	AnalysisMonteCarlo  = "monte_carlo"
	AnalysisLiquidity   = "liquidity"
	AnalysisStressTest  = "stress_test"
	AnalysisCorrelation = "correlation"
	AnalysisLimits      = "limits"
)

// Run result labels (bounded set).
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	analysisRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskengine_analysis_runs_total",
		Help: "Completed analysis runs by kind and result",
	}, []string{"analysis", "result"})

	analysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskengine_analysis_duration_seconds",
		Help:    "Analysis run duration by kind",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"analysis"})

	simulationTrials = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riskengine_simulation_trials_total",
		Help: "Monte Carlo trials executed",
	})

	limitBreaches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskengine_limit_breaches_total",
		Help: "Limit breaches detected by severity",
	}, []string{"severity"})
)

// ObserveAnalysis records one completed run.
func ObserveAnalysis(analysis string, duration time.Duration, success bool) {
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}
	analysisRuns.WithLabelValues(analysis, result).Inc()
	analysisDuration.WithLabelValues(analysis).Observe(duration.Seconds())
}

// AddSimulationTrials records executed Monte Carlo trials.
func AddSimulationTrials(n int) {
	simulationTrials.Add(float64(n))
}

// CountLimitBreach records a detected breach by severity.
func CountLimitBreach(severity string) {
	limitBreaches.WithLabelValues(severity).Inc()
}

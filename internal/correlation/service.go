package correlation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/finbrook/riskengine/internal/events"
	"github.com/finbrook/riskengine/internal/marketdata"
	"github.com/finbrook/riskengine/internal/metrics"
)

// maxPrincipalComponents caps PCA output for wide portfolios.
const maxPrincipalComponents = 10

// Service runs correlation analyses end to end: fetch positions and return
// history, build matrices, decompose risk, publish.
type Service struct {
	provider  marketdata.Provider
	publisher events.Publisher
	tenantID  string
}

// NewService creates a correlation analysis service.
func NewService(provider marketdata.Provider, publisher events.Publisher, tenantID string) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{provider: provider, publisher: publisher, tenantID: tenantID}
}

// Analyze executes one correlation analysis for a portfolio.
func (s *Service) Analyze(ctx context.Context, req *Request) (*Result, error) {
	started := time.Now()
	result, err := s.analyze(ctx, req)
	metrics.ObserveAnalysis(metrics.AnalysisCorrelation, time.Since(started), err == nil)
	return result, err
}

func (s *Service) analyze(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid correlation request: %w", err)
	}

	positions, err := s.provider.GetPortfolio(ctx, req.PortfolioID, req.AsOf)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio %s: %w", req.PortfolioID, err)
	}

	series, err := s.provider.GetReturnSeries(ctx, positions, req.LookbackDays)
	if err != nil {
		return nil, fmt.Errorf("failed to load return series: %w", err)
	}
	if len(series) != len(positions) {
		return nil, fmt.Errorf("provider returned %d series for %d positions", len(series), len(positions))
	}

	weights, err := marketdata.Weights(positions)
	if err != nil {
		return nil, err
	}

	granularities := req.Granularities
	if len(granularities) == 0 {
		granularities = AllGranularities()
	}

	log.Info().
		Str("portfolio_id", req.PortfolioID).
		Int("positions", len(positions)).
		Int("lookback_days", req.LookbackDays).
		Int("granularities", len(granularities)).
		Msg("Starting correlation analysis")

	result := &Result{
		RunID:       uuid.NewString(),
		PortfolioID: req.PortfolioID,
		RunAt:       time.Now().UTC(),
	}

	var positionMatrix [][]float64
	for _, g := range granularities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		labels, grouped := aggregateSeries(positions, series, g)
		matrix, err := buildMatrix(grouped)
		if err != nil {
			return nil, fmt.Errorf("building %s matrix: %w", g, err)
		}
		avg, max := summarize(matrix)
		result.Matrices = append(result.Matrices, MatrixResult{
			Granularity:    g,
			Labels:         labels,
			Matrix:         matrix,
			AvgCorrelation: avg,
			MaxCorrelation: max,
		})
		if g == GranularityPosition {
			positionMatrix = matrix
		}
	}

	// PCA and risk decomposition always work on position-level co-movement,
	// whatever matrices the caller asked to see.
	if positionMatrix == nil {
		positionMatrix, err = buildMatrix(series)
		if err != nil {
			return nil, fmt.Errorf("building position matrix: %w", err)
		}
	}

	result.PrincipalComponents, err = principalComponents(positionMatrix, maxPrincipalComponents)
	if err != nil {
		return nil, err
	}

	result.Concentration = concentration(positions, weights)

	vols, cov := covarianceFromSeries(series, positionMatrix)
	result.RiskContributions, err = riskContributions(positions, weights, cov)
	if err != nil {
		return nil, err
	}
	result.DiversificationRatio, err = diversificationRatio(weights, vols, cov)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("run_id", result.RunID).
		Float64("herfindahl", result.Concentration.Herfindahl).
		Float64("effective_positions", result.Concentration.EffectivePositions).
		Float64("diversification_ratio", result.DiversificationRatio).
		Msg("Correlation analysis completed")

	event, err := events.NewEvent(events.TypeCorrelationAnalyzed, req.PortfolioID, s.tenantID, result)
	if err != nil {
		return nil, err
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Error().Err(err).Str("run_id", result.RunID).Msg("Failed to publish correlation event")
	}

	return result, nil
}

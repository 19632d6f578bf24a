package liquidity

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

// Service assesses portfolio liquidity risk end to end: fetch positions and
// trading profiles, score every position, aggregate, stress, publish.
type Service struct {
	provider  marketdata.Provider
	publisher events.Publisher
	tenantID  string
	scenarios []StressScenario
}

// NewService creates a liquidity assessment service with the default stress
// scenario set.
func NewService(provider marketdata.Provider, publisher events.Publisher, tenantID string) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		provider:  provider,
		publisher: publisher,
		tenantID:  tenantID,
		scenarios: defaultStressScenarios(),
	}
}

// AssessLiquidity runs one full liquidity assessment for a portfolio.
func (s *Service) AssessLiquidity(ctx context.Context, req *AssessmentRequest) (*Assessment, error) {
	started := time.Now()
	result, err := s.assessLiquidity(ctx, req)
	metrics.ObserveAnalysis(metrics.AnalysisLiquidity, time.Since(started), err == nil)
	return result, err
}

func (s *Service) assessLiquidity(ctx context.Context, req *AssessmentRequest) (*Assessment, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid liquidity request: %w", err)
	}

	positions, err := s.provider.GetPortfolio(ctx, req.PortfolioID, req.AsOf)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio %s: %w", req.PortfolioID, err)
	}

	profiles, err := s.provider.GetLiquidityProfiles(ctx, positions)
	if err != nil {
		return nil, fmt.Errorf("failed to load liquidity profiles: %w", err)
	}
	if len(profiles) != len(positions) {
		return nil, fmt.Errorf("provider returned %d profiles for %d positions", len(profiles), len(positions))
	}

	log.Info().
		Str("portfolio_id", req.PortfolioID).
		Int("positions", len(positions)).
		Int("timeframe_days", req.LiquidationTimeframeDays).
		Str("impact_model", string(req.ImpactModel)).
		Msg("Starting liquidity assessment")

	assessed := make([]PositionLiquidity, 0, len(positions))
	for i, pos := range positions {
		pl, err := assessPosition(pos, profiles[i], req)
		if err != nil {
			return nil, err
		}
		assessed = append(assessed, pl)
	}

	result := &Assessment{
		RunID:        uuid.NewString(),
		PortfolioID:  req.PortfolioID,
		RunAt:        time.Now().UTC(),
		Positions:    assessed,
		Metrics:      aggregate(assessed),
		ByAssetClass: groupBy(assessed, func(p PositionLiquidity) string { return p.AssetClass }),
		BySector:     groupBy(assessed, func(p PositionLiquidity) string { return p.Sector }),
		BySizeBucket: groupBy(assessed, func(p PositionLiquidity) string { return sizeBucket(p.MarketValue) }),
	}

	for _, sc := range s.scenarios {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stressed, err := applyStress(positions, profiles, req, sc)
		if err != nil {
			return nil, fmt.Errorf("stress scenario %q: %w", sc.Name, err)
		}
		result.StressResults = append(result.StressResults, StressResult{
			Scenario: sc,
			Baseline: result.Metrics,
			Stressed: stressed,
		})
	}

	log.Info().
		Str("run_id", result.RunID).
		Float64("liquidity_score", result.Metrics.LiquidityScore).
		Float64("weighted_days", result.Metrics.WeightedDaysToLiquidate).
		Float64("total_cost", result.Metrics.TotalLiquidationCost).
		Msg("Liquidity assessment completed")

	event, err := events.NewEvent(events.TypeLiquidityAssessed, req.PortfolioID, s.tenantID, result)
	if err != nil {
		return nil, err
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Error().Err(err).Str("run_id", result.RunID).Msg("Failed to publish liquidity event")
	}

	return result, nil
}

package stress

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

// Service runs stress tests end to end: fetch positions and model parameters,
// reprice under every selected scenario, rank factors, publish.
type Service struct {
	provider  marketdata.Provider
	publisher events.Publisher
	tenantID  string
}

// NewService creates a stress testing service.
func NewService(provider marketdata.Provider, publisher events.Publisher, tenantID string) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{provider: provider, publisher: publisher, tenantID: tenantID}
}

// RunStressTest executes one stress test for a portfolio.
func (s *Service) RunStressTest(ctx context.Context, req *Request) (*Result, error) {
	started := time.Now()
	result, err := s.runStressTest(ctx, req)
	metrics.ObserveAnalysis(metrics.AnalysisStressTest, time.Since(started), err == nil)
	return result, err
}

func (s *Service) runStressTest(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stress test request: %w", err)
	}

	scenarios, err := selectScenarios(req)
	if err != nil {
		return nil, err
	}

	positions, err := s.provider.GetPortfolio(ctx, req.PortfolioID, req.AsOf)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio %s: %w", req.PortfolioID, err)
	}

	params, err := s.provider.GetMarketParameters(ctx, positions)
	if err != nil {
		return nil, fmt.Errorf("failed to load market parameters: %w", err)
	}
	if err := params.Rehydrate(); err != nil {
		return nil, err
	}

	weights, err := marketdata.Weights(positions)
	if err != nil {
		return nil, err
	}

	sens := make([]Sensitivities, len(positions))
	for i, pos := range positions {
		sens[i] = deriveSensitivities(pos, params.Volatilities[i])
	}

	log.Info().
		Str("portfolio_id", req.PortfolioID).
		Int("positions", len(positions)).
		Int("scenarios", len(scenarios)).
		Msg("Starting stress test")

	result := &Result{
		RunID:       uuid.NewString(),
		PortfolioID: req.PortfolioID,
		RunAt:       time.Now().UTC(),
		Scenarios:   make([]ScenarioResult, 0, len(scenarios)),
	}

	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Scenarios = append(result.Scenarios, runScenario(positions, params, weights, sens, sc))
	}

	worst, best := result.Scenarios[0], result.Scenarios[0]
	for _, sr := range result.Scenarios[1:] {
		if sr.PortfolioPnL < worst.PortfolioPnL {
			worst = sr
		}
		if sr.PortfolioPnL > best.PortfolioPnL {
			best = sr
		}
	}
	result.WorstScenarioID = worst.ScenarioID
	result.BestScenarioID = best.ScenarioID
	result.FactorRanking = rankFactors(result.Scenarios)

	log.Info().
		Str("run_id", result.RunID).
		Str("worst_scenario", result.WorstScenarioID).
		Float64("worst_pnl", worst.PortfolioPnL).
		Msg("Stress test completed")

	event, err := events.NewEvent(events.TypeStressTestCompleted, req.PortfolioID, s.tenantID, result)
	if err != nil {
		return nil, err
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Error().Err(err).Str("run_id", result.RunID).Msg("Failed to publish stress test event")
	}

	return result, nil
}

package montecarlo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/finbrook/riskengine/internal/events"
	"github.com/finbrook/riskengine/internal/marketdata"
	"github.com/finbrook/riskengine/internal/metrics"
)

// Service runs portfolio simulations end to end: fetch, simulate, aggregate,
// publish. It holds no per-run state and is safe for concurrent use.
type Service struct {
	provider  marketdata.Provider
	publisher events.Publisher
	tenantID  string
}

// NewService creates a simulation service.
func NewService(provider marketdata.Provider, publisher events.Publisher, tenantID string) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{provider: provider, publisher: publisher, tenantID: tenantID}
}

// RunSimulation executes one Monte Carlo run for a portfolio. Input data is
// fetched once up front; the computation itself performs no I/O.
func (s *Service) RunSimulation(ctx context.Context, req *SimulationRequest) (*SimulationResult, error) {
	started := time.Now()
	result, err := s.runSimulation(ctx, req)
	metrics.ObserveAnalysis(metrics.AnalysisMonteCarlo, time.Since(started), err == nil)
	return result, err
}

func (s *Service) runSimulation(ctx context.Context, req *SimulationRequest) (*SimulationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation request: %w", err)
	}

	positions, err := s.provider.GetPortfolio(ctx, req.PortfolioID, req.AsOf)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio %s: %w", req.PortfolioID, err)
	}

	params, err := s.provider.GetMarketParameters(ctx, positions)
	if err != nil {
		return nil, fmt.Errorf("failed to load market parameters: %w", err)
	}

	simulator, err := NewSimulator(positions, params)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("portfolio_id", req.PortfolioID).
		Int("positions", len(positions)).
		Int("trials", req.NumberOfSimulations).
		Str("horizon", string(req.TimeHorizon)).
		Bool("jump_risk", req.IncludeJumpRisk).
		Msg("Starting Monte Carlo simulation")

	computeStart := time.Now()
	trialReturns, err := simulator.Run(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("simulation aborted: %w", err)
	}
	metrics.AddSimulationTrials(len(trialReturns))

	result := BuildResult(req, trialReturns)

	log.Info().
		Str("run_id", result.RunID).
		Float64("expected_return", result.ExpectedReturn).
		Float64("var_95", result.VaR95).
		Bool("converged", result.Convergence.HasConverged).
		Dur("elapsed", time.Since(computeStart)).
		Msg("Monte Carlo simulation completed")

	event, err := events.NewEvent(events.TypeSimulationCompleted, req.PortfolioID, s.tenantID, result)
	if err != nil {
		return nil, err
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		// The result is complete; a sink failure is the caller's concern to
		// retry, not a reason to discard the computation.
		log.Error().Err(err).Str("run_id", result.RunID).Msg("Failed to publish simulation event")
	}

	return result, nil
}

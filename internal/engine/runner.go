// Package engine orchestrates the five analysis services over a set of
// portfolios. It owns scheduling and fan-out only; every number is computed
// by the service packages.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/finbrook/riskengine/internal/alerts"
	"github.com/finbrook/riskengine/internal/config"
	"github.com/finbrook/riskengine/internal/correlation"
	"github.com/finbrook/riskengine/internal/limits"
	"github.com/finbrook/riskengine/internal/liquidity"
	"github.com/finbrook/riskengine/internal/marketdata"
	"github.com/finbrook/riskengine/internal/montecarlo"
	"github.com/finbrook/riskengine/internal/stress"
)

// Report bundles the results of one full analysis pass over a portfolio.
type Report struct {
	PortfolioID string                       `json:"portfolio_id"`
	AsOf        time.Time                    `json:"as_of"`
	Simulation  *montecarlo.SimulationResult `json:"simulation"`
	Liquidity   *liquidity.Assessment        `json:"liquidity"`
	StressTest  *stress.Result               `json:"stress_test"`
	Correlation *correlation.Result          `json:"correlation"`
	LimitCycle  *limits.CycleResult          `json:"limit_cycle,omitempty"`
}

// Runner wires the services together and fans analysis passes out across
// portfolios.
type Runner struct {
	cfg         config.EngineConfig
	provider    marketdata.Provider
	montecarlo  *montecarlo.Service
	liquidity   *liquidity.Service
	stress      *stress.Service
	correlation *correlation.Service
	limits      *limits.Service
}

// NewRunner creates a runner over already-constructed services. The limits
// service may be nil when no limit set is configured.
func NewRunner(
	cfg config.EngineConfig,
	provider marketdata.Provider,
	mc *montecarlo.Service,
	liq *liquidity.Service,
	st *stress.Service,
	corr *correlation.Service,
	lim *limits.Service,
) *Runner {
	return &Runner{
		cfg:         cfg,
		provider:    provider,
		montecarlo:  mc,
		liquidity:   liq,
		stress:      st,
		correlation: corr,
		limits:      lim,
	}
}

// RunAll analyzes every configured portfolio, at most MaxConcurrent in
// parallel. One failing portfolio aborts the whole pass.
func (r *Runner) RunAll(ctx context.Context, asOf time.Time) ([]*Report, error) {
	if len(r.cfg.Portfolios) == 0 {
		return nil, fmt.Errorf("no portfolios configured")
	}

	reports := make([]*Report, len(r.cfg.Portfolios))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrent)

	for i, portfolioID := range r.cfg.Portfolios {
		g.Go(func() error {
			report, err := r.RunPortfolio(gctx, portfolioID, asOf)
			if err != nil {
				alerts.AlertAnalysisFailed(gctx, "full_pass", portfolioID, err)
				return fmt.Errorf("portfolio %s: %w", portfolioID, err)
			}
			mu.Lock()
			reports[i] = report
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// RunPortfolio runs all analyses for one portfolio, then feeds the measured
// numbers into the limit monitoring cycle.
func (r *Runner) RunPortfolio(ctx context.Context, portfolioID string, asOf time.Time) (*Report, error) {
	started := time.Now()
	report := &Report{PortfolioID: portfolioID, AsOf: asOf}

	var err error
	report.Simulation, err = r.montecarlo.RunSimulation(ctx, &montecarlo.SimulationRequest{
		PortfolioID:         portfolioID,
		AsOf:                asOf,
		NumberOfSimulations: r.cfg.SimulationTrials,
		TimeHorizon:         montecarlo.TimeHorizon(r.cfg.TimeHorizon),
		ConfidenceLevel:     r.cfg.ConfidenceLevel,
		IncludeJumpRisk:     r.cfg.IncludeJumpRisk,
		VolatilityModel:     montecarlo.VolatilityModel(r.cfg.VolatilityModel),
	})
	if err != nil {
		return nil, fmt.Errorf("monte carlo: %w", err)
	}

	report.Liquidity, err = r.liquidity.AssessLiquidity(ctx, &liquidity.AssessmentRequest{
		PortfolioID:              portfolioID,
		AsOf:                     asOf,
		LiquidationTimeframeDays: r.cfg.LiquidationDays,
		ImpactModel:              liquidity.MarketImpactModel(r.cfg.MarketImpactModel),
	})
	if err != nil {
		return nil, fmt.Errorf("liquidity: %w", err)
	}

	report.StressTest, err = r.stress.RunStressTest(ctx, &stress.Request{
		PortfolioID: portfolioID,
		AsOf:        asOf,
	})
	if err != nil {
		return nil, fmt.Errorf("stress test: %w", err)
	}

	report.Correlation, err = r.correlation.Analyze(ctx, &correlation.Request{
		PortfolioID:  portfolioID,
		AsOf:         asOf,
		LookbackDays: r.cfg.LookbackDays,
	})
	if err != nil {
		return nil, fmt.Errorf("correlation: %w", err)
	}

	if r.limits != nil && len(r.limits.LimitsFor(portfolioID, asOf)) > 0 {
		measurements, err := r.measure(ctx, portfolioID, asOf, report)
		if err != nil {
			return nil, fmt.Errorf("limit measurements: %w", err)
		}
		report.LimitCycle, err = r.limits.EvaluateCycle(ctx, portfolioID, measurements)
		if err != nil {
			return nil, fmt.Errorf("limit cycle: %w", err)
		}
	}

	log.Info().
		Str("portfolio_id", portfolioID).
		Dur("elapsed", time.Since(started)).
		Msg("Portfolio analysis pass completed")

	return report, nil
}

// measure translates analysis results into current values for each
// configured limit.
func (r *Runner) measure(ctx context.Context, portfolioID string, asOf time.Time, report *Report) (map[string]float64, error) {
	positions, err := r.provider.GetPortfolio(ctx, portfolioID, asOf)
	if err != nil {
		return nil, err
	}
	totalValue := marketdata.TotalMarketValue(positions)

	measurements := make(map[string]float64)
	for _, limit := range r.limits.LimitsFor(portfolioID, asOf) {
		switch limit.Type {
		case limits.LimitTypeVaR:
			// Simulated VaR as a dollar amount against a dollar limit.
			measurements[limit.ID] = report.Simulation.VaR95 * totalValue
		case limits.LimitTypeConcentration:
			rankings := report.Correlation.Concentration.Rankings
			if len(rankings) > 0 {
				measurements[limit.ID] = rankings[0].Weight
			}
		case limits.LimitTypeCreditExposure:
			var credit float64
			for _, pos := range positions {
				if pos.AssetClass == marketdata.AssetClassFixedIncome {
					credit += pos.MarketValue
				}
			}
			measurements[limit.ID] = credit
		case limits.LimitTypeLiquidityPct:
			// Share of the book not liquidatable within a day.
			measurements[limit.ID] = 1 - report.Liquidity.Metrics.ImmediatelyLiquidablePct
		case limits.LimitTypeLeverage:
			var gross, net float64
			for _, pos := range positions {
				net += pos.MarketValue
				if pos.MarketValue < 0 {
					gross -= pos.MarketValue
				} else {
					gross += pos.MarketValue
				}
			}
			if net != 0 {
				measurements[limit.ID] = gross / net
			}
		}
	}
	return measurements, nil
}

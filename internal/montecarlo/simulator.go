package montecarlo

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/finbrook/riskengine/internal/linalg"
	"github.com/finbrook/riskengine/internal/marketdata"
)

const (
	tradingDaysPerYear = 252.0
	dt                 = 1.0 / tradingDaysPerYear

	// Trials per cancellation check inside a worker.
	trialBatchSize = 1000

	// RiskMetrics decay factor for the EWMA volatility model.
	ewmaLambda = 0.94

	// Jump size distribution defaults: down-biased mean, own volatility.
	DefaultJumpMean = -0.02
	DefaultJumpVol  = 0.05

	// Offset between per-worker seed streams (64-bit golden ratio).
	seedStride uint64 = 0x9E3779B97F4A7C15
)

// Simulator holds the per-run immutable inputs. Run may be called by multiple
// goroutines; each call allocates its own trial state.
type Simulator struct {
	positions []marketdata.Position
	params    *marketdata.MarketParameters
	chol      *linalg.Matrix
	shares    []float64
	initial   float64

	// Jump size distribution; zero values fall back to defaults.
	JumpMean float64
	JumpVol  float64

	// Workers overrides the worker count (default GOMAXPROCS).
	Workers int
}

// NewSimulator validates inputs and precomputes the Cholesky factor and share
// counts. Positions with non-positive prices or values are rejected.
func NewSimulator(positions []marketdata.Position, params *marketdata.MarketParameters) (*Simulator, error) {
	if len(positions) == 0 {
		return nil, marketdata.ErrEmptyPortfolio
	}
	if len(params.ExpectedReturns) != len(positions) {
		return nil, fmt.Errorf("market parameters cover %d assets, portfolio has %d positions",
			len(params.ExpectedReturns), len(positions))
	}

	shares := make([]float64, len(positions))
	var initial float64
	for i, pos := range positions {
		if pos.CurrentPrice <= 0 {
			return nil, fmt.Errorf("position %s has non-positive price %g", pos.PositionID, pos.CurrentPrice)
		}
		if pos.MarketValue <= 0 {
			return nil, fmt.Errorf("position %s has non-positive market value %g", pos.PositionID, pos.MarketValue)
		}
		shares[i] = pos.MarketValue / pos.CurrentPrice
		initial += pos.MarketValue
	}

	chol, err := params.Correlations.Cholesky()
	if err != nil {
		return nil, fmt.Errorf("correlation matrix unusable for simulation: %w", err)
	}

	return &Simulator{
		positions: positions,
		params:    params,
		chol:      chol,
		shares:    shares,
		initial:   initial,
		JumpMean:  DefaultJumpMean,
		JumpVol:   DefaultJumpVol,
	}, nil
}

// Run executes the trial loop and returns per-trial portfolio returns in
// trial order (the order matters for the batch-means convergence test).
// Trials are spread across workers in contiguous chunks, each with an
// independent seeded stream, so a fixed seed reproduces results regardless of
// scheduling.
func (s *Simulator) Run(ctx context.Context, req *SimulationRequest) ([]float64, error) {
	steps, err := req.TimeHorizon.Steps()
	if err != nil {
		return nil, err
	}

	trials := req.NumberOfSimulations
	results := make([]float64, trials)

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > trials {
		workers = 1
	}

	chunk := (trials + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > trials {
			end = trials
		}
		if start >= end {
			break
		}

		seed := req.RandomSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed + int64(uint64(w)*seedStride)))

		g.Go(func() error {
			return s.runChunk(ctx, rng, req, steps, results[start:end])
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runChunk simulates one worker's share of trials, checking for cancellation
// between batches.
func (s *Simulator) runChunk(ctx context.Context, rng *rand.Rand, req *SimulationRequest, steps int, out []float64) error {
	n := len(s.positions)
	prices := make([]float64, n)
	variances := make([]float64, n)
	z := make([]float64, n)
	shocks := make([]float64, n)

	useEWMA := req.VolatilityModel == VolatilityModelEWMA
	jumpProb := s.params.JumpIntensity * dt

	for t := range out {
		if t%trialBatchSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		for i, pos := range s.positions {
			prices[i] = pos.CurrentPrice
			variances[i] = s.params.Volatilities[i] * s.params.Volatilities[i]
		}

		for step := 0; step < steps; step++ {
			for i := range z {
				z[i] = rng.NormFloat64()
			}
			s.correlate(z, shocks)

			for i := range prices {
				sigma := math.Sqrt(variances[i])
				drift := s.params.ExpectedReturns[i] * dt
				diffusion := sigma * math.Sqrt(dt) * shocks[i]

				var jump float64
				if req.IncludeJumpRisk && rng.Float64() < jumpProb {
					jump = s.JumpMean + s.JumpVol*rng.NormFloat64()
				}

				stepReturn := drift - 0.5*variances[i]*dt + diffusion + jump
				prices[i] *= math.Exp(stepReturn)

				if useEWMA {
					// Annualize the realized step return into the variance
					// update: r^2 / dt.
					realized := stepReturn * stepReturn * tradingDaysPerYear
					variances[i] = ewmaLambda*variances[i] + (1-ewmaLambda)*realized
				}
			}
		}

		var final float64
		for i := range prices {
			final += s.shares[i] * prices[i]
		}
		out[t] = (final - s.initial) / s.initial
	}

	return nil
}

// correlate computes shocks = L * z without allocating.
func (s *Simulator) correlate(z, shocks []float64) {
	n := len(z)
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j <= i; j++ {
			sum += s.chol.At(i, j) * z[j]
		}
		shocks[i] = sum
	}
}

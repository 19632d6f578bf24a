package marketdata

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Circuit breaker settings for the upstream data store.
const (
	providerMinRequests     = 10
	providerFailureRatio    = 0.6
	providerOpenTimeout     = 15 * time.Second
	providerHalfOpenMaxReqs = 5
	providerCountInterval   = 10 * time.Second
)

// ResilientProvider wraps a Provider with a circuit breaker and a rate
// limiter so a degraded data store fails fast instead of queueing analyses.
type ResilientProvider struct {
	upstream Provider
	breaker  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
}

// NewResilientProvider wraps upstream. ratePerSecond <= 0 disables limiting.
func NewResilientProvider(upstream Provider, ratePerSecond float64) *ResilientProvider {
	settings := gobreaker.Settings{
		Name:        "marketdata",
		MaxRequests: providerHalfOpenMaxReqs,
		Interval:    providerCountInterval,
		Timeout:     providerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= providerMinRequests && failureRatio >= providerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Market data circuit breaker state changed")
		},
	}

	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), int(ratePerSecond)+1)
	}

	return &ResilientProvider{
		upstream: upstream,
		breaker:  gobreaker.NewCircuitBreaker(settings),
		limiter:  limiter,
	}
}

func (r *ResilientProvider) execute(ctx context.Context, op func() (interface{}, error)) (interface{}, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return r.breaker.Execute(op)
}

// GetPortfolio delegates through the breaker.
func (r *ResilientProvider) GetPortfolio(ctx context.Context, portfolioID string, asOf time.Time) ([]Position, error) {
	result, err := r.execute(ctx, func() (interface{}, error) {
		return r.upstream.GetPortfolio(ctx, portfolioID, asOf)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Position), nil
}

// GetMarketParameters delegates through the breaker.
func (r *ResilientProvider) GetMarketParameters(ctx context.Context, positions []Position) (*MarketParameters, error) {
	result, err := r.execute(ctx, func() (interface{}, error) {
		return r.upstream.GetMarketParameters(ctx, positions)
	})
	if err != nil {
		return nil, err
	}
	return result.(*MarketParameters), nil
}

// GetReturnSeries delegates through the breaker.
func (r *ResilientProvider) GetReturnSeries(ctx context.Context, positions []Position, lookbackDays int) ([][]float64, error) {
	result, err := r.execute(ctx, func() (interface{}, error) {
		return r.upstream.GetReturnSeries(ctx, positions, lookbackDays)
	})
	if err != nil {
		return nil, err
	}
	return result.([][]float64), nil
}

// GetLiquidityProfiles delegates through the breaker.
func (r *ResilientProvider) GetLiquidityProfiles(ctx context.Context, positions []Position) ([]LiquidityProfile, error) {
	result, err := r.execute(ctx, func() (interface{}, error) {
		return r.upstream.GetLiquidityProfiles(ctx, positions)
	})
	if err != nil {
		return nil, err
	}
	return result.([]LiquidityProfile), nil
}

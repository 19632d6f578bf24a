package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyProvider struct {
	StaticProvider
	fail bool
}

var errUpstreamDown = errors.New("data store unavailable")

func (f *flakyProvider) GetPortfolio(ctx context.Context, portfolioID string, asOf time.Time) ([]Position, error) {
	if f.fail {
		return nil, errUpstreamDown
	}
	return f.StaticProvider.GetPortfolio(ctx, portfolioID, asOf)
}

func TestResilientProviderPassthrough(t *testing.T) {
	upstream := &flakyProvider{StaticProvider: StaticProvider{
		PortfolioID: "PORT-1",
		Positions:   []Position{{PositionID: "POS-1", MarketValue: 100}},
	}}
	provider := NewResilientProvider(upstream, 0)

	positions, err := provider.GetPortfolio(context.Background(), "PORT-1", time.Now())
	require.NoError(t, err)
	assert.Len(t, positions, 1)
}

func TestResilientProviderTripsOnRepeatedFailures(t *testing.T) {
	upstream := &flakyProvider{fail: true}
	provider := NewResilientProvider(upstream, 0)
	ctx := context.Background()

	var lastErr error
	for i := 0; i < providerMinRequests+2; i++ {
		_, lastErr = provider.GetPortfolio(ctx, "PORT-1", time.Now())
		require.Error(t, lastErr)
	}

	assert.ErrorIs(t, lastErr, gobreaker.ErrOpenState)
}

func TestResilientProviderRateLimiterHonorsContext(t *testing.T) {
	upstream := &flakyProvider{StaticProvider: StaticProvider{
		PortfolioID: "PORT-1",
		Positions:   []Position{{PositionID: "POS-1", MarketValue: 100}},
	}}
	// 1 req/s with burst 2: the third immediate call has to wait, and a
	// cancelled context aborts the wait.
	provider := NewResilientProvider(upstream, 1)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := provider.GetPortfolio(ctx, "PORT-1", time.Now())
	require.NoError(t, err)
	_, err = provider.GetPortfolio(ctx, "PORT-1", time.Now())
	require.NoError(t, err)

	cancel()
	_, err = provider.GetPortfolio(ctx, "PORT-1", time.Now())
	assert.Error(t, err)
}

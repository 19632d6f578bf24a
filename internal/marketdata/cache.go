package marketdata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// cacheOpTimeout bounds cache round-trips so a slow Redis never delays an
// analysis; a timeout is treated as a miss.
const cacheOpTimeout = 500 * time.Millisecond

// CachedProvider is a read-through Redis cache in front of another Provider.
// Market parameters and return series are cached; position snapshots and
// liquidity profiles always go to the upstream provider.
type CachedProvider struct {
	upstream Provider
	client   *redis.Client
	ttl      time.Duration
}

// NewCachedProvider wraps upstream with a Redis cache. A nil client returns
// the upstream provider unchanged, making the cache optional.
func NewCachedProvider(upstream Provider, client *redis.Client, ttl time.Duration) Provider {
	if client == nil {
		return upstream
	}
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &CachedProvider{upstream: upstream, client: client, ttl: ttl}
}

// GetPortfolio delegates to the upstream provider; snapshots are always fresh.
func (c *CachedProvider) GetPortfolio(ctx context.Context, portfolioID string, asOf time.Time) ([]Position, error) {
	return c.upstream.GetPortfolio(ctx, portfolioID, asOf)
}

// GetMarketParameters returns cached parameters when present, otherwise loads
// from upstream and stores the result.
func (c *CachedProvider) GetMarketParameters(ctx context.Context, positions []Position) (*MarketParameters, error) {
	key := c.buildKey("params", positions, 0)

	if cached, ok := c.get(ctx, key); ok {
		var params MarketParameters
		if err := json.Unmarshal(cached, &params); err == nil {
			if err := params.Rehydrate(); err == nil {
				log.Debug().Str("key", key).Msg("Market parameters cache hit")
				return &params, nil
			}
		}
		log.Warn().Str("key", key).Msg("Failed to decode cached market parameters")
	}

	params, err := c.upstream.GetMarketParameters(ctx, positions)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, params)
	return params, nil
}

// GetReturnSeries returns cached series when present, otherwise loads from
// upstream and stores the result.
func (c *CachedProvider) GetReturnSeries(ctx context.Context, positions []Position, lookbackDays int) ([][]float64, error) {
	key := c.buildKey("returns", positions, lookbackDays)

	if cached, ok := c.get(ctx, key); ok {
		var series [][]float64
		if err := json.Unmarshal(cached, &series); err == nil && len(series) == len(positions) {
			log.Debug().Str("key", key).Msg("Return series cache hit")
			return series, nil
		}
		log.Warn().Str("key", key).Msg("Failed to decode cached return series")
	}

	series, err := c.upstream.GetReturnSeries(ctx, positions, lookbackDays)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, series)
	return series, nil
}

// GetLiquidityProfiles delegates to the upstream provider.
func (c *CachedProvider) GetLiquidityProfiles(ctx context.Context, positions []Position) ([]LiquidityProfile, error) {
	return c.upstream.GetLiquidityProfiles(ctx, positions)
}

func (c *CachedProvider) get(ctx context.Context, key string) ([]byte, bool) {
	cacheCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	cached, err := c.client.Get(cacheCtx, key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("key", key).Msg("Redis get error - treating as cache miss")
		}
		return nil, false
	}
	return []byte(cached), true
}

func (c *CachedProvider) set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to marshal value for cache")
		return
	}

	cacheCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	if err := c.client.Set(cacheCtx, key, data, c.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Redis set error - skipping cache write")
	}
}

// buildKey derives a stable key from the position list so any change in
// portfolio composition misses the cache.
func (c *CachedProvider) buildKey(kind string, positions []Position, lookbackDays int) string {
	ids := make([]string, len(positions))
	for i, p := range positions {
		ids[i] = p.SecurityID
	}
	sum := sha256.Sum256([]byte(strings.Join(ids, ",")))
	digest := hex.EncodeToString(sum[:8])
	if lookbackDays > 0 {
		return fmt.Sprintf("riskengine:%s:%s:%d", kind, digest, lookbackDays)
	}
	return fmt.Sprintf("riskengine:%s:%s", kind, digest)
}

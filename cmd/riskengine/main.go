package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/finbrook/riskengine/internal/audit"
	"github.com/finbrook/riskengine/internal/config"
	"github.com/finbrook/riskengine/internal/correlation"
	"github.com/finbrook/riskengine/internal/engine"
	"github.com/finbrook/riskengine/internal/events"
	"github.com/finbrook/riskengine/internal/limits"
	"github.com/finbrook/riskengine/internal/liquidity"
	"github.com/finbrook/riskengine/internal/marketdata"
	"github.com/finbrook/riskengine/internal/metrics"
	"github.com/finbrook/riskengine/internal/montecarlo"
	"github.com/finbrook/riskengine/internal/stress"
)

// providerRatePerSecond caps calls into the market data store across all
// concurrent analyses.
const providerRatePerSecond = 50.0

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./configs/config.yaml)")
	logFormat := flag.String("log-format", "console", "Log output format: console or json")
	once := flag.Bool("once", false, "Run a single analysis pass and exit")
	flag.Parse()

	// Bootstrap logging so config loading failures are readable; InitLogger
	// below replaces this with the configured level and format.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.InitLogger(cfg.App.LogLevel, *logFormat)

	log.Info().
		Str("version", cfg.App.Version).
		Str("environment", cfg.App.Environment).
		Str("tenant_id", cfg.App.TenantID).
		Strs("portfolios", cfg.Engine.Portfolios).
		Int("max_concurrent", cfg.Engine.MaxConcurrent).
		Msg("Starting risk engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Market data: Postgres, rate-limited and circuit-broken, with an
	// optional Redis read-through cache in front.
	pool, err := pgxpool.New(ctx, cfg.Database.GetDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create database pool")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Str("host", cfg.Database.Host).Msg("Database unreachable")
	}

	var provider marketdata.Provider = marketdata.NewResilientProvider(
		marketdata.NewPostgresProviderWithPool(pool),
		providerRatePerSecond,
	)
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("Redis unreachable, running without parameter cache")
		} else {
			provider = marketdata.NewCachedProvider(provider, client, cfg.Engine.GetCacheTTL())
			defer client.Close()
		}
	}

	// Event publishing: NATS when configured, otherwise results are only
	// logged and exposed through metrics.
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.Enabled {
		natsPub, err := events.NewNATSPublisher(events.NATSPublisherConfig{
			URL:    cfg.NATS.URL,
			Prefix: cfg.NATS.SubjectPrefix,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer natsPub.Close()
		publisher = natsPub
	}

	// Limit definitions are optional; without them the engine still runs the
	// four analyses but skips the monitoring cycle.
	var limitSvc *limits.Service
	riskLimits, err := limits.LoadLimits(cfg.Limits.FilePath)
	switch {
	case err == nil:
		limitSvc = limits.NewService(riskLimits, publisher, nil, cfg.App.TenantID)
		log.Info().Int("limits", len(riskLimits)).Str("path", cfg.Limits.FilePath).Msg("Risk limits loaded")
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("path", cfg.Limits.FilePath).Msg("No limits file found, limit monitoring disabled")
	default:
		log.Fatal().Err(err).Str("path", cfg.Limits.FilePath).Msg("Failed to load risk limits")
	}

	auditLog := audit.NewLogger(pool, true)

	runner := engine.NewRunner(
		cfg.Engine,
		provider,
		montecarlo.NewService(provider, publisher, cfg.App.TenantID),
		liquidity.NewService(provider, publisher, cfg.App.TenantID),
		stress.NewService(provider, publisher, cfg.App.TenantID),
		correlation.NewService(provider, publisher, cfg.App.TenantID),
		limitSvc,
	)

	var metricsServer *metrics.Server
	if cfg.Monitoring.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Monitoring.PrometheusPort, config.NewLogger("metrics"))
		if err := metricsServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start metrics server")
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- run(ctx, runner, auditLog, cfg.App.TenantID, cfg.Limits.GetCycleInterval(), *once)
	}()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
		<-errChan
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Analysis loop failed")
		}
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Metrics server shutdown error")
		}
	}
	log.Info().Msg("Risk engine stopped")
}

// run executes analysis passes until the context is cancelled. A failing
// pass is logged and the next tick retried; persistent data store failures
// surface through the provider circuit breaker and the alerting path.
func run(ctx context.Context, runner *engine.Runner, auditLog *audit.Logger, tenantID string, interval time.Duration, once bool) error {
	if err := runPass(ctx, runner, auditLog, tenantID); err != nil {
		if once || errors.Is(err, context.Canceled) {
			return err
		}
		log.Error().Err(err).Msg("Analysis pass failed")
	}
	if once {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := runPass(ctx, runner, auditLog, tenantID); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				log.Error().Err(err).Msg("Analysis pass failed")
			}
		}
	}
}

func runPass(ctx context.Context, runner *engine.Runner, auditLog *audit.Logger, tenantID string) error {
	started := time.Now()
	reports, err := runner.RunAll(ctx, started.UTC())
	if err != nil {
		if auditErr := auditLog.LogRun(ctx, tenantID, "", "", time.Since(started), err); auditErr != nil {
			log.Warn().Err(auditErr).Msg("Audit trail write failed")
		}
		return err
	}
	for _, report := range reports {
		ev := log.Info().
			Str("portfolio_id", report.PortfolioID).
			Float64("var_95", report.Simulation.VaR95).
			Float64("liquidity_score", report.Liquidity.Metrics.LiquidityScore).
			Str("worst_scenario", report.StressTest.WorstScenarioID).
			Float64("effective_positions", report.Correlation.Concentration.EffectivePositions)
		if report.LimitCycle != nil {
			ev = ev.Int("limit_breaches", len(report.LimitCycle.Breaches))
		}
		ev.Dur("elapsed", time.Since(started)).Msg("Analysis pass complete")

		if auditErr := auditLog.LogRun(ctx, tenantID, report.PortfolioID, report.Simulation.RunID, time.Since(started), nil); auditErr != nil {
			log.Warn().Err(auditErr).Msg("Audit trail write failed")
		}
		if report.LimitCycle == nil {
			continue
		}
		for _, breach := range report.LimitCycle.Breaches {
			if auditErr := auditLog.LogBreach(ctx, tenantID, breach.PortfolioID, breach.ID, breach.LimitID,
				breach.UtilizationPct, string(breach.Severity)); auditErr != nil {
				log.Warn().Err(auditErr).Msg("Audit trail write failed")
			}
		}
		for _, esc := range report.LimitCycle.Escalations {
			if auditErr := auditLog.LogEscalation(ctx, tenantID, report.PortfolioID, esc.BreachID,
				string(esc.FromRole), string(esc.ToRole)); auditErr != nil {
				log.Warn().Err(auditErr).Msg("Audit trail write failed")
			}
		}
	}
	return nil
}

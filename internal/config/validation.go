package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

// Validate performs comprehensive configuration validation
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateDatabase()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateNATS()...)
	errors = append(errors, c.validateEngine()...)
	errors = append(errors, c.validateLimits()...)
	errors = append(errors, c.validateMonitoring()...)

	if len(errors) > 0 {
		return errors
	}

	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "app.name",
			Message: "application name is required",
		})
	}

	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		errors = append(errors, ValidationError{
			Field:   "app.environment",
			Message: fmt.Sprintf("must be one of development, staging, production; got %q", c.App.Environment),
		})
	}

	switch strings.ToLower(c.App.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errors = append(errors, ValidationError{
			Field:   "app.log_level",
			Message: fmt.Sprintf("invalid log level %q", c.App.LogLevel),
		})
	}

	if c.App.TenantID == "" {
		errors = append(errors, ValidationError{
			Field:   "app.tenant_id",
			Message: "tenant ID is required",
		})
	}

	return errors
}

func (c *Config) validateDatabase() ValidationErrors {
	var errors ValidationErrors

	if c.Database.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "database.host",
			Message: "database host is required",
		})
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "database.port",
			Message: fmt.Sprintf("port must be in 1-65535, got %d", c.Database.Port),
		})
	}
	if c.Database.User == "" {
		errors = append(errors, ValidationError{
			Field:   "database.user",
			Message: "database user is required",
		})
	}
	if c.Database.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "database.database",
			Message: "database name is required",
		})
	}
	if c.Database.PoolSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "database.pool_size",
			Message: fmt.Sprintf("pool size must be positive, got %d", c.Database.PoolSize),
		})
	}

	return errors
}

func (c *Config) validateRedis() ValidationErrors {
	var errors ValidationErrors

	if !c.Redis.Enabled {
		return errors
	}
	if c.Redis.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "redis.host",
			Message: "redis host is required when redis is enabled",
		})
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "redis.port",
			Message: fmt.Sprintf("port must be in 1-65535, got %d", c.Redis.Port),
		})
	}

	return errors
}

func (c *Config) validateNATS() ValidationErrors {
	var errors ValidationErrors

	if !c.NATS.Enabled {
		return errors
	}
	if c.NATS.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "nats.url",
			Message: "NATS URL is required when NATS is enabled",
		})
	}

	return errors
}

func (c *Config) validateEngine() ValidationErrors {
	var errors ValidationErrors

	if c.Engine.MaxConcurrent <= 0 {
		errors = append(errors, ValidationError{
			Field:   "engine.max_concurrent",
			Message: fmt.Sprintf("must be positive, got %d", c.Engine.MaxConcurrent),
		})
	}
	if c.Engine.SimulationTrials < 100 {
		errors = append(errors, ValidationError{
			Field:   "engine.simulation_trials",
			Message: fmt.Sprintf("at least 100 trials required, got %d", c.Engine.SimulationTrials),
		})
	}
	if c.Engine.ConfidenceLevel <= 0 || c.Engine.ConfidenceLevel >= 1 {
		errors = append(errors, ValidationError{
			Field:   "engine.confidence_level",
			Message: fmt.Sprintf("must be in (0, 1), got %g", c.Engine.ConfidenceLevel),
		})
	}
	switch c.Engine.TimeHorizon {
	case "1D", "1W", "1M", "3M", "6M", "1Y":
	default:
		errors = append(errors, ValidationError{
			Field:   "engine.time_horizon",
			Message: fmt.Sprintf("must be one of 1D, 1W, 1M, 3M, 6M, 1Y; got %q", c.Engine.TimeHorizon),
		})
	}
	switch c.Engine.VolatilityModel {
	case "CONSTANT", "EWMA":
	default:
		errors = append(errors, ValidationError{
			Field:   "engine.volatility_model",
			Message: fmt.Sprintf("must be CONSTANT or EWMA, got %q", c.Engine.VolatilityModel),
		})
	}
	switch c.Engine.MarketImpactModel {
	case "LINEAR", "SQUARE_ROOT", "POWER_LAW":
	default:
		errors = append(errors, ValidationError{
			Field:   "engine.market_impact_model",
			Message: fmt.Sprintf("must be LINEAR, SQUARE_ROOT or POWER_LAW, got %q", c.Engine.MarketImpactModel),
		})
	}
	if c.Engine.LookbackDays < 2 {
		errors = append(errors, ValidationError{
			Field:   "engine.lookback_days",
			Message: fmt.Sprintf("at least 2 days required, got %d", c.Engine.LookbackDays),
		})
	}
	if c.Engine.LiquidationDays <= 0 {
		errors = append(errors, ValidationError{
			Field:   "engine.liquidation_days",
			Message: fmt.Sprintf("must be positive, got %d", c.Engine.LiquidationDays),
		})
	}

	return errors
}

func (c *Config) validateLimits() ValidationErrors {
	var errors ValidationErrors

	if c.Limits.FilePath == "" {
		errors = append(errors, ValidationError{
			Field:   "limits.file_path",
			Message: "limits file path is required",
		})
	}
	if c.Limits.CycleInterval <= 0 {
		errors = append(errors, ValidationError{
			Field:   "limits.cycle_interval",
			Message: fmt.Sprintf("must be positive, got %d", c.Limits.CycleInterval),
		})
	}

	return errors
}

func (c *Config) validateMonitoring() ValidationErrors {
	var errors ValidationErrors

	if c.Monitoring.EnableMetrics && (c.Monitoring.PrometheusPort <= 0 || c.Monitoring.PrometheusPort > 65535) {
		errors = append(errors, ValidationError{
			Field:   "monitoring.prometheus_port",
			Message: fmt.Sprintf("port must be in 1-65535, got %d", c.Monitoring.PrometheusPort),
		})
	}

	return errors
}

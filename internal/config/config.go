package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Limits     LimitsConfig     `mapstructure:"limits"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	TenantID    string `mapstructure:"tenant_id"`
}

// DatabaseConfig contains PostgreSQL settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis cache settings
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig contains NATS messaging settings
type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// EngineConfig contains analysis run defaults
type EngineConfig struct {
	Portfolios        []string `mapstructure:"portfolios"`
	MaxConcurrent     int      `mapstructure:"max_concurrent"`    // portfolios analyzed in parallel
	SimulationTrials  int      `mapstructure:"simulation_trials"` // Monte Carlo trials per run
	ConfidenceLevel   float64  `mapstructure:"confidence_level"`  // 0.95
	TimeHorizon       string   `mapstructure:"time_horizon"`      // 1D, 1W, 1M, 3M, 6M, 1Y
	IncludeJumpRisk   bool     `mapstructure:"include_jump_risk"`
	VolatilityModel   string   `mapstructure:"volatility_model"`    // CONSTANT or EWMA
	LookbackDays      int      `mapstructure:"lookback_days"`       // correlation history window
	LiquidationDays   int      `mapstructure:"liquidation_days"`    // liquidity urgency timeframe
	MarketImpactModel string   `mapstructure:"market_impact_model"` // LINEAR, SQUARE_ROOT, POWER_LAW
	ParameterCacheTTL int      `mapstructure:"parameter_cache_ttl"` // seconds
}

// LimitsConfig locates the risk limit definitions
type LimitsConfig struct {
	FilePath      string `mapstructure:"file_path"`
	CycleInterval int    `mapstructure:"cycle_interval"` // seconds between monitoring cycles
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("RISKENGINE")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "riskengine")
	v.SetDefault("app.version", Version)
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.tenant_id", "default")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", PostgresPort)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "riskengine")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", RedisPort)
	v.SetDefault("redis.db", 0)

	// NATS defaults
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", fmt.Sprintf("nats://localhost:%d", NATSPort))
	v.SetDefault("nats.subject_prefix", "riskengine.")

	// Engine defaults
	v.SetDefault("engine.max_concurrent", 4)
	v.SetDefault("engine.simulation_trials", 10000)
	v.SetDefault("engine.confidence_level", 0.95)
	v.SetDefault("engine.time_horizon", "1M")
	v.SetDefault("engine.include_jump_risk", true)
	v.SetDefault("engine.volatility_model", "CONSTANT")
	v.SetDefault("engine.lookback_days", 252)
	v.SetDefault("engine.liquidation_days", 5)
	v.SetDefault("engine.market_impact_model", "SQUARE_ROOT")
	v.SetDefault("engine.parameter_cache_ttl", 300)

	// Limits defaults
	v.SetDefault("limits.file_path", "./configs/limits.yaml")
	v.SetDefault("limits.cycle_interval", 300)

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus_port", MetricsPort)
	v.SetDefault("monitoring.enable_metrics", true)
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetCacheTTL returns the parameter cache TTL as time.Duration
func (c *EngineConfig) GetCacheTTL() time.Duration {
	return time.Duration(c.ParameterCacheTTL) * time.Second
}

// GetCycleInterval returns the monitoring cycle interval as time.Duration
func (c *LimitsConfig) GetCycleInterval() time.Duration {
	return time.Duration(c.CycleInterval) * time.Second
}

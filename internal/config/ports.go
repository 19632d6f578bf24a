// Package config provides configuration management for the risk engine.
// This file centralizes default port constants to avoid duplication.
package config

// Infrastructure Service Ports
const (
	// PostgresPort is the default port for PostgreSQL.
	PostgresPort = 5432

	// RedisPort is the default port for Redis.
	RedisPort = 6379

	// NATSPort is the default port for NATS messaging.
	NATSPort = 4222

	// MetricsPort is the default port for the Prometheus metrics endpoint.
	MetricsPort = 9100
)

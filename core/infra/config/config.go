package config

import (
	"os"
	"time"
)

const (
	defaultNATSURL        = "nats://localhost:4222"
	defaultRedisURL       = "redis://localhost:6379"
	defaultMetricsAddr    = ":9090"
	defaultStrategyConfig = "config/strategy.yaml"
	defaultSweepInterval  = time.Minute
	envNATSURL            = "NATS_URL"
	envRedisURL           = "REDIS_URL"
	envMetricsAddr        = "METRICS_ADDR"
	envStrategyConfig     = "STRATEGY_CONFIG_PATH"
	envSweepInterval      = "SWEEP_INTERVAL"
	envPublishEvents      = "PUBLISH_EVENTS"
)

// Config holds runtime configuration for the depot services.
type Config struct {
	NatsURL            string
	RedisURL           string
	MetricsAddr        string
	StrategyConfigPath string
	SweepInterval      time.Duration
	PublishEvents      bool
}

// Load returns configuration using environment variables with sane defaults.
func Load() *Config {
	natsURL := os.Getenv(envNATSURL)
	if natsURL == "" {
		natsURL = defaultNATSURL
	}

	redisURL := os.Getenv(envRedisURL)
	if redisURL == "" {
		redisURL = defaultRedisURL
	}

	metricsAddr := os.Getenv(envMetricsAddr)
	if metricsAddr == "" {
		metricsAddr = defaultMetricsAddr
	}

	strategyPath := os.Getenv(envStrategyConfig)
	if strategyPath == "" {
		strategyPath = defaultStrategyConfig
	}

	sweepInterval := defaultSweepInterval
	if raw := os.Getenv(envSweepInterval); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			sweepInterval = d
		}
	}

	publishEvents := os.Getenv(envPublishEvents) == "true"

	return &Config{
		NatsURL:            natsURL,
		RedisURL:           redisURL,
		MetricsAddr:        metricsAddr,
		StrategyConfigPath: strategyPath,
		SweepInterval:      sweepInterval,
		PublishEvents:      publishEvents,
	}
}

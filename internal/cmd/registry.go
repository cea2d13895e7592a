package cmd

import (
	"github.com/guardianhq/guardian/internal/config"
	"github.com/guardianhq/guardian/internal/limiter"
	"github.com/guardianhq/guardian/internal/metrics"
	"github.com/guardianhq/guardian/internal/observability"
)

// buildRegistry applies cfg to the process coordinator and registers the
// configured limiters with logging and telemetry attached.
func buildRegistry(cfg *config.Config) (*limiter.Registry, error) {
	return cfg.BuildRegistry(limiter.Default(),
		limiter.WithLogger(observability.NewLimiterLogger(appIdentity.BinaryName, verbose)),
		limiter.WithObserver(metrics.TelemetryObserver{}),
	)
}

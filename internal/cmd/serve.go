package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/guardianhq/guardian/internal/config"
	errwrap "github.com/guardianhq/guardian/internal/errors"
	"github.com/guardianhq/guardian/internal/limiter"
	"github.com/guardianhq/guardian/internal/metrics"
	"github.com/guardianhq/guardian/internal/observability"
	"github.com/guardianhq/guardian/internal/server"
	"github.com/guardianhq/guardian/internal/server/handlers"
	"github.com/guardianhq/guardian/internal/store"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// storeHealthChecker pings the audit store.
type storeHealthChecker struct {
	db *store.Store
}

func (s storeHealthChecker) CheckHealth(ctx context.Context) error {
	if s.db == nil {
		return handlers.ErrDegraded
	}
	return s.db.Ping(ctx)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin HTTP server",
	Long: `Start the admin HTTP server with graceful shutdown support.

The server exposes health, version and metrics endpoints plus the /v1 admin
API for safe mode and limiter inspection.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload config and re-apply safe mode and global policy`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		identity := GetAppIdentity()

		cfg, err := loadConfig()
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "invalid configuration")
		}

		observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, cfg.Logging.Profile, identity.ConfigName)
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, identity.ConfigName); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
			}
			metrics.SetServerStartTime(time.Now().Unix())
		}

		reg, err := buildRegistry(cfg)
		if err != nil {
			return errwrap.FromLimiterError(ctx, err)
		}
		coord := reg.Coordinator()
		metrics.WatchSafeMode(coord.SafeMode(), "server")

		db, err := openStore(ctx)
		if err != nil {
			logger.Warn("Audit store unavailable; safe-mode changes will not be recorded", zap.Error(err))
			db = nil
		}
		var audit handlers.SafeModeAuditor
		if db != nil {
			audit = db
			if st := coord.SafeMode().State(); st.Enabled {
				recordStartupSafeMode(ctx, db, st)
			}
		}

		logger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
			zap.Int("metrics_port", observability.GetMetricsPort()),
			zap.Strings("limiters", reg.Names()),
			zap.String("global_policy", string(coord.Policy())),
			zap.Bool("safe_mode", coord.SafeMode().Enabled()))

		// Initialize health manager
		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("limiters", handlers.NewLimitersChecker(coord))
		hm.RegisterChecker("store", storeHealthChecker{db: db})
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		}
		handlers.SetAppIdentity(identity)
		handlers.SetVersionCoordinator(coord)

		srv := server.New(server.Options{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			IdleTimeout:     cfg.Server.IdleTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			Registry:        reg,
			Audit:           audit,
			AdminToken:      cfg.Server.AdminToken,
			AdminRate:       cfg.Server.AdminRate,
			AdminBurst:      cfg.Server.AdminBurst,
		})

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		// Handler 2: Stop the metrics exporter
		signals.OnShutdown(func(ctx context.Context) error {
			if err := observability.ShutdownMetrics(); err != nil {
				logger.Warn("Failed to stop metrics exporter", zap.Error(err))
			}
			return nil
		})

		// Handler 3: Close the audit store
		signals.OnShutdown(func(ctx context.Context) error {
			if db == nil {
				return nil
			}
			if err := db.Close(); err != nil {
				logger.Warn("Failed to close audit store", zap.Error(err))
			}
			return nil
		})

		// Handler 4: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: reloading configuration")
			return reloadSafeMode(ctx, coord, db)
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil {
				errChan <- err
				return
			}
			errChan <- nil
		}()

		go func() {
			if err := signals.Listen(ctx); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(ctx, err, "server error")
		}
		return nil
	},
}

func recordStartupSafeMode(ctx context.Context, db *store.Store, st limiter.SafeModeState) {
	_, err := db.RecordSafeModeChange(ctx, store.SafeModeChange{
		Enabled:       st.Enabled,
		RateLimit:     st.Rate,
		PrevRateLimit: limiter.DefaultSafeModeRate,
		Source:        "config",
		Actor:         appIdentity.BinaryName,
		Reason:        "enabled at startup",
	})
	if err != nil {
		observability.ServerLogger.Warn("Failed to record startup safe mode", zap.Error(err))
	}
}

// reloadSafeMode re-reads the config file and environment and re-applies
// the global policy and safe-mode state to coord.
func reloadSafeMode(ctx context.Context, coord *limiter.Coordinator, db *store.Store) error {
	logger := observability.ServerLogger

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logger.Error("Failed to reload config file",
				zap.String("file", viper.ConfigFileUsed()),
				zap.Error(err))
			return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
		}
	}

	cfg, err := config.Load(viper.GetViper(), appIdentity.Prefix())
	if err != nil {
		logger.Error("Reloaded configuration is invalid; keeping current state", zap.Error(err))
		return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
	}

	prev, err := cfg.Apply(coord)
	if err != nil {
		logger.Error("Reloaded configuration rejected; keeping current state", zap.Error(err))
		return errwrap.FromLimiterError(ctx, err)
	}
	next := cfg.SafeModeState()

	logger.Info("Configuration reloaded",
		zap.String("file", viper.ConfigFileUsed()),
		zap.String("global_policy", string(coord.Policy())),
		zap.Bool("safe_mode", next.Enabled),
		zap.Float64("safe_mode_rate_limit", next.Rate))

	if db != nil && prev != next {
		if _, err := db.RecordSafeModeChange(ctx, store.SafeModeChange{
			Enabled:       next.Enabled,
			RateLimit:     next.Rate,
			PrevEnabled:   prev.Enabled,
			PrevRateLimit: prev.Rate,
			Source:        "reload",
			Actor:         appIdentity.BinaryName,
			Reason:        "SIGHUP config reload",
		}); err != nil {
			logger.Warn("Failed to record reloaded safe mode", zap.Error(err))
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

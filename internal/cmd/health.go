package cmd

import (
	"context"
	"fmt"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/guardianhq/guardian/internal/config"
	errwrap "github.com/guardianhq/guardian/internal/errors"
	"github.com/guardianhq/guardian/internal/limiter"
	"github.com/guardianhq/guardian/internal/observability"
	"github.com/guardianhq/guardian/internal/store"
)

// selfCheck is one step of `guardian health`. A non-nil envelope fails the
// command; warnings are only logged.
type selfCheck struct {
	name string
	run  func(ctx context.Context, cfg *config.Config) (ok string, warn string, fail *errors.ErrorEnvelope)
}

var selfChecks = []selfCheck{
	{name: "version", run: func(context.Context, *config.Config) (string, string, *errors.ErrorEnvelope) {
		if versionInfo.Version == "" {
			return "", "", errwrap.NewConfigInvalidError("version information missing")
		}
		return "version " + versionInfo.Version, "", nil
	}},
	{name: "limiters", run: func(ctx context.Context, cfg *config.Config) (string, string, *errors.ErrorEnvelope) {
		reg, err := cfg.BuildRegistry(limiter.NewCoordinator())
		if err != nil {
			return "", "", errwrap.FromLimiterError(ctx, err)
		}
		var warn string
		if cfg.SafeMode.Enabled {
			warn = fmt.Sprintf("safe mode enabled at startup (%g/s)", cfg.SafeMode.RateLimit)
		}
		return fmt.Sprintf("%d limiters configured", len(reg.Names())), warn, nil
	}},
	{name: "admin", run: func(_ context.Context, cfg *config.Config) (string, string, *errors.ErrorEnvelope) {
		if cfg.Server.AdminToken == "" {
			return "admin token not set", "server.admin_token is empty; PUT /v1/safe-mode is unauthenticated", nil
		}
		return "admin token configured", "", nil
	}},
	{name: "store", run: func(ctx context.Context, _ *config.Config) (string, string, *errors.ErrorEnvelope) {
		if err := withStore(ctx, func(db *store.Store) error {
			return db.Ping(ctx)
		}); err != nil {
			return "", "audit store unavailable: " + err.Error(), nil
		}
		return "audit store reachable", "", nil
	}},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify the configuration loads, every declared limiter builds on a scratch coordinator and the audit store opens.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		logger.Info("Running health check...")

		cfg, err := loadConfig()
		if err != nil {
			logger.Error("❌ FAIL: configuration")
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration invalid", errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration invalid"))
			return
		}
		logger.Info("✅ configuration loaded")

		for _, check := range selfChecks {
			ok, warn, fail := check.run(cmd.Context(), cfg)
			if fail != nil {
				logger.Error("❌ FAIL: " + check.name)
				ExitWithCode(logger, foundry.ExitConfigInvalid, fail.Message, fail)
				return
			}
			logger.Info("✅ "+ok, zap.String("check", check.name))
			if warn != "" {
				logger.Warn("⚠️  "+warn, zap.String("check", check.name))
			}
		}

		logger.Info("")
		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

package cmd

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/guardianhq/guardian/internal/config"
	"github.com/guardianhq/guardian/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, limiter and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()
		log := observability.CLILogger

		log.Info("=== guardian Environment Information ===")
		log.Info("")

		identity := GetAppIdentity()
		log.Info("Application:")
		log.Info("  Name:       " + identity.BinaryName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("  Env Prefix: " + identity.Prefix())
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := loadConfig()
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		log.Info("Configuration:")
		log.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		log.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		log.Info(fmt.Sprintf("  Admin Token:    %s", setOrUnset(cfg.Server.AdminToken)))
		log.Info(fmt.Sprintf("  Admin Throttle: %g/s burst %d", cfg.Server.AdminRate, cfg.Server.AdminBurst))
		log.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		log.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			log.Info("  DB URL:         "+cfg.Store.URL, zap.String("db_url", cfg.Store.URL))
		} else {
			log.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		log.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		log.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		log.Info("")

		log.Info("Admission Control:")
		log.Info("  Global Policy:  " + cfg.Global.Policy)
		log.Info(fmt.Sprintf("  Safe Mode:      %s (rate %g/s)", onOff(cfg.SafeMode.Enabled), cfg.SafeMode.RateLimit),
			zap.Bool("safe_mode", cfg.SafeMode.Enabled))
		names := make([]string, 0, len(cfg.Limiters))
		for name := range cfg.Limiters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			lc := cfg.Limiters[name]
			log.Info(fmt.Sprintf("  %-15s %g/s (%s)", name, lc.Rate, lc.Domain))
		}
		log.Info("")

		log.Info("Environment Overrides:")
		found := false
		for _, spec := range config.EnvSpecs(identity.Prefix()) {
			if _, ok := os.LookupEnv(spec.Name); ok {
				found = true
				log.Info("  " + spec.Name + " -> " + strings.Join(spec.Path, "."))
			}
		}
		if !found {
			log.Info("  (none)")
		}
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func setOrUnset(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(not set)"
	}
	return "(set)"
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}

package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"

	"github.com/guardianhq/guardian/internal/config"
)

var extended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. --extended adds build, dependency and admission defaults.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s\n", GetAppIdentity().BinaryName, versionInfo.Version)
		if !extended {
			return nil
		}
		writeExtendedVersion(out)
		return nil
	},
}

func writeExtendedVersion(out io.Writer) {
	deps := crucible.GetVersion()
	fmt.Fprintf(out, "Commit: %s\n", versionInfo.Commit)
	fmt.Fprintf(out, "Built: %s\n", versionInfo.BuildDate)
	fmt.Fprintf(out, "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(out, "Gofulmen: %s\n", deps.Gofulmen)
	fmt.Fprintf(out, "Crucible: %s\n", deps.Crucible)
	fmt.Fprintf(out, "Config: %s\n", config.DefaultConfigPath())

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(out, "Admission: config not loaded (%v)\n", err)
		return
	}
	safeMode := "off"
	if cfg.SafeMode.Enabled {
		safeMode = fmt.Sprintf("on at %g/s", cfg.SafeMode.RateLimit)
	}
	fmt.Fprintf(out, "Admission: %d limiters, global policy %s, safe mode %s\n",
		len(cfg.Limiters), cfg.Global.Policy, safeMode)
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
}

package cmd

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guardianhq/guardian/internal/limiter"
	"github.com/guardianhq/guardian/internal/output"
	"github.com/guardianhq/guardian/internal/server/handlers"
)

var (
	limitersOutput string
	limitersServer string
)

var limitersCmd = &cobra.Command{
	Use:   "limiters",
	Short: "List configured limiters and their effective rates",
	Long: `List the limiters declared in configuration with their domain, configured
rate and effective rate after the global policy and safe mode are applied.

With --server the live view of a running server is shown instead, including
admission counters.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(limitersOutput)
		if err != nil {
			return err
		}

		infos, err := collectLimiters(cmd)
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatLimiters(infos)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return err
	},
}

func collectLimiters(cmd *cobra.Command) ([]limiter.Info, error) {
	if serverURL := strings.TrimSpace(limitersServer); serverURL != "" {
		var resp handlers.LimitersResponse
		client := newAdminClient(serverURL, "", "")
		if err := client.do(cmd.Context(), http.MethodGet, "/v1/limiters", nil, &resp); err != nil {
			return nil, err
		}
		return resp.Limiters, nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	reg, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}
	return reg.Snapshot(), nil
}

func init() {
	limitersCmd.Flags().StringVar(&limitersOutput, "output-format", string(output.FormatTable), "Output format: table|json|yaml|markdown")
	limitersCmd.Flags().StringVar(&limitersServer, "server", "", "query a running server at this URL")
	rootCmd.AddCommand(limitersCmd)
}

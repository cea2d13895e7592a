package cmd

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/guardianhq/guardian/internal/observability"
	"github.com/guardianhq/guardian/internal/server/handlers"
)

var (
	safeModeServer string
	safeModeToken  string
	safeModeReason string
	safeModeRate   float64
)

var safeModeCmd = &cobra.Command{
	Use:   "safe-mode",
	Short: "Inspect or toggle safe mode on a running server",
	Long: `Safe mode caps every limiter in the process at a single override rate.

These commands talk to a running "guardian serve" through its admin API.
The server URL defaults to server.host/server.port and the bearer token to
server.admin_token.`,
}

var safeModeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current safe-mode state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := safeModeClient()
		if err != nil {
			return err
		}
		var resp handlers.SafeModeResponse
		if err := client.do(cmd.Context(), http.MethodGet, "/v1/safe-mode", nil, &resp); err != nil {
			return err
		}
		printSafeMode(cmd, resp)
		return nil
	},
}

var safeModeEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable safe mode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled := true
		req := handlers.SafeModeRequest{Enabled: &enabled, Reason: safeModeReason}
		if cmd.Flags().Changed("rate") {
			if !(safeModeRate > 0) {
				return fmt.Errorf("--rate must be positive, got %v", safeModeRate)
			}
			req.RateLimit = &safeModeRate
		}
		return putSafeMode(cmd, req)
	},
}

var safeModeDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable safe mode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled := false
		return putSafeMode(cmd, handlers.SafeModeRequest{Enabled: &enabled, Reason: safeModeReason})
	},
}

func putSafeMode(cmd *cobra.Command, req handlers.SafeModeRequest) error {
	client, err := safeModeClient()
	if err != nil {
		return err
	}
	var resp handlers.SafeModeResponse
	if err := client.do(cmd.Context(), http.MethodPut, "/v1/safe-mode", req, &resp); err != nil {
		return err
	}
	observability.CLILogger.Debug("Safe mode updated",
		zap.Bool("enabled", resp.Enabled),
		zap.Float64("rate_limit", resp.Rate),
		zap.Int64("audit_id", resp.AuditID))
	printSafeMode(cmd, resp)
	if resp.AuditRecorded != nil && !*resp.AuditRecorded {
		observability.CLILogger.Warn("Server applied the change but could not record it in the audit log")
	}
	return nil
}

func safeModeClient() (*adminClient, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	serverURL := strings.TrimSpace(safeModeServer)
	if serverURL == "" {
		serverURL = defaultServerURL(cfg.Server.Host, cfg.Server.Port)
	}
	token := strings.TrimSpace(safeModeToken)
	if token == "" {
		token = cfg.Server.AdminToken
	}
	return newAdminClient(serverURL, token, currentActor()), nil
}

func currentActor() string {
	if user := strings.TrimSpace(os.Getenv("USER")); user != "" {
		return user
	}
	return appIdentity.BinaryName + "-cli"
}

func printSafeMode(cmd *cobra.Command, resp handlers.SafeModeResponse) {
	out := cmd.OutOrStdout()
	if resp.Enabled {
		_, _ = fmt.Fprintf(out, "safe mode: on (every limiter capped at %g/s)\n", resp.Rate)
	} else {
		_, _ = fmt.Fprintf(out, "safe mode: off (override rate %g/s when enabled)\n", resp.Rate)
	}
	if resp.Previous != nil && resp.Previous.Enabled != resp.Enabled {
		_, _ = fmt.Fprintf(out, "previously: %s\n", onOff(resp.Previous.Enabled))
	}
	if resp.AuditID > 0 {
		_, _ = fmt.Fprintf(out, "audit id: %d\n", resp.AuditID)
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func init() {
	safeModeCmd.PersistentFlags().StringVar(&safeModeServer, "server", "", "admin server URL (default derived from server.host and server.port)")
	safeModeCmd.PersistentFlags().StringVar(&safeModeToken, "token", "", "admin bearer token (default server.admin_token)")

	safeModeEnableCmd.Flags().Float64Var(&safeModeRate, "rate", 0, "override rate in admissions per second (default keeps the current override rate)")
	safeModeEnableCmd.Flags().StringVar(&safeModeReason, "reason", "", "reason recorded in the audit log")
	safeModeDisableCmd.Flags().StringVar(&safeModeReason, "reason", "", "reason recorded in the audit log")

	safeModeCmd.AddCommand(safeModeStatusCmd, safeModeEnableCmd, safeModeDisableCmd)
	rootCmd.AddCommand(safeModeCmd)
}

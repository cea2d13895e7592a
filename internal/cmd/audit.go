package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guardianhq/guardian/internal/output"
	"github.com/guardianhq/guardian/internal/store"
)

var (
	auditOutput string
	auditLimit  int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the administrative audit log",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded safe-mode changes, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(auditOutput)
		if err != nil {
			return err
		}

		var changes []store.SafeModeChange
		if err := withStore(cmd.Context(), func(db *store.Store) error {
			changes, err = db.ListSafeModeChanges(cmd.Context(), auditLimit)
			return err
		}); err != nil {
			return err
		}
		if len(changes) == 0 && format == output.FormatTable {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "(no safe-mode changes recorded)")
			return err
		}

		rendered, err := output.NewFormatter(format).FormatSafeModeChanges(changes)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return err
	},
}

var auditRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded self-check runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(auditOutput)
		if err != nil {
			return err
		}

		var runs []store.CheckRun
		if err := withStore(cmd.Context(), func(db *store.Store) error {
			runs, err = db.ListCheckRuns(cmd.Context(), auditLimit)
			return err
		}); err != nil {
			return err
		}
		if len(runs) == 0 && format == output.FormatTable {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "(no check runs recorded)")
			return err
		}

		rendered, err := output.NewFormatter(format).FormatCheckRuns(runs)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return err
	},
}

func init() {
	auditCmd.PersistentFlags().StringVar(&auditOutput, "output-format", string(output.FormatTable), "Output format: table|json|yaml|markdown")
	auditCmd.PersistentFlags().IntVar(&auditLimit, "limit", 50, "maximum number of entries")

	auditCmd.AddCommand(auditListCmd, auditRunsCmd)
	rootCmd.AddCommand(auditCmd)
}

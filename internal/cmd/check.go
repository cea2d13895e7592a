package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/guardianhq/guardian/internal/diagnostics"
	"github.com/guardianhq/guardian/internal/observability"
	"github.com/guardianhq/guardian/internal/output"
	"github.com/guardianhq/guardian/internal/store"
)

var (
	checkProbes []string
	checkRecord bool
	checkList   bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the limiter self-check probes",
	Long: `Run timing probes against isolated limiters to confirm pacing, backlog
recovery, cancellation, scope isolation, safe mode, concurrent pacing,
global-domain pacing and error propagation behave as expected.

Probes use real clocks; a full run takes several seconds.`,
	Example: `  guardian check
  guardian check --probe pacing --probe safe-mode
  guardian check --output-format json --out check.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if checkList {
			for _, p := range diagnostics.Probes() {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-15s %s\n", p.Name, p.Description)
			}
			return nil
		}

		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		runner := diagnostics.NewRunner(observability.NewLimiterLogger(appIdentity.BinaryName, verbose).Named("check"))
		report, err := runner.Run(cmd.Context(), checkProbes...)
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatReport(report)
		if err != nil {
			return err
		}

		sink, err := reportSink(cmd, format, report.StartedAt)
		if err != nil {
			return err
		}
		defer func() { _ = sink.Close() }()
		if _, err := fmt.Fprintln(sink, rendered); err != nil {
			return err
		}
		if sink.path != "-" {
			observability.CLILogger.Info("Check report written", zap.String("path", sink.path))
		}

		if checkRecord {
			recordCheckRun(cmd, report)
		}

		if !report.Passed {
			failedNames := make([]string, 0, report.Failures)
			for _, r := range report.Results {
				if !r.Passed {
					failedNames = append(failedNames, r.Name)
				}
			}
			return fmt.Errorf("%d probe(s) failed: %s", report.Failures, strings.Join(failedNames, ", "))
		}
		return nil
	},
}

// recordCheckRun stores the report. Failures are logged, not returned.
func recordCheckRun(cmd *cobra.Command, report *diagnostics.Report) {
	ctx := cmd.Context()
	db, err := openStore(ctx)
	if err != nil {
		observability.CLILogger.Warn("Check run not recorded: store unavailable", zap.Error(err))
		return
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	body, err := json.Marshal(report)
	if err != nil {
		observability.CLILogger.Warn("Check run not recorded: encode report", zap.Error(err))
		return
	}

	run := store.CheckRun{
		ID:        uuid.NewString(),
		Passed:    report.Passed,
		Probes:    len(report.Results),
		Failures:  report.Failures,
		Duration:  report.Duration,
		Report:    string(body),
		StartedAt: report.StartedAt,
	}
	if err := db.RecordCheckRun(ctx, run); err != nil {
		observability.CLILogger.Warn("Check run not recorded", zap.Error(err))
		return
	}
	observability.CLILogger.Debug("Check run recorded", zap.String("run_id", run.ID))
}

func init() {
	checkCmd.Flags().StringSliceVar(&checkProbes, "probe", nil, "probe to run (repeatable; default all)")
	checkCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|yaml|markdown")
	checkCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	checkCmd.Flags().String("out-dir", "", "Write output to a directory")
	checkCmd.Flags().BoolVar(&checkRecord, "record", true, "record the run in the audit store")
	checkCmd.Flags().BoolVar(&checkList, "list", false, "list available probes and exit")
	rootCmd.AddCommand(checkCmd)
}

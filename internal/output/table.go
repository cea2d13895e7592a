package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/guardianhq/guardian/internal/diagnostics"
	"github.com/guardianhq/guardian/internal/limiter"
	"github.com/guardianhq/guardian/internal/store"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

func newTable(header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(header)
	return t
}

// FormatReport renders a diagnostics report as a table.
func (f *TableFormatter) FormatReport(report *diagnostics.Report) (string, error) {
	if report == nil {
		return "", nil
	}

	t := newTable(table.Row{"Probe", "Result", "Duration", "Detail"})
	for _, r := range report.Results {
		t.AppendRow(table.Row{r.Name, passLabel(r.Passed), formatDuration(r.Duration), r.Detail})
	}
	t.AppendFooter(table.Row{"", passLabel(report.Passed), "", reportSummary(report)})
	return t.Render(), nil
}

// FormatLimiters renders limiter descriptions as a table.
func (f *TableFormatter) FormatLimiters(limiters []limiter.Info) (string, error) {
	t := newTable(table.Row{"Name", "Domain", "Rate", "Effective", "Owner", "Admitted", "Cancelled", "Violations", "Total Wait"})
	for _, info := range limiters {
		t.AppendRow(table.Row{
			info.Name,
			info.Domain.String(),
			formatRate(info.Rate),
			formatRate(info.EffectiveRate),
			formatOwner(info),
			info.Stats.Admitted,
			info.Stats.Cancelled,
			info.Stats.Violations,
			formatDuration(info.Stats.TotalWait),
		})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d limiters", len(limiters))})
	return t.Render(), nil
}

// FormatSafeModeChanges renders the safe-mode audit log as a table.
func (f *TableFormatter) FormatSafeModeChanges(changes []store.SafeModeChange) (string, error) {
	t := newTable(table.Row{"ID", "Changed At", "Safe Mode", "Previous", "Source", "Actor", "Reason"})
	for _, c := range changes {
		t.AppendRow(table.Row{
			c.ID,
			c.ChangedAt.UTC().Format(timeLayout),
			formatSafeMode(c.Enabled, c.RateLimit),
			formatSafeMode(c.PrevEnabled, c.PrevRateLimit),
			c.Source,
			orDash(c.Actor),
			orDash(c.Reason),
		})
	}
	return t.Render(), nil
}

// FormatCheckRuns renders recorded check runs as a table.
func (f *TableFormatter) FormatCheckRuns(runs []store.CheckRun) (string, error) {
	t := newTable(table.Row{"ID", "Started At", "Result", "Probes", "Failures", "Duration"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.UTC().Format(timeLayout),
			passLabel(r.Passed),
			r.Probes,
			r.Failures,
			formatDuration(r.Duration),
		})
	}
	return t.Render(), nil
}

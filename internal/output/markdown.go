package output

import (
	"fmt"
	"strings"

	"github.com/guardianhq/guardian/internal/diagnostics"
	"github.com/guardianhq/guardian/internal/limiter"
	"github.com/guardianhq/guardian/internal/store"
)

const timeLayout = "2006-01-02 15:04:05Z"

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatReport renders a diagnostics report as Markdown.
func (f *MarkdownFormatter) FormatReport(report *diagnostics.Report) (string, error) {
	if report == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("## Limiter self-check\n\n")
	sb.WriteString("| Probe | Result | Duration | Detail |\n")
	sb.WriteString("|-------|--------|----------|--------|\n")
	for _, r := range report.Results {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			escapeMarkdownCell(r.Name),
			passLabel(r.Passed),
			formatDuration(r.Duration),
			escapeMarkdownCell(r.Detail),
		))
	}
	sb.WriteString(fmt.Sprintf("\n**Result**: %s (%s)\n", passLabel(report.Passed), reportSummary(report)))
	return sb.String(), nil
}

func (f *MarkdownFormatter) FormatLimiters(limiters []limiter.Info) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Name | Domain | Rate | Effective | Owner | Admitted | Cancelled | Violations |\n")
	sb.WriteString("|------|--------|------|-----------|-------|----------|-----------|------------|\n")
	for _, info := range limiters {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %d | %d | %d |\n",
			escapeMarkdownCell(info.Name),
			info.Domain,
			formatRate(info.Rate),
			formatRate(info.EffectiveRate),
			escapeMarkdownCell(formatOwner(info)),
			info.Stats.Admitted,
			info.Stats.Cancelled,
			info.Stats.Violations,
		))
	}
	return sb.String(), nil
}

func (f *MarkdownFormatter) FormatSafeModeChanges(changes []store.SafeModeChange) (string, error) {
	var sb strings.Builder
	sb.WriteString("| ID | Changed At | Safe Mode | Previous | Source | Actor | Reason |\n")
	sb.WriteString("|----|------------|-----------|----------|--------|-------|--------|\n")
	for _, c := range changes {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s | %s |\n",
			c.ID,
			c.ChangedAt.UTC().Format(timeLayout),
			formatSafeMode(c.Enabled, c.RateLimit),
			formatSafeMode(c.PrevEnabled, c.PrevRateLimit),
			escapeMarkdownCell(c.Source),
			escapeMarkdownCell(orDash(c.Actor)),
			escapeMarkdownCell(orDash(c.Reason)),
		))
	}
	return sb.String(), nil
}

func (f *MarkdownFormatter) FormatCheckRuns(runs []store.CheckRun) (string, error) {
	var sb strings.Builder
	sb.WriteString("| ID | Started At | Result | Probes | Failures | Duration |\n")
	sb.WriteString("|----|------------|--------|--------|----------|----------|\n")
	for _, r := range runs {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %d | %s |\n",
			escapeMarkdownCell(r.ID),
			r.StartedAt.UTC().Format(timeLayout),
			passLabel(r.Passed),
			r.Probes,
			r.Failures,
			formatDuration(r.Duration),
		))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}

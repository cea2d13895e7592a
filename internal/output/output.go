package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/guardianhq/guardian/internal/diagnostics"
	"github.com/guardianhq/guardian/internal/limiter"
	"github.com/guardianhq/guardian/internal/store"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// Formatter renders guardian reports.
type Formatter interface {
	FormatReport(report *diagnostics.Report) (string, error)
	FormatLimiters(limiters []limiter.Info) (string, error)
	FormatSafeModeChanges(changes []store.SafeModeChange) (string, error)
	FormatCheckRuns(runs []store.CheckRun) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

func passLabel(passed bool) string {
	if passed {
		return "pass"
	}
	return "FAIL"
}

func formatRate(rate float64) string {
	return fmt.Sprintf("%g/s", rate)
}

func formatSafeMode(enabled bool, rate float64) string {
	if !enabled {
		return "off"
	}
	return "on @ " + formatRate(rate)
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

func formatOwner(info limiter.Info) string {
	if info.Owner == "" {
		return "-"
	}
	return info.Owner
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func reportSummary(report *diagnostics.Report) string {
	passed := len(report.Results) - report.Failures
	return fmt.Sprintf("%d/%d passed in %s", passed, len(report.Results), formatDuration(report.Duration))
}

package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/guardianhq/guardian/internal/diagnostics"
	"github.com/guardianhq/guardian/internal/limiter"
	"github.com/guardianhq/guardian/internal/store"
)

func sampleReport() *diagnostics.Report {
	return &diagnostics.Report{
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Passed:    false,
		Failures:  1,
		Results: []diagnostics.ProbeResult{
			{Name: "pacing", Passed: true, Detail: "3 gaps, shortest 199ms >= 180ms", Duration: 600 * time.Millisecond},
			{Name: "global", Passed: false, Detail: "gap 2 was 10ms | too short", Duration: 900 * time.Millisecond},
		},
	}
}

func sampleLimiters() []limiter.Info {
	return []limiter.Info{
		{
			Name:          "search-agent",
			Domain:        limiter.DomainGlobal,
			Rate:          2,
			EffectiveRate: 1,
			Stats:         limiter.Stats{Admitted: 7, Cancelled: 1, TotalWait: 3 * time.Second},
		},
		{
			Name:          "ui-refresh",
			Domain:        limiter.DomainScoped,
			Rate:          5,
			EffectiveRate: 5,
			Owner:         "ui/1a2b3c4d",
		},
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("yml")
	require.NoError(t, err)
	require.Equal(t, FormatYAML, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestFormatReport(t *testing.T) {
	report := sampleReport()

	table, err := NewFormatter(FormatTable).FormatReport(report)
	require.NoError(t, err)
	require.Contains(t, table, "pacing")
	require.Contains(t, table, "FAIL")
	require.Contains(t, strings.ToLower(table), "1/2 passed")

	md, err := NewFormatter(FormatMarkdown).FormatReport(report)
	require.NoError(t, err)
	require.Contains(t, md, "| Probe | Result |")
	require.Contains(t, md, "10ms \\| too short")

	js, err := NewFormatter(FormatJSON).FormatReport(report)
	require.NoError(t, err)
	var decoded diagnostics.Report
	require.NoError(t, json.Unmarshal([]byte(js), &decoded))
	require.Len(t, decoded.Results, 2)
	require.Equal(t, "global", decoded.Results[1].Name)

	ym, err := NewFormatter(FormatYAML).FormatReport(report)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(ym), &generic))
	require.Equal(t, false, generic["passed"])
	require.Equal(t, 1, generic["failures"])

	empty, err := NewFormatter(FormatTable).FormatReport(nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestFormatLimiters(t *testing.T) {
	table, err := NewFormatter(FormatTable).FormatLimiters(sampleLimiters())
	require.NoError(t, err)
	require.Contains(t, table, "search-agent")
	require.Contains(t, table, "global")
	require.Contains(t, table, "1/s")
	require.Contains(t, table, "ui/1a2b3c4d")
	require.Contains(t, strings.ToLower(table), "2 limiters")

	md, err := NewFormatter(FormatMarkdown).FormatLimiters(sampleLimiters())
	require.NoError(t, err)
	require.Contains(t, md, "| search-agent | global | 2/s | 1/s | - | 7 | 1 | 0 |")

	js, err := NewFormatter(FormatJSON).FormatLimiters(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", strings.TrimSpace(js))

	ym, err := NewFormatter(FormatYAML).FormatLimiters(sampleLimiters())
	require.NoError(t, err)
	require.Contains(t, ym, "domain: scoped")
}

func TestFormatSafeModeChanges(t *testing.T) {
	changes := []store.SafeModeChange{
		{
			ID:            2,
			Enabled:       true,
			RateLimit:     0.5,
			PrevEnabled:   false,
			PrevRateLimit: 1,
			Source:        "api",
			Actor:         "ops",
			Reason:        "provider throttling",
			ChangedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	table, err := NewFormatter(FormatTable).FormatSafeModeChanges(changes)
	require.NoError(t, err)
	require.Contains(t, table, "on @ 0.5/s")
	require.Contains(t, table, "provider throttling")
	require.Contains(t, table, "2026-03-01 12:00:00Z")

	md, err := NewFormatter(FormatMarkdown).FormatSafeModeChanges(changes)
	require.NoError(t, err)
	require.Contains(t, md, "| 2 | 2026-03-01 12:00:00Z | on @ 0.5/s | off | api | ops | provider throttling |")

	js, err := NewFormatter(FormatJSON).FormatSafeModeChanges(changes)
	require.NoError(t, err)
	require.Contains(t, js, "\"rate_limit\": 0.5")
}

func TestFormatCheckRuns(t *testing.T) {
	runs := []store.CheckRun{
		{ID: "run-1", Passed: true, Probes: 8, Duration: 4 * time.Second, StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}

	table, err := NewFormatter(FormatTable).FormatCheckRuns(runs)
	require.NoError(t, err)
	require.Contains(t, table, "run-1")
	require.Contains(t, table, "pass")

	md, err := NewFormatter(FormatMarkdown).FormatCheckRuns(runs)
	require.NoError(t, err)
	require.Contains(t, md, "| run-1 | 2026-03-01 12:00:00Z | pass | 8 | 0 | 4s |")
}

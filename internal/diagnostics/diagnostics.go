// Package diagnostics runs self-check probes that exercise the limiter
// guarantees against isolated coordinators and real clocks.
package diagnostics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/guardianhq/guardian/internal/metrics"
)

// Tolerance is the fraction of an interval a measured gap must reach.
const Tolerance = 0.9

// ProbeResult is the outcome of one probe.
type ProbeResult struct {
	Name     string          `json:"name" yaml:"name"`
	Passed   bool            `json:"passed" yaml:"passed"`
	Detail   string          `json:"detail" yaml:"detail"`
	Duration time.Duration   `json:"duration_ns" yaml:"duration_ns"`
	Gaps     []time.Duration `json:"gaps_ns,omitempty" yaml:"gaps_ns,omitempty"`
}

// Report aggregates a run of probes.
type Report struct {
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration_ns" yaml:"duration_ns"`
	Passed    bool          `json:"passed" yaml:"passed"`
	Failures  int           `json:"failures" yaml:"failures"`
	Results   []ProbeResult `json:"results" yaml:"results"`
}

// Probe is a named self-check.
type Probe struct {
	Name        string
	Description string
	run         func(ctx context.Context) ProbeResult
}

var probes = []Probe{
	{Name: "pacing", Description: "sequential admissions respect the minimum interval", run: probePacing},
	{Name: "recovery", Description: "an idle limiter carries no backlog", run: probeRecovery},
	{Name: "cancellation", Description: "a cancelled wait is never charged", run: probeCancellation},
	{Name: "isolation", Description: "a scoped limiter rejects foreign scopes without touching its ledger", run: probeIsolation},
	{Name: "safe-mode", Description: "safe mode stretches intervals and disabling restores them", run: probeSafeMode},
	{Name: "concurrency", Description: "concurrent workers share one ledger", run: probeConcurrency},
	{Name: "global", Description: "global-domain limiters pace against one ledger", run: probeGlobal},
	{Name: "wrapper-errors", Description: "wrapped operation errors propagate once per call", run: probeWrapperErrors},
}

// Probes lists the available probes in run order.
func Probes() []Probe {
	out := make([]Probe, len(probes))
	copy(out, probes)
	return out
}

// Names lists the available probe names in run order.
func Names() []string {
	names := make([]string, 0, len(probes))
	for _, p := range probes {
		names = append(names, p.Name)
	}
	return names
}

func lookup(name string) (Probe, bool) {
	for _, p := range probes {
		if p.Name == name {
			return p, true
		}
	}
	return Probe{}, false
}

// Runner executes probes and records their outcome.
type Runner struct {
	logger *zap.Logger
}

// NewRunner returns a runner logging to logger. A nil logger is silent.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// Run executes the named probes, or all probes when names is empty.
// Unknown names fail before any probe runs.
func (r *Runner) Run(ctx context.Context, names ...string) (*Report, error) {
	selected, err := selectProbes(names)
	if err != nil {
		return nil, err
	}

	report := &Report{StartedAt: time.Now().UTC(), Passed: true}
	for _, p := range selected {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		r.logger.Debug("running probe", zap.String("probe", p.Name))
		start := time.Now()
		result := p.run(ctx)
		result.Name = p.Name
		result.Duration = time.Since(start)

		metrics.RecordProbe(p.Name, result.Passed, result.Duration)
		if result.Passed {
			r.logger.Info("probe passed", zap.String("probe", p.Name), zap.Duration("duration", result.Duration))
		} else {
			report.Passed = false
			report.Failures++
			r.logger.Warn("probe failed",
				zap.String("probe", p.Name),
				zap.String("detail", result.Detail),
				zap.Duration("duration", result.Duration))
		}
		report.Results = append(report.Results, result)
	}
	report.Duration = time.Since(report.StartedAt)
	return report, nil
}

// Run executes probes with a silent runner.
func Run(ctx context.Context, names ...string) (*Report, error) {
	return NewRunner(nil).Run(ctx, names...)
}

func selectProbes(names []string) ([]Probe, error) {
	if len(names) == 0 {
		return Probes(), nil
	}
	seen := make(map[string]bool, len(names))
	selected := make([]Probe, 0, len(names))
	var unknown []string
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		p, ok := lookup(name)
		if !ok {
			unknown = append(unknown, raw)
			continue
		}
		selected = append(selected, p)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown probe(s) %s (available: %s)",
			strings.Join(unknown, ", "), strings.Join(Names(), ", "))
	}
	return selected, nil
}

func gapsOf(stamps []time.Time) []time.Duration {
	out := make([]time.Duration, 0, len(stamps))
	for i := 1; i < len(stamps); i++ {
		out = append(out, stamps[i].Sub(stamps[i-1]))
	}
	return out
}

func sortedGaps(stamps []time.Time) []time.Duration {
	sorted := make([]time.Time, len(stamps))
	copy(sorted, stamps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	return gapsOf(sorted)
}

// floor is the smallest acceptable gap for rate.
func floor(rate float64) time.Duration {
	return time.Duration(float64(time.Second) / rate * Tolerance)
}

// shortest returns the index and value of the smallest gap.
func shortest(gaps []time.Duration) (int, time.Duration) {
	idx := -1
	var low time.Duration
	for i, g := range gaps {
		if idx < 0 || g < low {
			idx, low = i, g
		}
	}
	return idx, low
}

func checkGaps(gaps []time.Duration, min time.Duration) (bool, string) {
	if len(gaps) == 0 {
		return false, "no gaps measured"
	}
	idx, low := shortest(gaps)
	if low < min {
		return false, fmt.Sprintf("gap %d was %s, want >= %s", idx+1, low.Round(time.Millisecond), min.Round(time.Millisecond))
	}
	return true, fmt.Sprintf("%d gaps, shortest %s >= %s", len(gaps), low.Round(time.Millisecond), min.Round(time.Millisecond))
}

func failed(format string, args ...any) ProbeResult {
	return ProbeResult{Detail: fmt.Sprintf(format, args...)}
}

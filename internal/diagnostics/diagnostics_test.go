package diagnostics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamesListsEveryProbe(t *testing.T) {
	assert.Equal(t, []string{
		"pacing", "recovery", "cancellation", "isolation",
		"safe-mode", "concurrency", "global", "wrapper-errors",
	}, Names())
}

func TestRunRejectsUnknownProbe(t *testing.T) {
	report, err := Run(context.Background(), "pacing", "bogus")
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "bogus")
	assert.Contains(t, err.Error(), "wrapper-errors")
}

func TestRunSelectedProbes(t *testing.T) {
	report, err := Run(context.Background(), "Wrapper-Errors", "pacing", "pacing")
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	assert.Equal(t, "wrapper-errors", report.Results[0].Name)
	assert.Equal(t, "pacing", report.Results[1].Name)
	for _, r := range report.Results {
		assert.True(t, r.Passed, "%s: %s", r.Name, r.Detail)
		assert.Positive(t, r.Duration)
	}
	assert.True(t, report.Passed)
	assert.Zero(t, report.Failures)
	assert.Len(t, report.Results[1].Gaps, 3)
}

func TestRunAllProbesPass(t *testing.T) {
	if testing.Short() {
		t.Skip("timing probes take several seconds")
	}
	report, err := NewRunner(nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, len(Names()))
	for _, r := range report.Results {
		assert.True(t, r.Passed, "%s: %s", r.Name, r.Detail)
	}
	assert.True(t, report.Passed)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, report.Results)
}

func TestCheckGaps(t *testing.T) {
	ok, detail := checkGaps([]time.Duration{200 * time.Millisecond, 190 * time.Millisecond}, 180*time.Millisecond)
	assert.True(t, ok)
	assert.Contains(t, detail, "shortest 190ms")

	ok, detail = checkGaps([]time.Duration{200 * time.Millisecond, 100 * time.Millisecond}, 180*time.Millisecond)
	assert.False(t, ok)
	assert.Contains(t, detail, "gap 2")

	ok, _ = checkGaps(nil, time.Millisecond)
	assert.False(t, ok)
}

func TestSortedGapsOrdersStamps(t *testing.T) {
	base := time.Now()
	stamps := []time.Time{base.Add(2 * time.Second), base, base.Add(time.Second)}
	assert.Equal(t, []time.Duration{time.Second, time.Second}, sortedGaps(stamps))
}

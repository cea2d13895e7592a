//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/guardianhq/guardian/internal/config"
	"github.com/stretchr/testify/require"
)

func openMemoryStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), config.StoreConfig{
		Driver: "libsql",
		Path:   ":memory:",
	})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenMemoryStore(t *testing.T) {
	store := openMemoryStore(t)
	require.Equal(t, "libsql", store.Driver())

	// Migrations are idempotent.
	require.NoError(t, store.Migrate(context.Background()))
}

func TestSafeModeChangeRoundTrip(t *testing.T) {
	store := openMemoryStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := store.RecordSafeModeChange(ctx, SafeModeChange{
		Enabled:       true,
		RateLimit:     0.5,
		PrevRateLimit: 1,
		Source:        "api",
		Actor:         "ops",
		Reason:        "upstream 429 storm",
		RequestID:     "req-1",
		ChangedAt:     base,
	})
	require.NoError(t, err)

	id, err := store.RecordSafeModeChange(ctx, SafeModeChange{
		RateLimit:     0.5,
		PrevEnabled:   true,
		PrevRateLimit: 0.5,
		Source:        "api",
		ChangedAt:     base.Add(time.Minute),
	})
	require.NoError(t, err)
	require.Positive(t, id)

	_, err = store.RecordSafeModeChange(ctx, SafeModeChange{Enabled: true, RateLimit: 1})
	require.Error(t, err, "source is required")

	changes, err := store.ListSafeModeChanges(ctx, 10)
	require.NoError(t, err)
	require.Len(t, changes, 2)

	latest := changes[0]
	require.False(t, latest.Enabled)
	require.True(t, latest.PrevEnabled)
	require.Empty(t, latest.Reason)
	require.Equal(t, base.Add(time.Minute), latest.ChangedAt)

	first := changes[1]
	require.True(t, first.Enabled)
	require.Equal(t, 0.5, first.RateLimit)
	require.Equal(t, "ops", first.Actor)
	require.Equal(t, "upstream 429 storm", first.Reason)
	require.Equal(t, "req-1", first.RequestID)

	limited, err := store.ListSafeModeChanges(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestCheckRunRoundTrip(t *testing.T) {
	store := openMemoryStore(t)
	ctx := context.Background()

	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordCheckRun(ctx, CheckRun{
		ID:        "run-1",
		Passed:    false,
		Probes:    8,
		Failures:  1,
		Duration:  2500 * time.Millisecond,
		Report:    `{"passed":false}`,
		StartedAt: started,
	}))
	require.NoError(t, store.RecordCheckRun(ctx, CheckRun{
		ID:        "run-2",
		Passed:    true,
		Probes:    8,
		StartedAt: started.Add(time.Hour),
	}))
	require.Error(t, store.RecordCheckRun(ctx, CheckRun{}))

	runs, err := store.ListCheckRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "run-2", runs[0].ID)
	require.True(t, runs[0].Passed)
	require.Equal(t, "run-1", runs[1].ID)
	require.Equal(t, 1, runs[1].Failures)
	require.Equal(t, 2500*time.Millisecond, runs[1].Duration)
	require.Equal(t, started, runs[1].StartedAt)
	require.Empty(t, runs[1].Report)
}

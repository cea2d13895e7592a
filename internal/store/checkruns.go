package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CheckRun is a stored diagnostics report summary. Report holds the
// rendered JSON report.
type CheckRun struct {
	ID        string        `json:"id" yaml:"id"`
	Passed    bool          `json:"passed" yaml:"passed"`
	Probes    int           `json:"probes" yaml:"probes"`
	Failures  int           `json:"failures" yaml:"failures"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Report    string        `json:"report,omitempty" yaml:"report,omitempty"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
}

// RecordCheckRun stores run, replacing any run with the same id.
func (s *Store) RecordCheckRun(ctx context.Context, run CheckRun) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	id := strings.TrimSpace(run.ID)
	if id == "" {
		return errors.New("run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT OR REPLACE INTO check_runs (id, passed, probes, failures, duration_ms, report, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, boolToInt(run.Passed), run.Probes, run.Failures, run.Duration.Milliseconds(), run.Report,
		run.StartedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("record check run: %w", err)
	}
	return nil
}

// ListCheckRuns returns the most recent runs first, without report bodies.
func (s *Store) ListCheckRuns(ctx context.Context, limit int) ([]CheckRun, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, passed, probes, failures, duration_ms, started_at
		FROM check_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list check runs: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var runs []CheckRun
	for rows.Next() {
		var (
			run        CheckRun
			passed     int
			durationMS int64
			startedAt  int64
		)
		if err := rows.Scan(&run.ID, &passed, &run.Probes, &run.Failures, &durationMS, &startedAt); err != nil {
			return nil, fmt.Errorf("scan check run: %w", err)
		}
		run.Passed = passed != 0
		run.Duration = time.Duration(durationMS) * time.Millisecond
		run.StartedAt = time.UnixMilli(startedAt).UTC()
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list check runs: %w", err)
	}

	return runs, nil
}

package limiter

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ledger holds the earliest instant at which the next admission may proceed.
// All reads and writes of next happen while holding sem.
type ledger struct {
	sem  *semaphore.Weighted
	next time.Time
	now  func() time.Time

	// published mirrors next in unix nanoseconds for lock-free reporting.
	published atomic.Int64
}

func newLedger(now func() time.Time) *ledger {
	if now == nil {
		now = time.Now
	}
	return &ledger{
		sem: semaphore.NewWeighted(1),
		now: now,
	}
}

// waitFor returns how long an admission at now must wait.
func (l *ledger) waitFor(now time.Time) time.Duration {
	if l.next.IsZero() {
		return 0
	}
	if d := l.next.Sub(now); d > 0 {
		return d
	}
	return 0
}

// commit records an admission at now. An idle ledger carries no debt: the
// schedule restarts from now rather than from a stale next.
func (l *ledger) commit(now time.Time, interval time.Duration) {
	base := l.next
	if now.After(base) {
		base = now
	}
	l.next = base.Add(interval)
	l.published.Store(l.next.UnixNano())
}

// acquire blocks until the caller may proceed. interval is evaluated once,
// after entering the exclusion, so rate changes made while the caller was
// queued are honoured but never applied to a wait already computed.
// On cancellation next is left untouched.
func (l *ledger) acquire(ctx context.Context, interval func() time.Duration) (time.Duration, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer l.sem.Release(1)

	iv := interval()
	now := l.now()
	wait := l.waitFor(now)
	if wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		}
		now = l.now()
	}

	l.commit(now, iv)
	return wait, nil
}

// nextEligible reports the last committed next without entering the
// exclusion. The zero time means no admission has happened yet.
func (l *ledger) nextEligible() time.Time {
	ns := l.published.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

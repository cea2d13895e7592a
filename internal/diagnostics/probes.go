package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guardianhq/guardian/internal/limiter"
)

func acquireN(ctx context.Context, l *limiter.Limiter, n int) ([]time.Time, error) {
	stamps := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		if err := l.Acquire(ctx); err != nil {
			return stamps, err
		}
		stamps = append(stamps, time.Now())
	}
	return stamps, nil
}

func isolated(rate float64, domain limiter.Domain, opts ...limiter.Option) (*limiter.Limiter, error) {
	opts = append([]limiter.Option{limiter.WithCoordinator(limiter.NewCoordinator())}, opts...)
	return limiter.New(rate, domain, opts...)
}

func probePacing(ctx context.Context) ProbeResult {
	const rate = 5.0
	l, err := isolated(rate, limiter.DomainShared, limiter.WithName("probe-pacing"))
	if err != nil {
		return failed("construct: %v", err)
	}
	stamps, err := acquireN(ctx, l, 4)
	if err != nil {
		return failed("acquire: %v", err)
	}
	gaps := gapsOf(stamps)
	ok, detail := checkGaps(gaps, floor(rate))
	return ProbeResult{Passed: ok, Detail: detail, Gaps: gaps}
}

func probeRecovery(ctx context.Context) ProbeResult {
	const rate = 5.0
	l, err := isolated(rate, limiter.DomainShared, limiter.WithName("probe-recovery"))
	if err != nil {
		return failed("construct: %v", err)
	}
	stamps, err := acquireN(ctx, l, 3)
	if err != nil {
		return failed("acquire: %v", err)
	}
	gaps := gapsOf(stamps)
	if ok, detail := checkGaps(gaps, floor(rate)); !ok {
		return ProbeResult{Detail: detail, Gaps: gaps}
	}

	select {
	case <-ctx.Done():
		return failed("idle: %v", ctx.Err())
	case <-time.After(time.Second):
	}

	start := time.Now()
	if err := l.Acquire(ctx); err != nil {
		return failed("acquire after idle: %v", err)
	}
	waited := time.Since(start)
	limit := limiter.Budget{Rate: rate}.Interval() / 4
	if waited > limit {
		return ProbeResult{Detail: fmt.Sprintf("admission after idle waited %s, want <= %s", waited.Round(time.Millisecond), limit), Gaps: gaps}
	}
	return ProbeResult{Passed: true, Detail: fmt.Sprintf("admission after 1s idle waited %s", waited.Round(time.Millisecond)), Gaps: gaps}
}

func probeCancellation(ctx context.Context) ProbeResult {
	const rate = 2.0
	interval := limiter.Budget{Rate: rate}.Interval()
	l, err := isolated(rate, limiter.DomainShared, limiter.WithName("probe-cancellation"))
	if err != nil {
		return failed("construct: %v", err)
	}
	if err := l.Acquire(ctx); err != nil {
		return failed("first acquire: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, interval/5)
	err = l.Acquire(waitCtx)
	cancel()
	if !errors.Is(err, context.DeadlineExceeded) {
		return failed("cancelled acquire returned %v, want deadline exceeded", err)
	}

	start := time.Now()
	if err := l.Acquire(ctx); err != nil {
		return failed("retry: %v", err)
	}
	resumed := time.Since(start)
	if resumed >= interval {
		return failed("retry waited %s, want < %s", resumed.Round(time.Millisecond), interval)
	}
	if l.Stats().Cancelled != 1 {
		return failed("cancelled count %d, want 1", l.Stats().Cancelled)
	}
	return ProbeResult{Passed: true, Detail: fmt.Sprintf("retry resumed after %s (< %s)", resumed.Round(time.Millisecond), interval)}
}

func probeIsolation(ctx context.Context) ProbeResult {
	const rate = 5.0
	interval := limiter.Budget{Rate: rate}.Interval()
	owner := limiter.NewScope("probe-owner")
	intruder := limiter.NewScope("probe-intruder")

	l, err := isolated(rate, limiter.DomainScoped, limiter.WithName("probe-isolation"), limiter.WithOwner(owner))
	if err != nil {
		return failed("construct: %v", err)
	}
	ownerCtx := limiter.WithScope(ctx, owner)
	if err := l.Acquire(ownerCtx); err != nil {
		return failed("owner acquire: %v", err)
	}
	first := time.Now()

	start := time.Now()
	err = l.Acquire(limiter.WithScope(ctx, intruder))
	rejectedIn := time.Since(start)
	var violation *limiter.IsolationViolation
	if !errors.As(err, &violation) {
		return failed("foreign scope returned %v, want isolation violation", err)
	}
	if rejectedIn >= interval/2 {
		return failed("violation raised after %s, want before any wait", rejectedIn.Round(time.Millisecond))
	}

	if err := l.Acquire(ownerCtx); err != nil {
		return failed("owner retry: %v", err)
	}
	gap := time.Since(first)
	if gap < floor(rate) || gap > interval+interval/2 {
		return ProbeResult{Detail: fmt.Sprintf("owner gap %s, want one interval (%s)", gap.Round(time.Millisecond), interval), Gaps: []time.Duration{gap}}
	}
	return ProbeResult{
		Passed: true,
		Detail: fmt.Sprintf("violation raised in %s; owner gap %s", rejectedIn.Round(time.Microsecond), gap.Round(time.Millisecond)),
		Gaps:   []time.Duration{gap},
	}
}

func probeSafeMode(ctx context.Context) ProbeResult {
	const (
		rate     = 10.0
		override = 2.0
	)
	coord := limiter.NewCoordinator()
	l, err := limiter.New(rate, limiter.DomainShared, limiter.WithName("probe-safe-mode"), limiter.WithCoordinator(coord))
	if err != nil {
		return failed("construct: %v", err)
	}

	if err := coord.SafeMode().Enable(override); err != nil {
		return failed("enable: %v", err)
	}
	slow, err := acquireN(ctx, l, 3)
	if err != nil {
		return failed("acquire under safe mode: %v", err)
	}
	coord.SafeMode().Disable()
	fast, err := acquireN(ctx, l, 3)
	if err != nil {
		return failed("acquire after disable: %v", err)
	}

	slowGaps := gapsOf(slow)
	fastGaps := gapsOf(fast)
	gaps := append(append([]time.Duration{}, slowGaps...), fastGaps...)
	if ok, detail := checkGaps(slowGaps, floor(override)); !ok {
		return ProbeResult{Detail: "enabled: " + detail, Gaps: gaps}
	}
	ok, detail := checkGaps(fastGaps, floor(rate))
	if !ok {
		return ProbeResult{Detail: "disabled: " + detail, Gaps: gaps}
	}
	if _, high := longest(fastGaps); high >= floor(override) {
		return ProbeResult{Detail: fmt.Sprintf("disabled gaps still throttled (%s)", high.Round(time.Millisecond)), Gaps: gaps}
	}
	return ProbeResult{Passed: true, Detail: "enabled and disabled intervals honoured; " + detail, Gaps: gaps}
}

func probeConcurrency(ctx context.Context) ProbeResult {
	const (
		rate    = 20.0
		workers = 5
		each    = 5
	)
	l, err := isolated(rate, limiter.DomainShared, limiter.WithName("probe-concurrency"))
	if err != nil {
		return failed("construct: %v", err)
	}

	var (
		mu     sync.Mutex
		stamps = make([]time.Time, 0, workers*each)
	)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < each; i++ {
				if err := l.Acquire(gctx); err != nil {
					return err
				}
				now := time.Now()
				mu.Lock()
				stamps = append(stamps, now)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return failed("worker: %v", err)
	}
	if len(stamps) != workers*each {
		return failed("admitted %d, want %d", len(stamps), workers*each)
	}
	gaps := sortedGaps(stamps)
	ok, detail := checkGaps(gaps, floor(rate))
	return ProbeResult{Passed: ok, Detail: detail, Gaps: gaps}
}

func probeGlobal(ctx context.Context) ProbeResult {
	coord := limiter.NewCoordinator(limiter.WithPolicy(limiter.PolicyMinimum))
	fast, err := limiter.New(10, limiter.DomainGlobal, limiter.WithName("probe-global-fast"), limiter.WithCoordinator(coord))
	if err != nil {
		return failed("construct: %v", err)
	}
	slow, err := limiter.New(5, limiter.DomainGlobal, limiter.WithName("probe-global-slow"), limiter.WithCoordinator(coord))
	if err != nil {
		return failed("construct: %v", err)
	}

	stamps := make([]time.Time, 0, 4)
	for i := 0; i < 4; i++ {
		l := fast
		if i%2 == 1 {
			l = slow
		}
		if err := l.Acquire(ctx); err != nil {
			return failed("acquire %s: %v", l.Name(), err)
		}
		stamps = append(stamps, time.Now())
	}
	gaps := gapsOf(stamps)
	ok, detail := checkGaps(gaps, floor(coord.GlobalRate()))
	return ProbeResult{Passed: ok, Detail: fmt.Sprintf("global rate %g/s; %s", coord.GlobalRate(), detail), Gaps: gaps}
}

var errProbeOperation = errors.New("probe operation failed")

func probeWrapperErrors(ctx context.Context) ProbeResult {
	l, err := isolated(50, limiter.DomainShared, limiter.WithName("probe-wrapper"))
	if err != nil {
		return failed("construct: %v", err)
	}

	calls := 0
	wrapped := limiter.Wrap(l, func(ctx context.Context, n int) (int, error) {
		calls++
		return 0, fmt.Errorf("call %d: %w", n, errProbeOperation)
	})

	const attempts = 3
	for i := 1; i <= attempts; i++ {
		_, err := wrapped(ctx, i)
		if !errors.Is(err, errProbeOperation) {
			return failed("call %d returned %v, want the operation error", i, err)
		}
		if calls != i {
			return failed("operation ran %d times after %d calls", calls, i)
		}
	}
	return ProbeResult{Passed: true, Detail: fmt.Sprintf("%d calls, %d invocations, error propagated each time", attempts, calls)}
}

func longest(gaps []time.Duration) (int, time.Duration) {
	idx := -1
	var high time.Duration
	for i, g := range gaps {
		if idx < 0 || g > high {
			idx, high = i, g
		}
	}
	return idx, high
}

package limiter

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Limiter admits callers no faster than its effective rate.
type Limiter struct {
	name     string
	budget   Budget
	domain   Domain
	coord    *Coordinator
	ledger   *ledger
	guard    *affinityGuard
	logger   *zap.Logger
	observer Observer

	admitted   atomic.Uint64
	cancelled  atomic.Uint64
	violations atomic.Uint64
	waited     atomic.Int64
}

type options struct {
	name     string
	owner    *Scope
	coord    *Coordinator
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*options)

// WithName labels the limiter in logs, metrics and registries.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithOwner binds a scoped limiter at construction instead of first use.
func WithOwner(s Scope) Option {
	return func(o *options) {
		o.owner = &s
	}
}

// WithCoordinator attaches the limiter to c instead of Default().
func WithCoordinator(c *Coordinator) Option {
	return func(o *options) {
		o.coord = c
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithClock overrides the clock of a private ledger. Global limiters use
// the coordinator's clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New returns a limiter admitting at most rate callers per second.
func New(rate float64, domain Domain, opts ...Option) (*Limiter, error) {
	budget, err := NewBudget(rate)
	if err != nil {
		return nil, err
	}
	if !domain.valid() {
		return nil, &ConfigurationError{Field: "domain", Value: int(domain), Err: ErrUnknownDomain}
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.coord == nil {
		o.coord = Default()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.name == "" {
		o.name = domain.String() + "-" + uuid.NewString()[:8]
	}

	l := &Limiter{
		name:     o.name,
		budget:   budget,
		domain:   domain,
		coord:    o.coord,
		logger:   o.logger.With(zap.String("limiter", o.name), zap.Stringer("domain", domain)),
		observer: o.observer,
	}

	switch domain {
	case DomainGlobal:
		l.ledger = o.coord.global
		o.coord.register(rate)
	case DomainScoped:
		l.ledger = newLedger(o.now)
		l.guard = newAffinityGuard(o.owner)
	default:
		l.ledger = newLedger(o.now)
	}
	return l, nil
}

// MustNew is New for static configuration; it panics on error.
func MustNew(rate float64, domain Domain, opts ...Option) *Limiter {
	l, err := New(rate, domain, opts...)
	if err != nil {
		panic(err)
	}
	return l
}

// Acquire blocks until the caller may proceed or ctx is done. A scoped
// limiter called from a foreign scope returns *IsolationViolation without
// waiting and without consuming a slot.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		l.noteCancelled()
		return err
	}

	if l.guard != nil {
		caller := ScopeFrom(ctx)
		if err := l.guard.check(l.name, caller); err != nil {
			l.violations.Add(1)
			l.observer.IsolationViolation(l.name, l.domain)
			l.logger.Warn("isolation violation", zap.Stringer("caller_scope", caller), zap.Error(err))
			return err
		}
	}

	wait, err := l.ledger.acquire(ctx, l.interval)
	if err != nil {
		l.noteCancelled()
		return err
	}

	l.admitted.Add(1)
	l.waited.Add(int64(wait))
	l.observer.Admitted(l.name, l.domain, wait)
	if wait > 0 {
		l.logger.Debug("admission throttled", zap.Duration("wait", wait))
	}
	return nil
}

func (l *Limiter) noteCancelled() {
	l.cancelled.Add(1)
	l.observer.Cancelled(l.name, l.domain)
}

func (l *Limiter) interval() time.Duration {
	return intervalFor(l.EffectiveRate())
}

// EffectiveRate is the rate the next admission will be paced at.
func (l *Limiter) EffectiveRate() float64 {
	rate := l.budget.Rate
	if l.domain == DomainGlobal {
		rate = l.coord.globalRate(rate)
	}
	return l.coord.safeMode.Effective(rate)
}

func (l *Limiter) Name() string { return l.name }

func (l *Limiter) Rate() float64 { return l.budget.Rate }

func (l *Limiter) Domain() Domain { return l.domain }

func (l *Limiter) Coordinator() *Coordinator { return l.coord }

// Owner returns the bound scope of a scoped limiter.
func (l *Limiter) Owner() (Scope, bool) {
	if l.guard == nil {
		return Scope{}, false
	}
	return l.guard.current()
}

// Stats are cumulative admission counters.
type Stats struct {
	Admitted   uint64        `json:"admitted" yaml:"admitted"`
	Cancelled  uint64        `json:"cancelled" yaml:"cancelled"`
	Violations uint64        `json:"isolation_violations" yaml:"isolation_violations"`
	TotalWait  time.Duration `json:"total_wait_ns" yaml:"total_wait_ns"`
}

func (l *Limiter) Stats() Stats {
	return Stats{
		Admitted:   l.admitted.Load(),
		Cancelled:  l.cancelled.Load(),
		Violations: l.violations.Load(),
		TotalWait:  time.Duration(l.waited.Load()),
	}
}

// Info is a point-in-time description of a limiter.
type Info struct {
	Name          string     `json:"name" yaml:"name"`
	Domain        Domain     `json:"domain" yaml:"domain"`
	Rate          float64    `json:"rate" yaml:"rate"`
	EffectiveRate float64    `json:"effective_rate" yaml:"effective_rate"`
	Owner         string     `json:"owner,omitempty" yaml:"owner,omitempty"`
	NextEligible  *time.Time `json:"next_eligible,omitempty" yaml:"next_eligible,omitempty"`
	Stats         Stats      `json:"stats" yaml:"stats"`
}

func (l *Limiter) Info() Info {
	info := Info{
		Name:          l.name,
		Domain:        l.domain,
		Rate:          l.budget.Rate,
		EffectiveRate: l.EffectiveRate(),
		Stats:         l.Stats(),
	}
	if next := l.ledger.nextEligible(); !next.IsZero() {
		info.NextEligible = &next
	}
	if owner, ok := l.Owner(); ok {
		info.Owner = owner.String()
	}
	return info
}

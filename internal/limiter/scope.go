package limiter

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Scope identifies a single-threaded scheduling context: an event loop, a
// worker goroutine, or any task group that must own its limiters exclusively.
// The zero Scope means "unscoped".
type Scope struct {
	id   uuid.UUID
	name string
}

// NewScope returns a scope with a fresh identity.
func NewScope(name string) Scope {
	return Scope{id: uuid.New(), name: name}
}

func (s Scope) ID() uuid.UUID { return s.id }

func (s Scope) Name() string { return s.name }

func (s Scope) IsZero() bool { return s.id == uuid.Nil }

// Equal compares identities; names are labels only.
func (s Scope) Equal(other Scope) bool { return s.id == other.id }

func (s Scope) String() string {
	if s.IsZero() {
		return "unscoped"
	}
	short := s.id.String()[:8]
	if s.name == "" {
		return short
	}
	return s.name + "/" + short
}

type scopeKey struct{}

// WithScope returns a context carrying s.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope carried by ctx, or the zero Scope.
func ScopeFrom(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	if s, ok := ctx.Value(scopeKey{}).(Scope); ok {
		return s
	}
	return Scope{}
}

// affinityGuard binds a limiter to the first scope that uses it, or to an
// owner fixed at construction.
type affinityGuard struct {
	mu    sync.Mutex
	owner Scope
	bound bool
}

func newAffinityGuard(owner *Scope) *affinityGuard {
	g := &affinityGuard{}
	if owner != nil {
		g.owner = *owner
		g.bound = true
	}
	return g
}

func (g *affinityGuard) check(limiter string, caller Scope) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.bound {
		g.owner = caller
		g.bound = true
		return nil
	}
	if g.owner.Equal(caller) {
		return nil
	}
	return &IsolationViolation{Limiter: limiter, Owner: g.owner, Caller: caller}
}

func (g *affinityGuard) current() (Scope, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.owner, g.bound
}

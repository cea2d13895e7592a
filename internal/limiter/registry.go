package limiter

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Spec declares a named limiter.
type Spec struct {
	Name   string  `json:"name" yaml:"name"`
	Rate   float64 `json:"rate" yaml:"rate"`
	Domain Domain  `json:"domain" yaml:"domain"`
}

// Registry holds the named limiters consumed by subsystems.
type Registry struct {
	coord *Coordinator
	opts  []Option

	mu       sync.RWMutex
	limiters map[string]*Limiter
}

// NewRegistry returns a registry whose limiters share coord and opts.
func NewRegistry(coord *Coordinator, opts ...Option) *Registry {
	if coord == nil {
		coord = Default()
	}
	return &Registry{
		coord:    coord,
		opts:     opts,
		limiters: make(map[string]*Limiter),
	}
}

func (r *Registry) Coordinator() *Coordinator { return r.coord }

// Register builds and stores the limiter described by spec.
func (r *Registry) Register(spec Spec) (*Limiter, error) {
	if spec.Name == "" {
		return nil, &ConfigurationError{Field: "name", Value: spec.Name, Err: errors.New("name is required")}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.limiters[spec.Name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateLimiter, spec.Name)
	}

	opts := make([]Option, 0, len(r.opts)+2)
	opts = append(opts, r.opts...)
	opts = append(opts, WithName(spec.Name), WithCoordinator(r.coord))
	l, err := New(spec.Rate, spec.Domain, opts...)
	if err != nil {
		return nil, fmt.Errorf("limiter %s: %w", spec.Name, err)
	}
	r.limiters[spec.Name] = l
	return l, nil
}

func (r *Registry) Get(name string) (*Limiter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.limiters[name]
	return l, ok
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.limiters))
	for name := range r.limiters {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Snapshot describes every registered limiter, sorted by name.
func (r *Registry) Snapshot() []Info {
	names := r.Names()
	infos := make([]Info, 0, len(names))
	for _, name := range names {
		if l, ok := r.Get(name); ok {
			infos = append(infos, l.Info())
		}
	}
	return infos
}

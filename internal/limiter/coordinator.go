package limiter

import (
	"strings"
	"sync"
	"time"
)

// GlobalPolicy decides which declared rate governs the global ledger.
type GlobalPolicy string

const (
	// PolicyMinimum paces the global ledger at the slowest declared rate.
	PolicyMinimum GlobalPolicy = "minimum"
	// PolicyMostRecent paces each admission at the caller's own rate.
	PolicyMostRecent GlobalPolicy = "most-recent"
)

// ParseGlobalPolicy maps a config string to a policy. Empty means minimum.
func ParseGlobalPolicy(s string) (GlobalPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "minimum", "min":
		return PolicyMinimum, nil
	case "most-recent", "most_recent", "caller":
		return PolicyMostRecent, nil
	default:
		return "", &ConfigurationError{Field: "global.policy", Value: s, Err: ErrUnknownPolicy}
	}
}

// Coordinator owns the state shared by a family of limiters: the global
// ledger and the safe-mode switch.
type Coordinator struct {
	safeMode *SafeMode
	global   *ledger
	now      func() time.Time

	mu      sync.RWMutex
	policy  GlobalPolicy
	members int
	minRate float64
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithPolicy sets the global policy.
func WithPolicy(p GlobalPolicy) CoordinatorOption {
	return func(c *Coordinator) {
		c.policy = p
	}
}

// WithCoordinatorClock overrides the clock used by the global ledger.
func WithCoordinatorClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator returns an isolated coordinator.
func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		safeMode: newSafeMode(),
		policy:   PolicyMinimum,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.global = newLedger(c.now)
	return c
}

var defaultCoordinator = NewCoordinator()

// Default returns the process-wide coordinator.
func Default() *Coordinator {
	return defaultCoordinator
}

// SafeMode returns the coordinator's emergency throttle.
func (c *Coordinator) SafeMode() *SafeMode {
	return c.safeMode
}

func (c *Coordinator) Policy() GlobalPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.policy
}

// SetPolicy changes the global policy for subsequent admissions.
func (c *Coordinator) SetPolicy(p GlobalPolicy) error {
	parsed, err := ParseGlobalPolicy(string(p))
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policy = parsed
	return nil
}

// GlobalMembers returns how many global limiters have registered.
func (c *Coordinator) GlobalMembers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.members
}

// GlobalRate returns the slowest declared global rate, or 0 with no members.
func (c *Coordinator) GlobalRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.minRate
}

func (c *Coordinator) register(rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.members == 0 || rate < c.minRate {
		c.minRate = rate
	}
	c.members++
}

// globalRate resolves the declared rate a global admission is paced at.
func (c *Coordinator) globalRate(declared float64) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.policy == PolicyMinimum && c.members > 0 && c.minRate < declared {
		return c.minRate
	}
	return declared
}

// NextEligible reports when the global ledger next admits.
func (c *Coordinator) NextEligible() time.Time {
	return c.global.nextEligible()
}

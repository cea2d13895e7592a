package limiter

import (
	"sync"
	"sync/atomic"
)

// DefaultSafeModeRate is the override applied when safe mode is enabled
// without an explicit rate.
const DefaultSafeModeRate = 1.0

// SafeModeState is the emergency throttle setting.
type SafeModeState struct {
	Enabled bool    `json:"enabled" yaml:"enabled"`
	Rate    float64 `json:"rate_limit" yaml:"rate_limit"`
}

// SafeMode is a process-wide switch capping every limiter's effective rate.
// Reads are lock-free; writers are serialised.
type SafeMode struct {
	state atomic.Pointer[SafeModeState]

	mu        sync.Mutex
	listeners []func(prev, next SafeModeState)
}

func newSafeMode() *SafeMode {
	s := &SafeMode{}
	s.state.Store(&SafeModeState{Rate: DefaultSafeModeRate})
	return s
}

// State returns the current setting.
func (s *SafeMode) State() SafeModeState {
	return *s.state.Load()
}

// Enabled reports whether the override is active.
func (s *SafeMode) Enabled() bool {
	return s.state.Load().Enabled
}

// Enable turns the override on at rate.
func (s *SafeMode) Enable(rate float64) error {
	return s.Set(SafeModeState{Enabled: true, Rate: rate})
}

// Disable turns the override off, keeping the last rate for reporting.
func (s *SafeMode) Disable() {
	_, _, _ = s.Update(func(st SafeModeState) SafeModeState {
		st.Enabled = false
		return st
	})
}

// Set replaces the setting. Waits already computed are not affected.
func (s *SafeMode) Set(next SafeModeState) error {
	_, err := s.Swap(next)
	return err
}

// Swap replaces the setting and returns the one it replaced.
func (s *SafeMode) Swap(next SafeModeState) (SafeModeState, error) {
	prev, _, err := s.Update(func(SafeModeState) SafeModeState { return next })
	return prev, err
}

// Update applies fn to the current setting and stores the result in one
// step, so concurrent partial updates are not lost. fn runs under the
// writer lock and must not call back into s.
func (s *SafeMode) Update(fn func(SafeModeState) SafeModeState) (prev, next SafeModeState, err error) {
	s.mu.Lock()
	prev = *s.state.Load()
	next = fn(prev)
	if err := validateRate("safe_mode.rate_limit", next.Rate); err != nil {
		s.mu.Unlock()
		return prev, prev, err
	}
	s.state.Store(&next)
	listeners := make([]func(SafeModeState, SafeModeState), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(prev, next)
	}
	return prev, next, nil
}

// OnChange registers fn to run after every Set, outside the writer lock.
func (s *SafeMode) OnChange(fn func(prev, next SafeModeState)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Effective returns min(rate, override) while enabled, else rate.
func (s *SafeMode) Effective(rate float64) float64 {
	st := s.state.Load()
	if st.Enabled && st.Rate < rate {
		return st.Rate
	}
	return rate
}

package limiter

import (
	"errors"
	"fmt"
)

var (
	// ErrIsolationViolation matches any *IsolationViolation via errors.Is.
	ErrIsolationViolation = errors.New("limiter used outside its owning scope")

	// ErrInvalidRate is wrapped by ConfigurationError for non-positive rates.
	ErrInvalidRate = errors.New("rate must be a positive finite number")

	// ErrUnknownDomain is wrapped by ConfigurationError for unrecognised domains.
	ErrUnknownDomain = errors.New("unknown concurrency domain")

	// ErrUnknownPolicy is returned for unrecognised global policies.
	ErrUnknownPolicy = errors.New("unknown global policy")

	// ErrDuplicateLimiter is returned when a registry already holds a name.
	ErrDuplicateLimiter = errors.New("limiter already registered")
)

// IsolationViolation reports a scoped limiter driven from a scope other than
// the one it is bound to. Timing state is untouched when it is returned.
type IsolationViolation struct {
	Limiter string
	Owner   Scope
	Caller  Scope
}

func (e *IsolationViolation) Error() string {
	return fmt.Sprintf("limiter %q is bound to scope %s but was called from scope %s",
		e.Limiter, e.Owner, e.Caller)
}

// Is lets errors.Is(err, ErrIsolationViolation) match.
func (e *IsolationViolation) Is(target error) bool {
	return target == ErrIsolationViolation
}

// ConfigurationError reports an invalid construction or safe-mode parameter.
type ConfigurationError struct {
	Field string
	Value any
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

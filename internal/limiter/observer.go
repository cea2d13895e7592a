package limiter

import "time"

// Observer receives admission outcomes. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	Admitted(name string, domain Domain, wait time.Duration)
	Cancelled(name string, domain Domain)
	IsolationViolation(name string, domain Domain)
}

type nopObserver struct{}

func (nopObserver) Admitted(string, Domain, time.Duration) {}
func (nopObserver) Cancelled(string, Domain)               {}
func (nopObserver) IsolationViolation(string, Domain)      {}

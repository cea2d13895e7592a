package metrics

import (
	"time"

	"github.com/guardianhq/guardian/internal/limiter"
	"github.com/guardianhq/guardian/internal/observability"
)

// Limiter metric names
const (
	LimiterAdmissionsTotal    = "limiter_admissions_total"
	LimiterWaitMS             = "limiter_wait_ms"
	LimiterCancellationsTotal = "limiter_cancellations_total"
	LimiterViolationsTotal    = "limiter_isolation_violations_total"
	SafeModeEnabled           = "safe_mode_enabled"
	SafeModeRate              = "safe_mode_rate_limit"
)

// TelemetryObserver forwards limiter outcomes to the telemetry system.
// It does nothing while telemetry is not initialised.
type TelemetryObserver struct{}

var _ limiter.Observer = TelemetryObserver{}

func (TelemetryObserver) Admitted(name string, domain limiter.Domain, wait time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	labels := limiterLabels(name, domain)
	_ = observability.TelemetrySystem.Counter(LimiterAdmissionsTotal, 1, labels)
	_ = observability.TelemetrySystem.Histogram(LimiterWaitMS, wait, labels)
}

func (TelemetryObserver) Cancelled(name string, domain limiter.Domain) {
	count(LimiterCancellationsTotal, limiterLabels(name, domain))
}

func (TelemetryObserver) IsolationViolation(name string, domain limiter.Domain) {
	count(LimiterViolationsTotal, limiterLabels(name, domain))
}

// SetSafeMode publishes the current safe-mode state as gauges.
func SetSafeMode(enabled bool, rate float64) {
	value := 0.0
	if enabled {
		value = 1
	}
	gauge(SafeModeEnabled, value, nil)
	gauge(SafeModeRate, rate, nil)
}

// WatchSafeMode keeps the safe-mode gauges in step with s.
func WatchSafeMode(s *limiter.SafeMode, source string) {
	st := s.State()
	SetSafeMode(st.Enabled, st.Rate)
	s.OnChange(func(_, next limiter.SafeModeState) {
		RecordSafeModeChange(next.Enabled, next.Rate, source)
	})
}

func limiterLabels(name string, domain limiter.Domain) map[string]string {
	return map[string]string{
		"limiter": name,
		"domain":  domain.String(),
	}
}

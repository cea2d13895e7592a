package metrics

import (
	"time"

	"github.com/guardianhq/guardian/internal/observability"
)

// Process-level metric names
const (
	SafeModeChangesTotal = "safe_mode_changes_total"
	ProbeRunsTotal       = "diagnostics_probe_runs_total"
	ProbeDurationMS      = "diagnostics_probe_duration_ms"
	HealthCheckTotal     = "app_health_check_total"
	ServerStartTime      = "app_server_start_time_seconds"
)

// RecordSafeModeChange counts a safe-mode transition and refreshes the
// safe-mode gauges. source is "api", "config", "reload" or "server".
func RecordSafeModeChange(enabled bool, rate float64, source string) {
	count(SafeModeChangesTotal, map[string]string{
		"state":  pick(enabled, "enabled", "disabled"),
		"source": source,
	})
	SetSafeMode(enabled, rate)
}

// RecordProbe counts a self-check probe and observes its duration.
func RecordProbe(name string, passed bool, duration time.Duration) {
	count(ProbeRunsTotal, map[string]string{
		"probe":  name,
		"status": pick(passed, "passed", "failed"),
	})
	if tel := observability.TelemetrySystem; tel != nil {
		_ = tel.Histogram(ProbeDurationMS, duration, map[string]string{"probe": name})
	}
}

func RecordHealthCheck(checkName string, healthy bool) {
	count(HealthCheckTotal, map[string]string{
		"check":  checkName,
		"status": pick(healthy, "healthy", "unhealthy"),
	})
}

// SetServerStartTime publishes the server start as a Unix timestamp.
func SetServerStartTime(timestamp int64) {
	gauge(ServerStartTime, float64(timestamp), nil)
}

func gauge(name string, value float64, labels map[string]string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(name, value, labels)
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

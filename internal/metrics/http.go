package metrics

import (
	"strconv"

	"github.com/guardianhq/guardian/internal/observability"
)

// Admin API error metrics
const (
	ErrorsTotal          = "errors_total"
	PanicsTotal          = "panics_total"
	ErrorsByEndpoint     = "errors_by_endpoint"
	AdminRejectionsTotal = "admin_rejections_total"
)

// RecordError counts an error response by envelope code and HTTP status.
func RecordError(errorCode string, httpStatus int) {
	count(ErrorsTotal, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
	})
}

// RecordPanic counts a recovered handler panic.
func RecordPanic() {
	count(PanicsTotal, nil)
}

// RecordErrorByEndpoint counts an error against a route pattern. Callers
// pass the pattern, never the raw path.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	count(ErrorsByEndpoint, map[string]string{
		"endpoint":   endpoint,
		"error_code": errorCode,
	})
}

// RecordAdminRejection counts a mutating admin call refused before it
// reached its handler. reason is "unauthorized" or "throttled".
func RecordAdminRejection(reason string) {
	count(AdminRejectionsTotal, map[string]string{"reason": reason})
}

func count(name string, labels map[string]string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(name, 1, labels)
}

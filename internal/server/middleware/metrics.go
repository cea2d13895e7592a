package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/guardianhq/guardian/internal/observability"
)

// statusRecorder captures the status and body size written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// staticEndpoints label requests that reach no chi route.
var staticEndpoints = map[string]string{
	"/":               "/",
	"/health":         "/health/*",
	"/health/live":    "/health/*",
	"/health/ready":   "/health/*",
	"/health/startup": "/health/*",
	"/version":        "/version",
	"/metrics":        "/metrics",
	"/v1/safe-mode":   "/v1/safe-mode",
	"/v1/limiters":    "/v1/limiters",
}

// getEndpointPattern returns a bounded-cardinality label for r. Limiter
// names never appear in it.
func getEndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	path := r.URL.Path
	if label, ok := staticEndpoints[path]; ok {
		return label
	}
	if strings.HasPrefix(path, "/v1/limiters/") {
		return "/v1/limiters/{name}"
	}
	return "/unknown"
}

// quietEndpoint reports whether endpoint is polled by probes or scrapers.
// Those requests log at debug.
func quietEndpoint(endpoint string) bool {
	return endpoint == "/metrics" || strings.HasPrefix(endpoint, "/health")
}

// RequestMetrics emits HTTP request counters, latency and sizes, and logs
// each completed request.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		var requestSize int64
		if r.ContentLength > 0 {
			requestSize = r.ContentLength
		} else if v := r.Header.Get("Content-Length"); v != "" {
			requestSize, _ = strconv.ParseInt(v, 10, 64)
		}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		endpoint := getEndpointPattern(r)
		status := strconv.Itoa(rec.status)
		emitRequestMetrics(r.Method, endpoint, status, rec.status, duration, requestSize, rec.written)
		logRequest(r, endpoint, rec, duration, requestSize)
	})
}

func emitRequestMetrics(method, endpoint, status string, code int, duration time.Duration, requestSize, responseSize int64) {
	tel := observability.TelemetrySystem
	labels := map[string]string{"method": method, "endpoint": endpoint, "status": status}
	sizeLabels := map[string]string{"method": method, "endpoint": endpoint}

	_ = tel.Counter("http_requests_total", 1, labels)
	_ = tel.Histogram("http_request_duration_ms", duration, labels)
	_ = tel.Gauge("http_request_size_bytes", float64(requestSize), sizeLabels)
	_ = tel.Gauge("http_response_size_bytes", float64(responseSize), sizeLabels)

	if code < 400 {
		return
	}
	errorType := "client_error"
	if code >= 500 {
		errorType = "server_error"
	}
	_ = tel.Counter("http_errors_total", 1, map[string]string{
		"method":     method,
		"endpoint":   endpoint,
		"status":     status,
		"error_type": errorType,
	})
}

func logRequest(r *http.Request, endpoint string, rec *statusRecorder, duration time.Duration, requestSize int64) {
	logger := observability.ServerLogger
	if logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("endpoint", endpoint),
		zap.Int("status", rec.status),
		zap.Duration("duration", duration),
		zap.Int64("request_size", requestSize),
		zap.Int64("response_size", rec.written),
		zap.String("request_id", GetRequestID(r.Context())),
	}
	if quietEndpoint(endpoint) {
		logger.Debug("HTTP request completed", fields...)
		return
	}
	logger.Info("HTTP request completed", fields...)
}

package observability

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"
)

// fallbackMetricsPort is reported when an ephemeral bind cannot be resolved.
const fallbackMetricsPort = 9090

var (
	// TelemetrySystem receives every limiter and HTTP metric. Nil disables
	// emission.
	TelemetrySystem *telemetry.System

	// PrometheusExporter serves the scrape endpoint that /metrics relays.
	PrometheusExporter *exporters.PrometheusExporter

	metricsMu   sync.Mutex
	metricsPort int
)

// InitMetrics starts a Prometheus exporter on port (0 picks a free port)
// and installs the telemetry system that feeds it. Metric names are
// prefixed with namespace, or serviceName when none is given.
func InitMetrics(serviceName string, port int, namespace ...string) error {
	if port < 0 {
		port = 0
	}
	prefix := serviceName
	if len(namespace) > 0 && namespace[0] != "" {
		prefix = namespace[0]
	}

	exporter := exporters.NewPrometheusExporter(prefix, fmt.Sprintf(":%d", port))
	if err := exporter.Start(); err != nil {
		return fmt.Errorf("start prometheus exporter: %w", err)
	}

	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: exporter})
	if err != nil {
		_ = exporter.Stop()
		return fmt.Errorf("create telemetry system: %w", err)
	}

	bound := port
	if actual, err := resolvePort(exporter.GetAddr()); err == nil {
		bound = actual
	} else if port == 0 {
		bound = fallbackMetricsPort
	}

	metricsMu.Lock()
	metricsPort = bound
	metricsMu.Unlock()
	PrometheusExporter = exporter
	TelemetrySystem = sys
	return nil
}

// ShutdownMetrics stops the exporter and disables emission.
func ShutdownMetrics() error {
	exporter := PrometheusExporter
	PrometheusExporter = nil
	TelemetrySystem = nil

	metricsMu.Lock()
	metricsPort = 0
	metricsMu.Unlock()

	if exporter == nil {
		return nil
	}
	return exporter.Stop()
}

// Enabled reports whether a telemetry system is installed.
func Enabled() bool {
	return TelemetrySystem != nil
}

// GetMetricsPort returns the port the exporter bound, or 0 before
// InitMetrics.
func GetMetricsPort() int {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return metricsPort
}

func resolvePort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}

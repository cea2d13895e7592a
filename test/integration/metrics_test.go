package integration

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardianhq/guardian/internal/limiter"
	"github.com/guardianhq/guardian/internal/metrics"
	"github.com/guardianhq/guardian/internal/observability"
	"github.com/guardianhq/guardian/internal/server"
	"github.com/guardianhq/guardian/internal/server/handlers"
)

const limiterName = "integration"

// sandboxDenied reports whether err comes from a sandbox that forbids
// loopback sockets.
func sandboxDenied(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") || strings.Contains(msg, "not permitted")
}

// withTelemetry starts the exporter for one test, or tears all telemetry
// down when enabled is false.
func withTelemetry(t *testing.T, enabled bool) {
	t.Helper()
	require.NoError(t, observability.ShutdownMetrics())
	t.Cleanup(func() { _ = observability.ShutdownMetrics() })
	if !enabled {
		return
	}
	if err := observability.InitMetrics("test", 0, "test"); err != nil {
		if sandboxDenied(err) {
			t.Skipf("metrics exporter unavailable: %v", err)
		}
		require.NoError(t, err)
	}
}

// startAdmin serves a registry holding one shared limiter on IPv4 loopback.
func startAdmin(t *testing.T) (*httptest.Server, *limiter.Limiter) {
	t.Helper()
	reg := limiter.NewRegistry(limiter.NewCoordinator(), limiter.WithObserver(metrics.TelemetryObserver{}))
	l, err := reg.Register(limiter.Spec{Name: limiterName, Rate: 200, Domain: limiter.DomainShared})
	require.NoError(t, err)

	srv := server.New(server.Options{Host: "127.0.0.1", Registry: reg, AdminRate: 100, AdminBurst: 100})
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if sandboxDenied(err) {
			t.Skipf("loopback listener unavailable: %v", err)
		}
		require.NoError(t, err)
	}

	ts := &httptest.Server{Listener: listener, Config: &http.Server{Handler: srv.Handler()}}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts, l
}

// drive acquires l from several workers while they poll the admin API.
func drive(t *testing.T, ts *httptest.Server, l *limiter.Limiter, workers, perWorker int) {
	t.Helper()
	paths := []string{"/health", "/v1/limiters", "/v1/limiters/" + limiterName, "/v1/limiters/missing"}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				assert.NoError(t, l.Acquire(context.Background()))
				resp, err := ts.Client().Get(ts.URL + paths[(w+i)%len(paths)])
				if assert.NoError(t, err) {
					_ = resp.Body.Close()
				}
			}
		}(w)
	}
	wg.Wait()
}

func TestMetricsEndpoint(t *testing.T) {
	observability.InitServerLogger("test", "info", "structured")
	handlers.InitHealthManager("test")

	tests := []struct {
		name       string
		telemetry  bool
		wantStatus int
		wantSeries []string
	}{
		{
			name:       "exports limiter and request series",
			telemetry:  true,
			wantStatus: http.StatusOK,
			wantSeries: []string{
				"limiter_admissions_total",
				"limiter_wait_ms",
				"http_requests_total",
				"http_request_duration_ms",
			},
		},
		{
			name:       "unavailable without telemetry",
			telemetry:  false,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withTelemetry(t, tt.telemetry)
			ts, l := startAdmin(t)
			drive(t, ts, l, 4, 5)

			resp, err := ts.Client().Get(ts.URL + "/metrics")
			require.NoError(t, err)
			body, readErr := io.ReadAll(resp.Body)
			require.NoError(t, resp.Body.Close())
			require.NoError(t, readErr)
			require.Equal(t, tt.wantStatus, resp.StatusCode, string(body))

			if tt.wantStatus != http.StatusOK {
				assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
				return
			}
			assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain; version=0.0.4"),
				"content type %q", resp.Header.Get("Content-Type"))
			for _, series := range tt.wantSeries {
				assert.Contains(t, string(body), series)
			}
			assertPrometheusSamples(t, string(body))
		})
	}
}

// assertPrometheusSamples checks that every non-comment line is a
// "<series> <value>" sample and that at least one carries labels.
func assertPrometheusSamples(t *testing.T, text string) {
	t.Helper()
	labelled := false
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		assert.GreaterOrEqual(t, len(strings.Fields(line)), 2, "sample %q", line)
		if strings.Contains(line, "{") {
			labelled = true
		}
	}
	assert.True(t, labelled, "expected labelled samples")
}

func TestLimiterStatsMatchAdmissions(t *testing.T) {
	observability.InitServerLogger("test", "info", "structured")
	withTelemetry(t, false)

	ts, l := startAdmin(t)
	drive(t, ts, l, 3, 4)

	assert.Equal(t, uint64(12), l.Stats().Admitted)
	assert.Zero(t, l.Stats().Cancelled)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottleLimitsPerClient(t *testing.T) {
	throttle := NewThrottle(1, 2)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	throttle.now = func() time.Time { return clock }
	handler := throttle.Handler(okHandler())

	call := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/v1/safe-mode", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusNoContent, call("10.0.0.1:1111").Code)
	require.Equal(t, http.StatusNoContent, call("10.0.0.1:2222").Code)

	rec := call("10.0.0.1:3333")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")

	// Another client has its own bucket.
	require.Equal(t, http.StatusNoContent, call("10.0.0.2:1111").Code)

	// Tokens refill with time.
	clock = clock.Add(time.Second)
	require.Equal(t, http.StatusNoContent, call("10.0.0.1:4444").Code)
}

func TestThrottleDisabled(t *testing.T) {
	handler := NewThrottle(0, 0).Handler(okHandler())
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPut, "/v1/safe-mode", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestThrottleEvictsIdleClients(t *testing.T) {
	throttle := NewThrottle(1, 1)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	throttle.now = func() time.Time { return clock }

	throttle.bucket("a")
	throttle.bucket("b")
	require.Len(t, throttle.clients, 2)

	clock = clock.Add(2 * clientIdleTTL)
	throttle.bucket("c")
	require.Len(t, throttle.clients, 1)
}

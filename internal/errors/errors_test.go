package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardianhq/guardian/internal/limiter"
	"github.com/guardianhq/guardian/internal/server/middleware"
)

func TestFromLimiterError(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDContextKey, "req-123")

	owner := limiter.NewScope("owner")
	violation := &limiter.IsolationViolation{Limiter: "crawler", Owner: owner, Caller: limiter.NewScope("other")}

	env := FromLimiterError(ctx, fmt.Errorf("search: %w", violation))
	assert.Equal(t, "ISOLATION_VIOLATION", env.Code)
	assert.Equal(t, "req-123", env.CorrelationID)
	assert.Equal(t, "crawler", env.Context["limiter"])
	assert.Equal(t, http.StatusConflict, HTTPStatusFromEnvelope(env))

	_, err := limiter.NewBudget(0)
	env = FromLimiterError(ctx, err)
	assert.Equal(t, "VALIDATION_FAILED", env.Code)
	assert.Equal(t, http.StatusBadRequest, HTTPStatusFromEnvelope(env))

	env = FromLimiterError(ctx, context.DeadlineExceeded)
	assert.Equal(t, "TIMEOUT", env.Code)

	env = FromLimiterError(ctx, fmt.Errorf("disk on fire"))
	assert.Equal(t, "INTERNAL_ERROR", env.Code)

	env = FromLimiterError(ctx, nil)
	assert.Equal(t, "INTERNAL_ERROR", env.Code)
}

func TestHTTPStatusFromCode(t *testing.T) {
	cases := map[string]int{
		"INVALID_INPUT":       http.StatusBadRequest,
		"CONFIG_INVALID":      http.StatusBadRequest,
		"UNAUTHORIZED":        http.StatusUnauthorized,
		"NOT_FOUND":           http.StatusNotFound,
		"ISOLATION_VIOLATION": http.StatusConflict,
		"RATE_LIMITED":        http.StatusTooManyRequests,
		"TIMEOUT":             http.StatusGatewayTimeout,
		"SOMETHING_ELSE":      http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatusFromCode(code), code)
	}
}

func TestRespondWithEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/limiters/missing", nil)
	rec := httptest.NewRecorder()

	RespondWithEnvelope(rec, req, NewNotFoundError("limiter not found"))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.Equal(t, "limiter not found", body.Error.Message)
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestEnsureEnvelopeWrapsPlainErrors(t *testing.T) {
	env := EnsureEnvelope(fmt.Errorf("plain"))
	assert.Equal(t, "INTERNAL_ERROR", env.Code)
	assert.Equal(t, "plain", env.Context["wrapped_error"])

	original := NewRateLimitedError("slow down")
	assert.Same(t, original, EnsureEnvelope(original))
}

func TestResponseDetailsPrefersDetails(t *testing.T) {
	env := NewValidationError("bad rate").WithDetails(map[string]interface{}{"field": "rate"})
	env, err := env.WithContext(map[string]interface{}{"field": "ignored", "limiter": "search-agent"})
	require.NoError(t, err)

	details := ResponseDetails(env)
	assert.Equal(t, "rate", details["field"])
	assert.Equal(t, "search-agent", details["limiter"])
	assert.Nil(t, ResponseDetails(NewNotFoundError("missing")))
}

func TestWrapCarriesRequestID(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDContextKey, "req-9")
	env := WrapConfigInvalid(ctx, fmt.Errorf("limiters.crawler.rate must be positive"), "invalid configuration")

	assert.Equal(t, CodeConfigInvalid, env.Code)
	assert.Equal(t, "req-9", env.CorrelationID)
	assert.Equal(t, "limiters.crawler.rate must be positive", env.Context["wrapped_error"])

	env = WrapInternal(context.Background(), nil, "boom")
	assert.NotEmpty(t, env.CorrelationID)
	assert.Empty(t, env.Context["wrapped_error"])
}

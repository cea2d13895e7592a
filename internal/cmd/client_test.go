package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/guardianhq/guardian/internal/errors"
	"github.com/guardianhq/guardian/internal/limiter"
	"github.com/guardianhq/guardian/internal/server/handlers"
)

func TestAdminClientSendsCredentials(t *testing.T) {
	var gotAuth, gotActor string
	var gotBody handlers.SafeModeRequest

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotActor = r.Header.Get(handlers.ActorHeader)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(handlers.SafeModeResponse{
			SafeModeState: limiter.SafeModeState{Enabled: true, Rate: 0.5},
			AuditID:       9,
		})
	}))
	defer ts.Close()

	enabled := true
	rate := 0.5
	client := newAdminClient(ts.URL+"/", "tok", "alice")
	var resp handlers.SafeModeResponse
	err := client.do(context.Background(), http.MethodPut, "/v1/safe-mode",
		handlers.SafeModeRequest{Enabled: &enabled, RateLimit: &rate, Reason: "test"}, &resp)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "alice", gotActor)
	require.NotNil(t, gotBody.Enabled)
	assert.True(t, *gotBody.Enabled)
	assert.Equal(t, "test", gotBody.Reason)
	assert.True(t, resp.Enabled)
	assert.Equal(t, int64(9), resp.AuditID)
}

func TestAdminClientDecodesErrorEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(apperrors.HTTPErrorResponse{
			Error: apperrors.HTTPErrorDetail{Code: "UNAUTHORIZED", Message: "a valid bearer token is required"},
		})
	}))
	defer ts.Close()

	err := newAdminClient(ts.URL, "", "").do(context.Background(), http.MethodGet, "/v1/safe-mode", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401 UNAUTHORIZED")
	assert.Contains(t, err.Error(), "bearer token")
}

func TestAdminClientUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	err := newAdminClient(url, "", "").do(context.Background(), http.MethodGet, "/v1/safe-mode", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errAdminUnreachable))
	assert.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(err))
}

func TestDefaultServerURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080", defaultServerURL("", 8080))
	assert.Equal(t, "http://localhost:8080", defaultServerURL("0.0.0.0", 8080))
	assert.Equal(t, "http://10.0.0.5:9000", defaultServerURL("10.0.0.5", 9000))
	assert.Equal(t, "http://[::1]:9000", defaultServerURL("::1", 9000))
}

func TestExitCodeFor(t *testing.T) {
	_, err := limiter.New(0, limiter.DomainShared)
	require.Error(t, err)
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(err))

	_, err = limiter.ParseDomain("bogus")
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(err))

	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(apperrors.NewConfigInvalidError("bad")))
	assert.Equal(t, foundry.ExitFailure, ExitCodeFor(errors.New("boom")))
}

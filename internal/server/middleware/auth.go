package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/guardianhq/guardian/internal/metrics"
)

// BearerToken rejects requests that do not carry token as a bearer
// credential. An empty token disables the check.
func BearerToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		expected := []byte(token)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, ok := bearerFromHeader(r.Header.Get("Authorization"))
			if !ok || subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
				envelope := errors.NewErrorEnvelope("UNAUTHORIZED", "a valid bearer token is required").
					WithCorrelationID(GetRequestID(r.Context()))
				w.Header().Set("WWW-Authenticate", `Bearer realm="guardian"`)
				metrics.RecordAdminRejection("unauthorized")
				writeEnvelope(w, envelope, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerFromHeader(header string) (string, bool) {
	scheme, value, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

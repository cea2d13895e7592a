package handlers

import (
	"encoding/json"
	"net/http"

	gferrors "github.com/fulmenhq/gofulmen/errors"

	apperrors "github.com/guardianhq/guardian/internal/errors"
	"github.com/guardianhq/guardian/internal/observability"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Failed to encode response", zap.Error(err))
	}
}

// RespondWithError writes err as an error envelope. Limiter errors are
// translated first so isolation violations and bad rates keep their codes.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	if envelope, ok := err.(*gferrors.ErrorEnvelope); ok && envelope != nil {
		apperrors.RespondWithEnvelope(w, r, envelope)
		return
	}
	apperrors.RespondWithEnvelope(w, r, apperrors.FromLimiterError(r.Context(), err))
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	RespondWithError(w, r, err)
}

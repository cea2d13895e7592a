package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/guardianhq/guardian/internal/errors"
	"github.com/guardianhq/guardian/internal/limiter"
	"github.com/guardianhq/guardian/internal/observability"
	"github.com/guardianhq/guardian/internal/server/middleware"
	"github.com/guardianhq/guardian/internal/store"
)

// ActorHeader names the operator responsible for an admin change.
const ActorHeader = "X-Guardian-Actor"

// SafeModeAuditor records safe-mode transitions.
type SafeModeAuditor interface {
	RecordSafeModeChange(ctx context.Context, change store.SafeModeChange) (int64, error)
}

// SafeModeRequest is the body of PUT /v1/safe-mode. A missing rate_limit
// keeps the current override rate.
type SafeModeRequest struct {
	Enabled   *bool    `json:"enabled"`
	RateLimit *float64 `json:"rate_limit,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// SafeModeResponse reports the switch state after a read or write.
type SafeModeResponse struct {
	limiter.SafeModeState
	Previous      *limiter.SafeModeState `json:"previous,omitempty"`
	AuditID       int64                  `json:"audit_id,omitempty"`
	AuditRecorded *bool                  `json:"audit_recorded,omitempty"`
}

// SafeModeHandler serves the process-wide safe-mode switch.
type SafeModeHandler struct {
	safeMode *limiter.SafeMode
	audit    SafeModeAuditor
}

// NewSafeModeHandler returns a handler for s. audit may be nil.
func NewSafeModeHandler(s *limiter.SafeMode, audit SafeModeAuditor) *SafeModeHandler {
	return &SafeModeHandler{safeMode: s, audit: audit}
}

// Get handles GET /v1/safe-mode.
func (h *SafeModeHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SafeModeResponse{SafeModeState: h.safeMode.State()})
}

// Put handles PUT /v1/safe-mode.
func (h *SafeModeHandler) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SafeModeRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(ctx, err, "request body must be a JSON safe-mode object"))
		return
	}
	if req.Enabled == nil {
		respondWithError(w, r, apperrors.NewValidationError("enabled is required"))
		return
	}

	prev, next, err := h.safeMode.Update(func(st limiter.SafeModeState) limiter.SafeModeState {
		st.Enabled = *req.Enabled
		if req.RateLimit != nil {
			st.Rate = *req.RateLimit
		}
		return st
	})
	if err != nil {
		respondWithError(w, r, apperrors.FromLimiterError(ctx, err))
		return
	}

	actor := strings.TrimSpace(r.Header.Get(ActorHeader))
	logger := observability.ServerLogger
	if logger != nil {
		logger.Info("Safe mode updated",
			zap.Bool("enabled", next.Enabled),
			zap.Float64("rate_limit", next.Rate),
			zap.Bool("prev_enabled", prev.Enabled),
			zap.String("actor", actor),
			zap.String("reason", req.Reason),
			zap.String("request_id", middleware.GetRequestID(ctx)))
	}

	resp := SafeModeResponse{SafeModeState: next, Previous: &prev}
	if h.audit != nil {
		recorded := true
		id, err := h.audit.RecordSafeModeChange(ctx, store.SafeModeChange{
			Enabled:       next.Enabled,
			RateLimit:     next.Rate,
			PrevEnabled:   prev.Enabled,
			PrevRateLimit: prev.Rate,
			Source:        "api",
			Actor:         actor,
			Reason:        req.Reason,
			RequestID:     middleware.GetRequestID(ctx),
		})
		if err != nil {
			recorded = false
			if logger != nil {
				logger.Error("Failed to record safe mode change", zap.Error(err))
			}
		}
		resp.AuditID = id
		resp.AuditRecorded = &recorded
	}

	writeJSON(w, http.StatusOK, resp)
}

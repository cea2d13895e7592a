package errors

import (
	"context"
	stderrors "errors"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/guardianhq/guardian/internal/limiter"
)

// FromLimiterError maps limiter errors onto envelopes. Errors the limiter
// package does not define become INTERNAL_ERROR.
func FromLimiterError(ctx context.Context, err error) *errors.ErrorEnvelope {
	var violation *limiter.IsolationViolation
	var cfgErr *limiter.ConfigurationError

	switch {
	case err == nil:
		return EnsureEnvelope(nil)
	case stderrors.As(err, &violation):
		return isolationEnvelope(ctx, violation)
	case stderrors.As(err, &cfgErr),
		stderrors.Is(err, limiter.ErrUnknownPolicy),
		stderrors.Is(err, limiter.ErrUnknownDomain):
		return WrapValidationError(ctx, err, "invalid limiter configuration")
	case stderrors.Is(err, context.DeadlineExceeded):
		return WrapTimeout(ctx, err, "timed out waiting for admission")
	case stderrors.Is(err, context.Canceled):
		return WrapTimeout(ctx, err, "admission cancelled")
	default:
		return WrapInternal(ctx, err, "limiter failure")
	}
}

func isolationEnvelope(ctx context.Context, v *limiter.IsolationViolation) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(CodeIsolationViolation, "limiter used outside its owning scope").
		WithCorrelationID(correlationID(ctx))
	if updated, err := envelope.WithContext(map[string]interface{}{
		"limiter":      v.Limiter,
		"owner_scope":  v.Owner.String(),
		"caller_scope": v.Caller.String(),
	}); err == nil {
		envelope = updated
	}
	if updated, err := envelope.WithSeverity(errors.SeverityHigh); err == nil {
		envelope = updated
	}
	return envelope
}

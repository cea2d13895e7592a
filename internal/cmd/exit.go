package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/guardianhq/guardian/internal/limiter"
)

// exitProcess is swapped out by tests.
var (
	osExit      = os.Exit
	exitProcess = osExit
)

// ExitCodeFor maps a command error to a foundry exit code. Configuration
// problems exit as ExitConfigInvalid, an unreachable admin server as
// ExitExternalServiceUnavailable, anything else as ExitFailure.
func ExitCodeFor(err error) foundry.ExitCode {
	var cfgErr *limiter.ConfigurationError
	var envelope *errors.ErrorEnvelope
	switch {
	case err == nil:
		return foundry.ExitFailure
	case stderrors.As(err, &cfgErr),
		stderrors.Is(err, limiter.ErrUnknownDomain),
		stderrors.Is(err, limiter.ErrUnknownPolicy),
		stderrors.Is(err, limiter.ErrDuplicateLimiter):
		return foundry.ExitConfigInvalid
	case stderrors.As(err, &envelope) && (envelope.Code == "CONFIG_INVALID" || envelope.Code == "VALIDATION_FAILED"):
		return foundry.ExitConfigInvalid
	case stderrors.Is(err, errAdminUnreachable), stderrors.Is(err, context.DeadlineExceeded):
		return foundry.ExitExternalServiceUnavailable
	default:
		return foundry.ExitFailure
	}
}

// ExitWithCode logs err with the catalog metadata for exitCode and exits.
// With a nil logger the report goes to stderr.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok || logger == nil {
		ExitWithCodeStderr(exitCode, msg, err)
		return
	}

	fields := []zap.Field{
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_description", info.Description),
		zap.String("exit_category", info.Category),
	}
	fields = append(fields, envelopeFields(err)...)
	logger.Error(msg, fields...)
	exitProcess(info.Code)
}

// ExitWithCodeStderr reports to stderr and exits. It is safe before any
// logger exists.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	exitProcess(writeFatal(os.Stderr, exitCode, msg, err))
}

// envelopeFields describes err for the structured log, unwrapping the
// original error carried by an envelope.
func envelopeFields(err error) []zap.Field {
	var envelope *errors.ErrorEnvelope
	if !stderrors.As(err, &envelope) {
		return []zap.Field{zap.Error(err)}
	}

	fields := []zap.Field{
		zap.String("error_code", envelope.Code),
		zap.String("error_message", envelope.Message),
		zap.String("correlation_id", envelope.CorrelationID),
	}
	if envelope.Context != nil {
		fields = append(fields, zap.Any("error_context", envelope.Context))
	}
	if original, ok := envelope.Original.(error); ok {
		err = original
	}
	return append(fields, zap.Error(err))
}

// writeFatal prints the failure and the catalog entry for exitCode, and
// returns the process status to exit with.
func writeFatal(w io.Writer, exitCode foundry.ExitCode, msg string, err error) int {
	var envelope *errors.ErrorEnvelope
	switch {
	case err == nil:
		fmt.Fprintf(w, "FATAL: %s\n", msg)
	case stderrors.As(err, &envelope):
		fmt.Fprintf(w, "FATAL: %s [%s]: %s (correlation: %s)\n", msg, envelope.Code, envelope.Message, envelope.CorrelationID)
		if original, ok := envelope.Original.(error); ok {
			fmt.Fprintf(w, "Underlying error: %v\n", original)
		}
	default:
		fmt.Fprintf(w, "FATAL: %s: %v\n", msg, err)
	}

	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(w, "Exit Code: %d\n", exitCode)
		return int(exitCode)
	}
	fmt.Fprintf(w, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	return info.Code
}

package cmd

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/guardianhq/guardian/internal/errors"
	"github.com/guardianhq/guardian/internal/limiter"
)

func TestWriteFatal(t *testing.T) {
	var buf bytes.Buffer
	code := writeFatal(&buf, foundry.ExitConfigInvalid, "Configuration invalid",
		apperrors.NewConfigInvalidError("limiters.crawler.rate must be positive"))

	assert.Equal(t, int(foundry.ExitConfigInvalid), code)
	assert.Contains(t, buf.String(), "[CONFIG_INVALID]")
	assert.Contains(t, buf.String(), "limiters.crawler.rate must be positive")
	assert.Contains(t, buf.String(), "Exit Code:")
}

func TestWriteFatalPlainError(t *testing.T) {
	var buf bytes.Buffer
	writeFatal(&buf, foundry.ExitFailure, "Command execution failed", fmt.Errorf("2 probe(s) failed"))
	assert.Contains(t, buf.String(), "FATAL: Command execution failed: 2 probe(s) failed")
}

func TestExitWithCodeStderrUsesExitCode(t *testing.T) {
	var got int
	exitProcess = func(code int) { got = code }
	t.Cleanup(func() { exitProcess = osExit })

	_, err := limiter.NewBudget(-1)
	ExitWithCodeStderr(ExitCodeFor(err), "Limiter configuration rejected", err)
	assert.Equal(t, int(foundry.ExitConfigInvalid), got)
}

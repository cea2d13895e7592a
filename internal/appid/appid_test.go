package appid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetDefaults(t *testing.T) {
	t.Setenv(EnvBinaryName, "")

	identity, err := Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "guardian", identity.BinaryName)
	require.Equal(t, "guardian", identity.ConfigName)
	require.Equal(t, "GUARDIAN_", identity.Prefix())
	require.NotEmpty(t, identity.Description)
}

func TestGetBinaryNameOverride(t *testing.T) {
	t.Setenv(EnvBinaryName, "guardian-dev")

	identity, err := Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "guardian-dev", identity.BinaryName)
	require.Equal(t, "guardian", identity.ConfigName, "config discovery keeps the canonical name")
}

func TestGetHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Get(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPrefixAddsUnderscore(t *testing.T) {
	id := &Identity{EnvPrefix: "GRD"}
	require.Equal(t, "GRD_", id.Prefix())

	var missing *Identity
	require.Empty(t, missing.Prefix())
}

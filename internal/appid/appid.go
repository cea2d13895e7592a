// Package appid carries the application identity used for CLI help text,
// config discovery and environment variable prefixes.
package appid

import (
	"context"
	"os"
	"strings"
)

// EnvBinaryName overrides the binary name, mainly for packaging tests.
const EnvBinaryName = "GUARDIAN_BINARY_NAME"

// Identity describes the application to the rest of the process.
type Identity struct {
	BinaryName  string
	ConfigName  string
	EnvPrefix   string
	Vendor      string
	Description string
}

var defaultIdentity = Identity{
	BinaryName:  "guardian",
	ConfigName:  "guardian",
	EnvPrefix:   "GUARDIAN_",
	Vendor:      "guardianhq",
	Description: "Admission control for rate-limited agent workloads",
}

// Get returns the identity. The context is accepted for parity with loaders
// that resolve identity from disk.
func Get(ctx context.Context) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := defaultIdentity
	if name := strings.TrimSpace(os.Getenv(EnvBinaryName)); name != "" {
		id.BinaryName = name
	}
	return &id, nil
}

// Prefix returns EnvPrefix with a trailing underscore.
func (i *Identity) Prefix() string {
	if i == nil || i.EnvPrefix == "" {
		return ""
	}
	if strings.HasSuffix(i.EnvPrefix, "_") {
		return i.EnvPrefix
	}
	return i.EnvPrefix + "_"
}

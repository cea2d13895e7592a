package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardianhq/guardian/internal/output"
)

func sinkCommand(t *testing.T, out, outDir string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	c := &cobra.Command{Use: "check"}
	c.SetOut(&buf)
	c.Flags().String("out", "", "")
	c.Flags().String("out-dir", "", "")
	require.NoError(t, c.Flags().Set("out", out))
	require.NoError(t, c.Flags().Set("out-dir", outDir))
	return c, &buf
}

func TestReportSinkStdout(t *testing.T) {
	c, buf := sinkCommand(t, "-", "")

	sink, err := reportSink(c, output.FormatTable, time.Now())
	require.NoError(t, err)
	_, err = fmt.Fprint(sink, "pacing PASS")
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	assert.Equal(t, "-", sink.path)
	assert.Equal(t, "pacing PASS", buf.String())
}

func TestReportSinkOutDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	c, _ := sinkCommand(t, "", dir)
	at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	sink, err := reportSink(c, output.FormatJSON, at)
	require.NoError(t, err)
	_, err = fmt.Fprint(sink, `{"passed":true}`)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	assert.Equal(t, filepath.Join(dir, "check-20260301T123000Z.json"), sink.path)
	data, err := os.ReadFile(sink.path)
	require.NoError(t, err)
	assert.Equal(t, `{"passed":true}`, string(data))
}

func TestReportSinkRejectsBothTargets(t *testing.T) {
	c, _ := sinkCommand(t, "a.json", t.TempDir())
	_, err := reportSink(c, output.FormatJSON, time.Now())
	assert.Error(t, err)
}

func TestOutputExtension(t *testing.T) {
	assert.Equal(t, "yaml", outputExtension(output.FormatYAML))
	assert.Equal(t, "md", outputExtension(output.FormatMarkdown))
	assert.Equal(t, "txt", outputExtension(output.Format("bogus")))
}

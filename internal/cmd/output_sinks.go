package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/guardianhq/guardian/internal/output"
)

// outputSink is where a rendered report goes: stdout or a file.
type outputSink struct {
	io.Writer
	path  string
	close func() error
}

func (s *outputSink) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

var outputExtensions = map[output.Format]string{
	output.FormatJSON:     "json",
	output.FormatYAML:     "yaml",
	output.FormatMarkdown: "md",
	output.FormatTable:    "txt",
}

func outputExtension(format output.Format) string {
	if ext, ok := outputExtensions[format]; ok {
		return ext
	}
	return "txt"
}

func resolveOutputFormat(cmd *cobra.Command) (output.Format, error) {
	value, err := cmd.Flags().GetString("output-format")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value)
}

// reportSink resolves --out and --out-dir for cmd. --out-dir writes a
// timestamped file named after the command; neither flag means stdout.
func reportSink(cmd *cobra.Command, format output.Format, now time.Time) (*outputSink, error) {
	outPath, _ := cmd.Flags().GetString("out")
	outDir, _ := cmd.Flags().GetString("out-dir")
	outPath, outDir = strings.TrimSpace(outPath), strings.TrimSpace(outDir)

	switch {
	case outPath != "" && outDir != "":
		return nil, fmt.Errorf("--out and --out-dir are mutually exclusive")
	case outDir != "":
		name := fmt.Sprintf("%s-%s.%s", cmd.Name(), now.UTC().Format("20060102T150405Z"), outputExtension(format))
		outPath = filepath.Join(outDir, name)
	case outPath == "" || outPath == "-":
		return &outputSink{Writer: cmd.OutOrStdout(), path: "-"}, nil
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(outPath)
	if err != nil {
		return nil, err
	}
	return &outputSink{Writer: file, path: outPath, close: file.Close}, nil
}

package output

import (
	"gopkg.in/yaml.v3"

	"github.com/guardianhq/guardian/internal/diagnostics"
	"github.com/guardianhq/guardian/internal/limiter"
	"github.com/guardianhq/guardian/internal/store"
)

// YAMLFormatter renders results as YAML.
type YAMLFormatter struct{}

func marshalYAML(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f *YAMLFormatter) FormatReport(report *diagnostics.Report) (string, error) {
	if report == nil {
		return "", nil
	}
	return marshalYAML(report)
}

func (f *YAMLFormatter) FormatLimiters(limiters []limiter.Info) (string, error) {
	return marshalYAML(limiters)
}

func (f *YAMLFormatter) FormatSafeModeChanges(changes []store.SafeModeChange) (string, error) {
	return marshalYAML(changes)
}

func (f *YAMLFormatter) FormatCheckRuns(runs []store.CheckRun) (string, error) {
	return marshalYAML(runs)
}

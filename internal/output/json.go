package output

import (
	"encoding/json"

	"github.com/guardianhq/guardian/internal/diagnostics"
	"github.com/guardianhq/guardian/internal/limiter"
	"github.com/guardianhq/guardian/internal/store"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// FormatReport renders a diagnostics report as JSON.
func (f *JSONFormatter) FormatReport(report *diagnostics.Report) (string, error) {
	if report == nil {
		return "", nil
	}
	return f.marshal(report)
}

func (f *JSONFormatter) FormatLimiters(limiters []limiter.Info) (string, error) {
	if limiters == nil {
		limiters = []limiter.Info{}
	}
	return f.marshal(limiters)
}

func (f *JSONFormatter) FormatSafeModeChanges(changes []store.SafeModeChange) (string, error) {
	if changes == nil {
		changes = []store.SafeModeChange{}
	}
	return f.marshal(changes)
}

func (f *JSONFormatter) FormatCheckRuns(runs []store.CheckRun) (string, error) {
	if runs == nil {
		runs = []store.CheckRun{}
	}
	return f.marshal(runs)
}

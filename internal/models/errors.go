package models

import (
	"fmt"
	"sort"
	"strings"
)

// ConfigurationError reports an out-of-range or malformed parameter.
// It is returned before any episode starts and is never recovered.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// NewConfigurationError builds a ConfigurationError with a formatted message.
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// SimulationRuntimeError reports an unexpected state transition inside an
// episode. The episode is aborted; the rest of the batch continues.
type SimulationRuntimeError struct {
	Episode    int
	Step       int
	Message    string
	Diagnostic map[string]any
}

func (e *SimulationRuntimeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "simulation error (episode %d, step %d): %s", e.Episode, e.Step, e.Message)
	if len(e.Diagnostic) > 0 {
		keys := make([]string, 0, len(e.Diagnostic))
		for k := range e.Diagnostic {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Diagnostic[k])
		}
		b.WriteString("]")
	}
	return b.String()
}

// AssumptionWarning is a non-fatal note that a statistical assumption did
// not hold and a fallback procedure was used instead.
type AssumptionWarning struct {
	Assumption string `json:"assumption" yaml:"assumption"`
	Detail     string `json:"detail" yaml:"detail"`
}

func (w AssumptionWarning) String() string {
	return w.Assumption + ": " + w.Detail
}

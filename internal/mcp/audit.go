package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/acpsim/internal/metrics"
)

// AuditFile is the audit log's file name inside the audit directory.
const AuditFile = "audit.jsonl"

// AuditEntry records one tool invocation. Parameter values are included
// only for a fixed set of harmless parameters.
type AuditEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Tool       string            `json:"tool"`
	DurationMs int64             `json:"duration_ms"`
	Status     string            `json:"status"` // "success" or "error"
	Error      string            `json:"error,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	RunID      string            `json:"run_id,omitempty"`
}

// AuditLogger appends audit entries to a JSONL file. It is safe for
// concurrent use, and a nil *AuditLogger discards everything.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewAuditLogger opens dir/audit.jsonl for appending. If the file cannot be
// created a warning is printed to stderr and nil is returned.
func NewAuditLogger(dir string) *AuditLogger {
	if err := os.MkdirAll(dir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create audit log directory %s: %v\n", dir, err)
		return nil
	}
	path := filepath.Join(dir, AuditFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open audit log %s: %v\n", path, err)
		return nil
	}
	return &AuditLogger{file: f}
}

// Log appends entry as one JSON line.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		_, _ = a.file.Write(data)
	}
}

// Close closes the log file.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// safeValueParams are logged with their values.
var safeValueParams = map[string]bool{
	"defender":        true,
	"seed":            true,
	"episodes":        true,
	"no_save":         true,
	"limit":           true,
	"run_id":          true,
	"include_results": true,
	"strategy":        true,
	"path":            true,
}

// sanitizeToolParams summarises tool parameters for the audit log. Config
// overrides are reduced to their sorted key names; unknown parameters are
// dropped. "_param_count" is always present.
func sanitizeToolParams(params map[string]any) map[string]string {
	if params == nil {
		return nil
	}

	result := make(map[string]string)
	for key, val := range params {
		switch {
		case key == "config":
			overrides, _ := val.(map[string]any)
			if len(overrides) == 0 {
				continue
			}
			keys := make([]string, 0, len(overrides))
			for k := range overrides {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			result["config"] = strings.Join(keys, ",")
		case safeValueParams[key]:
			result[key] = fmt.Sprintf("%v", val)
		}
	}
	result["_param_count"] = fmt.Sprintf("%d", len(params))
	return result
}

// auditTool logs a finished tool call to the audit log and metrics.
func (s *Server) auditTool(toolName string, start time.Time, err error, params map[string]string, runID string) {
	status := metrics.StatusSuccess
	errMsg := ""
	if err != nil {
		status = metrics.StatusFailed
		errMsg = err.Error()
	}
	elapsed := time.Since(start)

	s.metrics.RecordToolCall(toolName, status, elapsed)
	s.auditLogger.Log(AuditEntry{
		Timestamp:  start,
		Tool:       toolName,
		DurationMs: elapsed.Milliseconds(),
		Status:     status,
		Error:      errMsg,
		Params:     params,
		RunID:      runID,
	})
	if err != nil {
		s.logger.Warn("tool call failed", "tool", toolName, "error", err)
	} else {
		s.logger.Debug("tool call", "tool", toolName, "duration", elapsed)
	}
}

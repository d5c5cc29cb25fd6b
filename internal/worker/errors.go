package worker

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind classifies why a worker run failed.
type Kind string

const (
	KindSpawn    Kind = "spawn"
	KindExit     Kind = "exit"
	KindNoOutput Kind = "no_output"
	KindTimeout  Kind = "timeout"
	KindCanceled Kind = "canceled"
	KindOverflow Kind = "output_overflow"
)

// ProcessError reports a worker that could not be started, failed, produced nothing,
// or was terminated because of a timeout or cancellation.
type ProcessError struct {
	Kind     Kind
	ExitCode int
	Timeout  time.Duration
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	switch e.Kind {
	case KindSpawn:
		return "start worker: " + errString(e.Err)
	case KindExit:
		msg := fmt.Sprintf("worker exited with status %d", e.ExitCode)
		if d := stderrDetails(e.Stderr); d != "" {
			msg += ": " + d
		}
		return msg
	case KindNoOutput:
		return "No analysis results received"
	case KindTimeout:
		return fmt.Sprintf("worker timed out after %s", e.Timeout)
	case KindOverflow:
		return fmt.Sprintf("worker output line exceeded %d bytes", maxLineBytes)
	case KindCanceled:
		return "worker canceled: " + errString(e.Err)
	default:
		return "worker failed: " + errString(e.Err)
	}
}

func (e *ProcessError) Unwrap() error { return e.Err }

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// stderrDetails extracts the worker's own explanation from its stderr. The worker
// writes a {"error": ..., "details": ...} object as its last stderr line on failure.
func stderrDetails(stderr string) string {
	last := lastNonEmptyLine(stderr)
	if last == "" {
		return ""
	}
	var payload struct {
		Error   any    `json:"error"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal([]byte(last), &payload); err == nil {
		if payload.Details != "" {
			return payload.Details
		}
		if s, ok := payload.Error.(string); ok && s != "" {
			return s
		}
	}
	return last
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

package worker

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"face-analysis-backend/internal/shared/telemetry"
)

const (
	maxRetainedLines = 1000
	maxStderrBytes   = 8 << 10
	maxLineBytes     = 1 << 20
)

// Output is what a successful worker run produced on stdout.
type Output struct {
	// Lines holds the most recent non-blank stdout lines in emission order.
	Lines     []string
	LineCount int
	Stderr    string
	Duration  time.Duration
}

// Result returns the last emitted line, the authoritative result payload.
func (o Output) Result() string {
	if len(o.Lines) == 0 {
		return ""
	}
	return o.Lines[len(o.Lines)-1]
}

// lineWriter splits streamed stdout into lines as they arrive so progress output
// is visible before the process exits.
type lineWriter struct {
	mu        sync.Mutex
	partial   []byte
	lines     []string
	count     int
	requestID string
	// overflowed is set once a line exceeds maxLineBytes; discarding drops the rest of it.
	overflowed bool
	discarding bool
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(p)
	if w.discarding {
		idx := bytes.IndexByte(p, '\n')
		if idx < 0 {
			return n, nil
		}
		w.discarding = false
		p = p[idx+1:]
	}
	w.partial = append(w.partial, p...)
	for {
		idx := bytes.IndexByte(w.partial, '\n')
		if idx < 0 {
			break
		}
		w.addLocked(string(w.partial[:idx]))
		w.partial = w.partial[idx+1:]
	}
	if len(w.partial) > maxLineBytes {
		w.overflowed = true
		w.discarding = true
		w.partial = nil
		telemetry.Warn("worker.output_overflow", map[string]any{
			"request_id": w.requestID,
			"max_bytes":  maxLineBytes,
		})
	}
	return n, nil
}

func (w *lineWriter) overflow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.overflowed
}

// flush treats trailing bytes without a newline as a final line.
func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.partial) > 0 && !w.discarding {
		w.addLocked(string(w.partial))
		w.partial = nil
	}
}

func (w *lineWriter) addLocked(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	w.count++
	w.lines = append(w.lines, line)
	if len(w.lines) > maxRetainedLines {
		w.lines = w.lines[len(w.lines)-maxRetainedLines:]
	}
	telemetry.Debug("worker.output", map[string]any{
		"request_id": w.requestID,
		"line_no":    w.count,
		"line":       line,
	})
}

func (w *lineWriter) snapshot() ([]string, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.lines...), w.count
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

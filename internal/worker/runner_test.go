package worker

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func newTestRunner(t *testing.T, script string, timeout time.Duration) *Runner {
	t.Helper()
	r, err := NewRunner(Config{
		Command:   []string{"/bin/sh", script},
		Timeout:   timeout,
		WaitDelay: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func requireKind(t *testing.T, err error, kind Kind) *ProcessError {
	t.Helper()
	var perr *ProcessError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProcessError, got %T: %v", err, err)
	}
	if perr.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, perr.Kind, err)
	}
	return perr
}

func TestRunReturnsLastLineAsResult(t *testing.T) {
	script := writeScript(t, `echo "loading"
echo "Processing image: $1"
echo ""
printf '{"facialFeatures":["oval"]}'`)
	r := newTestRunner(t, script, 5*time.Second)

	out, err := r.Run(context.Background(), "/tmp/photo.jpg")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.LineCount != 3 {
		t.Fatalf("expected 3 non-blank lines, got %d (%q)", out.LineCount, out.Lines)
	}
	if out.Lines[1] != "Processing image: /tmp/photo.jpg" {
		t.Fatalf("expected image path as sole argument, got %q", out.Lines[1])
	}
	if out.Result() != `{"facialFeatures":["oval"]}` {
		t.Fatalf("unexpected result line: %q", out.Result())
	}
}

func TestRunNonZeroExitCarriesWorkerDetails(t *testing.T) {
	script := writeScript(t, `echo "Starting analysis"
echo '{"error": "ValueError", "details": "No face detected in the image"}' >&2
exit 1`)
	r := newTestRunner(t, script, 5*time.Second)

	_, err := r.Run(context.Background(), "/tmp/photo.jpg")
	perr := requireKind(t, err, KindExit)
	if perr.ExitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", perr.ExitCode)
	}
	if !strings.Contains(err.Error(), "No face detected in the image") {
		t.Fatalf("expected worker details in error, got %q", err.Error())
	}
}

func TestRunNonZeroExitWithPlainStderr(t *testing.T) {
	script := writeScript(t, `echo "Traceback: boom" >&2
exit 3`)
	r := newTestRunner(t, script, 5*time.Second)

	_, err := r.Run(context.Background(), "/tmp/photo.jpg")
	perr := requireKind(t, err, KindExit)
	if perr.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", perr.ExitCode)
	}
	if !strings.HasSuffix(err.Error(), "Traceback: boom") {
		t.Fatalf("expected raw stderr line in error, got %q", err.Error())
	}
}

func TestRunWithoutOutputFails(t *testing.T) {
	script := writeScript(t, `printf '\n   \n'
exit 0`)
	r := newTestRunner(t, script, 5*time.Second)

	_, err := r.Run(context.Background(), "/tmp/photo.jpg")
	requireKind(t, err, KindNoOutput)
}

func TestRunSpawnFailure(t *testing.T) {
	r, err := NewRunner(Config{Command: []string{filepath.Join(t.TempDir(), "missing-worker")}})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	_, err = r.Run(context.Background(), "/tmp/photo.jpg")
	requireKind(t, err, KindSpawn)
}

func TestRunTimeoutKillsWorker(t *testing.T) {
	script := writeScript(t, `echo "loading"
exec sleep 5`)
	r := newTestRunner(t, script, 200*time.Millisecond)

	start := time.Now()
	_, err := r.Run(context.Background(), "/tmp/photo.jpg")
	perr := requireKind(t, err, KindTimeout)
	if perr.Timeout != 200*time.Millisecond {
		t.Fatalf("expected timeout recorded, got %s", perr.Timeout)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("worker was not terminated promptly: %s", elapsed)
	}
}

func TestRunCancellationKillsWorker(t *testing.T) {
	script := writeScript(t, `exec sleep 5`)
	r := newTestRunner(t, script, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := r.Run(ctx, "/tmp/photo.jpg")
	perr := requireKind(t, err, KindCanceled)
	if !errors.Is(perr, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", perr.Err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("worker was not terminated promptly: %s", elapsed)
	}
}

func TestRunWaitsForFreeSlotWithinTimeout(t *testing.T) {
	script := writeScript(t, `echo '{}'`)
	r, err := NewRunner(Config{
		Command:        []string{"/bin/sh", script},
		Timeout:        500 * time.Millisecond,
		MaxConcurrency: 1,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	r.slots <- struct{}{}
	_, err = r.Run(context.Background(), "/tmp/photo.jpg")
	requireKind(t, err, KindTimeout)

	<-r.slots
	out, err := r.Run(context.Background(), "/tmp/photo.jpg")
	if err != nil {
		t.Fatalf("expected run once slot is free: %v", err)
	}
	if out.Result() != "{}" {
		t.Fatalf("unexpected result: %q", out.Result())
	}
}

func TestNewRunnerRequiresCommand(t *testing.T) {
	if _, err := NewRunner(Config{}); err == nil {
		t.Fatalf("expected error for empty command")
	}
	if _, err := NewRunner(Config{Command: []string{"  "}}); err == nil {
		t.Fatalf("expected error for blank command")
	}
}

func TestLineWriterHandlesSplitWrites(t *testing.T) {
	w := &lineWriter{}
	_, _ = w.Write([]byte("load"))
	_, _ = w.Write([]byte("ing\r\n{\"a\""))
	_, _ = w.Write([]byte(":1}"))
	w.flush()

	lines, count := w.snapshot()
	if count != 2 {
		t.Fatalf("expected 2 lines, got %d", count)
	}
	if lines[0] != "loading" || lines[1] != `{"a":1}` {
		t.Fatalf("unexpected lines: %q", lines)
	}
}

func TestStderrDetailsFallsBackToErrorField(t *testing.T) {
	got := stderrDetails("noise\n{\"error\": \"Photo path is required\"}\n")
	if got != "Photo path is required" {
		t.Fatalf("unexpected details: %q", got)
	}
}

func TestLineWriterDropsOversizedLine(t *testing.T) {
	w := &lineWriter{}
	_, _ = w.Write([]byte("before\n"))
	_, _ = w.Write(bytes.Repeat([]byte("a"), maxLineBytes+1))
	_, _ = w.Write([]byte("aaaa\nafter\n"))
	w.flush()

	if !w.overflow() {
		t.Fatalf("expected overflow to be recorded")
	}
	lines, count := w.snapshot()
	if count != 2 || lines[0] != "before" || lines[1] != "after" {
		t.Fatalf("unexpected lines after overflow: count=%d", count)
	}
}

func TestRunFailsWhenOutputLineTooLong(t *testing.T) {
	script := writeScript(t, `head -c 1100000 /dev/zero | tr '\0' 'a'
echo
echo '{"facialFeatures":[]}'`)
	r := newTestRunner(t, script, 5*time.Second)

	_, err := r.Run(context.Background(), "/tmp/photo.jpg")
	requireKind(t, err, KindOverflow)
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"face-analysis-backend/internal/shared/metrics"
	"face-analysis-backend/internal/shared/telemetry"
)

const (
	defaultTimeout        = 60 * time.Second
	defaultMaxConcurrency = 4
	defaultWaitDelay      = 2 * time.Second
)

// Config describes how to launch the external analysis worker.
type Config struct {
	// Command is the program and any fixed leading arguments, e.g. ["python3", "-u", "analyze_face.py"].
	// The image path is appended as the final argument.
	Command []string
	// Timeout bounds one run, including the wait for a free slot.
	Timeout time.Duration
	// MaxConcurrency caps simultaneously running workers.
	MaxConcurrency int
	// WaitDelay bounds how long output pipes may stay open after the process is killed.
	WaitDelay time.Duration
}

// Runner launches one worker process per Run call.
type Runner struct {
	cfg   Config
	slots chan struct{}
}

// NewRunner validates cfg and constructs a Runner.
func NewRunner(cfg Config) (*Runner, error) {
	if len(cfg.Command) == 0 || strings.TrimSpace(cfg.Command[0]) == "" {
		return nil, errors.New("worker command is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = defaultWaitDelay
	}
	return &Runner{
		cfg:   cfg,
		slots: make(chan struct{}, cfg.MaxConcurrency),
	}, nil
}

// Run executes the worker with imagePath as its argument and returns its stdout lines.
// A single attempt is made. The worker and its process group are killed when ctx is
// cancelled or the timeout expires.
func (r *Runner) Run(ctx context.Context, imagePath string) (Output, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	select {
	case r.slots <- struct{}{}:
	case <-runCtx.Done():
		return Output{}, r.contextError(ctx, runCtx, "")
	}
	defer func() { <-r.slots }()

	requestID := telemetry.RequestIDFromContext(ctx)
	args := append(append([]string(nil), r.cfg.Command[1:]...), imagePath)
	cmd := exec.CommandContext(runCtx, r.cfg.Command[0], args...)
	cmd.WaitDelay = r.cfg.WaitDelay
	configureProcess(cmd)

	stdout := &lineWriter{requestID: requestID}
	stderr := &tailBuffer{max: maxStderrBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		metrics.ObserveWorkerDuration(string(KindSpawn), 0)
		return Output{}, &ProcessError{Kind: KindSpawn, Err: err}
	}
	metrics.WorkerStarted()
	telemetry.Info("worker.started", map[string]any{
		"request_id": requestID,
		"pid":        cmd.Process.Pid,
		"image_path": imagePath,
	})

	waitErr := cmd.Wait()
	metrics.WorkerFinished()
	stdout.flush()

	lines, count := stdout.snapshot()
	out := Output{
		Lines:     lines,
		LineCount: count,
		Stderr:    stderr.String(),
		Duration:  time.Since(start),
	}

	err := r.classify(ctx, runCtx, waitErr, out)
	if err == nil && stdout.overflow() {
		err = &ProcessError{Kind: KindOverflow, Stderr: out.Stderr}
	}
	outcome := "ok"
	if err != nil {
		var perr *ProcessError
		if errors.As(err, &perr) {
			outcome = string(perr.Kind)
		}
	}
	metrics.ObserveWorkerDuration(outcome, out.Duration.Seconds())
	telemetry.Info("worker.finished", map[string]any{
		"request_id":  requestID,
		"outcome":     outcome,
		"lines":       out.LineCount,
		"duration_ms": out.Duration.Milliseconds(),
	})
	return out, err
}

func (r *Runner) classify(ctx, runCtx context.Context, waitErr error, out Output) error {
	if runCtx.Err() != nil {
		return r.contextError(ctx, runCtx, out.Stderr)
	}
	if waitErr != nil && !errors.Is(waitErr, exec.ErrWaitDelay) {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return &ProcessError{Kind: KindExit, ExitCode: exitErr.ExitCode(), Stderr: out.Stderr, Err: waitErr}
		}
		return &ProcessError{Kind: KindExit, ExitCode: -1, Stderr: out.Stderr, Err: fmt.Errorf("wait worker: %w", waitErr)}
	}
	if len(out.Lines) == 0 {
		return &ProcessError{Kind: KindNoOutput, Stderr: out.Stderr}
	}
	return nil
}

// contextError distinguishes caller cancellation from the runner's own timeout.
func (r *Runner) contextError(ctx, runCtx context.Context, stderr string) error {
	if err := ctx.Err(); err != nil {
		return &ProcessError{Kind: KindCanceled, Stderr: stderr, Err: err}
	}
	return &ProcessError{Kind: KindTimeout, Timeout: r.cfg.Timeout, Stderr: stderr, Err: runCtx.Err()}
}

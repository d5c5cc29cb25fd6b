package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"face-analysis-backend/internal/analyses"
	"face-analysis-backend/internal/shared/config"
	"face-analysis-backend/internal/worker"
)

var (
	analyzeCommand string
	analyzeTimeout time.Duration
	analyzeRaw     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Analyze a single image with the worker",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeCommand, "command", "", "Worker command (defaults to WORKER_COMMAND)")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 0, "Worker timeout (defaults to WORKER_TIMEOUT)")
	analyzeCmd.Flags().BoolVar(&analyzeRaw, "raw", false, "Print every worker output line instead of the mapped result")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	command := cfg.WorkerCommand
	if strings.TrimSpace(analyzeCommand) != "" {
		command = strings.Fields(analyzeCommand)
	}
	timeout := cfg.WorkerTimeout
	if analyzeTimeout > 0 {
		timeout = analyzeTimeout
	}

	imagePath := args[0]
	if _, err := os.Stat(imagePath); err != nil {
		return fmt.Errorf("image: %w", err)
	}

	runner, err := worker.NewRunner(worker.Config{Command: command, Timeout: timeout, MaxConcurrency: 1})
	if err != nil {
		return err
	}

	out, err := runner.Run(cmd.Context(), imagePath)
	if err != nil {
		var perr *worker.ProcessError
		if errors.As(err, &perr) && perr.Stderr != "" {
			fmt.Fprint(cmd.ErrOrStderr(), perr.Stderr)
		}
		return err
	}

	if analyzeRaw {
		for _, line := range out.Lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	}

	result, err := analyses.MapResult(out.Result())
	if err != nil {
		var derr *analyses.DomainAnalysisError
		if errors.As(err, &derr) {
			return fmt.Errorf("worker could not analyze the image: %s", derr.Details)
		}
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "worker finished in %s (%d output lines)\n", out.Duration.Round(time.Millisecond), out.LineCount)
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"face-analysis-backend/internal/shared/telemetry"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "faceprobe",
	Short: "Run the facial analysis worker outside the API server",
	Long: `faceprobe invokes the configured analysis worker on a local image and prints
the mapped result, using the same runner and result mapping as the API.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.SetOutput(os.Stderr)
		telemetry.SetLevel(logLevel)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug shows worker output lines)")
}

func initConfig() {
	// .env file is optional
	_ = godotenv.Load()
}

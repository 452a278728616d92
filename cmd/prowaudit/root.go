package main

import (
	"github.com/spf13/cobra"

	"prowaudit/internal/logging"
)

// version is set at build time via -ldflags.
var version = "1.0.0"

var rootFlags struct {
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "prowaudit",
	Short: "Audit Prow CI/CD job failures with LLM-backed root cause analysis",
	Long: "Prowaudit walks Prow artifact trees, analyzes failed step logs,\n" +
		"persists verdicts to SQLite, and renders markdown audit reports.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(*cobra.Command, []string) {
		logging.Init(logging.ParseLevel(rootFlags.logLevel), rootFlags.logFormat)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.Version = version
}

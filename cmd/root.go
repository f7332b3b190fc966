// Package cmd wires the CLI commands: serve, migrate, crawl and version.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sitesage/sitesage/internal/log"
)

var (
	flagLogLevel string
	flagJSONLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "sitesage",
	Short: "sitesage - website chat backend with retrieval-grounded answers",
	Long: `sitesage crawls a tenant's website, indexes its content as vector
embeddings, and answers visitor questions grounded in the indexed pages.

Run "sitesage serve" to start the HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "json-logs", false, "emit logs as JSON")
}

// newLogger builds the process logger from the persistent flags and
// installs it as the slog default.
func newLogger() *slog.Logger {
	logger := log.New(log.Config{Level: parseLevel(flagLogLevel), JSON: flagJSONLogs})
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

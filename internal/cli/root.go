// Package cli implements the ojs-retry command line.
package cli

import (
	"io"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "ojs-retry",
	Short: "Retry decision engine for OJS job queues",
	Long: `ojs-retry classifies job failures and decides whether a failed job is
retried (and after how long) or abandoned to the dead-letter queue.

Run "ojs-retry serve" for the HTTP/gRPC service, or "ojs-retry classify" to
check how an error message would be treated.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
}

// newLogger builds the process logger. JSON goes to stdout for log
// collectors; text uses tint for local development.
func newLogger(format, level string, debug bool, out io.Writer) *slog.Logger {
	lvl := slog.LevelInfo
	switch {
	case debug || level == "debug":
		lvl = slog.LevelDebug
	case level == "warn":
		lvl = slog.LevelWarn
	case level == "error":
		lvl = slog.LevelError
	}

	if format == "text" {
		return slog.New(tint.NewHandler(out, &tint.Options{
			Level:      lvl,
			TimeFormat: time.RFC3339,
		}))
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl}))
}

func getDebugFlag(cmd *cobra.Command) bool {
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return false
	}
	return debug
}

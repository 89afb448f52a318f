// Package main provides the querytrio binary entry point.
// QueryTrio turns a natural-language question plus an entity-relationship
// document into an executable SQL query: three generation strategies run
// concurrently, a human picks the winner, and failed executions are
// repaired automatically up to a bounded attempt count.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/querytrio/querytrio/llm/providers"
)

const (
	Version = "0.1.0"
	appName = "querytrio"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		logLevel string
		logJSON  bool
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Natural-language to SQL query agent",
		Long: `QueryTrio turns a natural-language question plus an entity-relationship
document into an executable SQL query.

Three generation strategies (basic, optimized, advanced) run concurrently,
the human picks a candidate or asks for regeneration with feedback, the
approved query runs against Postgres, and classified execution failures
are repaired automatically up to a bounded attempt count.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(logLevel, logJSON)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit JSON logs instead of terminal-friendly output")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(askCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

func setupLogging(level string, json bool) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
		})
	}
	slog.SetDefault(slog.New(handler))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", appName, Version)
		},
	}
}

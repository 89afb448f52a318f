package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/querytrio/querytrio/config"
	"github.com/querytrio/querytrio/dbexec"
	"github.com/querytrio/querytrio/httpapi"
	"github.com/querytrio/querytrio/llm"
	"github.com/querytrio/querytrio/schema"
	"github.com/querytrio/querytrio/strategy"
	"github.com/querytrio/querytrio/workflow"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader(slog.Default()).Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	engine, supplier, cleanup, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// Reload the schema document when it changes between rounds.
	if cfg.Schema.Watch {
		watcher, err := schema.NewWatcher(supplier, cfg.Schema.DebounceDelay, logger)
		if err != nil {
			return fmt.Errorf("starting schema watcher: %w", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("schema watcher stopped", "error", err)
			}
		}()
	}

	mux := http.NewServeMux()
	httpapi.NewHandler(engine, logger).Register(mux)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.HTTP.Addr, "session", engine.SessionID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildEngine wires the generation, execution, schema, and event
// components into a workflow engine. The returned cleanup closes the
// database pool and the NATS connection.
func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*workflow.Engine, *schema.FileSupplier, func(), error) {
	supplier, err := schema.NewFileSupplier(cfg.Schema.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading schema document: %w", err)
	}

	registry := cfg.Registry()
	logger.Info("model registry loaded", "endpoints", registry.ListEndpoints())

	client := llm.NewClient(registry,
		llm.WithLogger(logger),
		llm.WithHTTPClient(&http.Client{Timeout: cfg.Generate.Timeout}),
	)
	generator := strategy.NewGenerator(client,
		strategy.WithTemperature(cfg.Generate.Temperature),
		strategy.WithLogger(logger),
	)

	executor, err := dbexec.NewPgExecutor(ctx, cfg.Database.URL,
		dbexec.WithQueryTimeout(cfg.Database.QueryTimeout),
		dbexec.WithMaxRows(cfg.Database.MaxRows),
		dbexec.WithPgLogger(logger),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := executor.Ping(ctx); err != nil {
		executor.Close()
		return nil, nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	opts := []workflow.EngineOption{
		workflow.WithDialect(cfg.Database.Dialect),
		workflow.WithRowLimit(cfg.Generate.RowLimit),
		workflow.WithMaxRepairAttempts(cfg.Repair.MaxAttempts),
		workflow.WithEngineLogger(logger),
	}

	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL, nats.Name("querytrio"))
		if err != nil {
			// Events are best-effort; run without them.
			logger.Warn("NATS unavailable, round events disabled", "url", cfg.NATS.URL, "error", err)
		} else {
			opts = append(opts, workflow.WithPublisher(
				workflow.NewPublisher(nc, cfg.NATS.SubjectPrefix, logger)))
		}
	}

	engine := workflow.NewEngine(generator, executor, supplier, opts...)

	cleanup := func() {
		executor.Close()
		if nc != nil {
			nc.Drain()
		}
	}
	return engine, supplier, cleanup, nil
}

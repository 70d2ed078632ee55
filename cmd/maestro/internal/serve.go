package internal

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

	"github.com/spf13/cobra"

	"github.com/maestro-org/maestro/internal/appconfig"
	"github.com/maestro-org/maestro/internal/coordinator"
	"github.com/maestro-org/maestro/internal/httpapi"
	"github.com/maestro-org/maestro/internal/storage/postgres"
	"github.com/maestro-org/maestro/internal/sweeper"
	"github.com/maestro-org/maestro/internal/workexec"
)

func NewServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the stale-execution sweeper.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	cfg, err := appconfig.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("serve: connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("serve: migrate: %w", err)
	}

	revisions := postgres.NewRevisionStore(pool)
	executions := postgres.NewExecutionStore(pool)

	work := workexec.NewRegistry()
	workexec.RegisterBuiltins(work)

	coord := coordinator.New(revisions, executions, work, logger)
	coord.Timeout = cfg.ExecutionTimeout

	sweep := sweeper.New(executions, executions, logger)
	sweep.Timeout = cfg.ExecutionTimeout
	sweep.Interval = cfg.SweepInterval
	go sweep.Run(ctx)

	router := httpapi.NewRouter(&httpapi.Server{
		Coordinator: coord,
		Revisions:   revisions,
		Executions:  executions,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serve: listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info("serve: shutting down")
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

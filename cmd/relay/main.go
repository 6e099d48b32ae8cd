package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/relayworks/relay/internal/approval"
	"github.com/relayworks/relay/internal/engine"
	"github.com/relayworks/relay/internal/handlers"
	"github.com/relayworks/relay/internal/orchestrator"
	"github.com/relayworks/relay/internal/scheduler"
	"github.com/relayworks/relay/internal/server"
	"github.com/relayworks/relay/internal/store"
	"github.com/relayworks/relay/internal/streaming"
	"github.com/relayworks/relay/internal/supervisor"
	"github.com/relayworks/relay/internal/validation"
)

func main() {
	if err := run(); err != nil {
		slog.Error("relay exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return err
	}
	st, err := store.NewLibSQLStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	hub := streaming.NewMemoryHub()
	eventLog := streaming.NewLogTap(store.NewEventLog(st), hub)

	registry := handlers.NewRegistry()
	if err := handlers.RegisterBuiltins(registry, handlers.Connectors{}, handlers.BuiltinConfig{}, logger); err != nil {
		return err
	}

	executor := engine.NewExecutor(st, eventLog, registry, engine.ExecutorConfig{
		StepTimeout: time.Duration(cfg.StepTimeout),
	}, logger)
	pool := engine.NewWorkerPool(cfg.PoolSize)
	defer pool.Shutdown()

	approvals := approval.NewManager(st, approval.Config{
		Threshold:       cfg.ApprovalThreshold,
		DefaultApprover: cfg.DefaultApprover,
	}, logger)

	orch := orchestrator.New(st, executor, approvals, pool, orchestrator.Config{
		MaxRetries: cfg.MaxRetries,
	}, logger)
	defer orch.Close()
	if err := orch.EnsureActionWorkflows(ctx); err != nil {
		return err
	}

	sup := supervisor.New(st, orch.Queue(), supervisor.Config{
		SweepInterval:  time.Duration(cfg.SweepInterval),
		RunningTimeout: time.Duration(cfg.RunningTimeout),
		StartupGrace:   time.Duration(cfg.StartupGrace),
		RetryBase:      time.Duration(cfg.RetryBase),
		MaxRetries:     cfg.MaxRetries,
	}, logger)
	sup.Start(ctx)
	defer sup.Stop()

	sched := scheduler.NewScheduler(st, orch, time.Duration(cfg.SchedulerInterval), logger)
	if err := sched.RecoverMissed(ctx); err != nil {
		logger.Warn("missed trigger recovery failed", "error", err)
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	validator, err := validation.NewWorkflowValidator(registry)
	if err != nil {
		return err
	}

	srv := server.New(server.Deps{
		Store:     st,
		Pipeline:  orch,
		Approvals: approvals,
		Executor:  executor,
		Validator: validator,
		Hub:       hub,
		Logger:    logger,
	})

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("relay listening", "addr", cfg.ListenAddr, "db", cfg.DBPath)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
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

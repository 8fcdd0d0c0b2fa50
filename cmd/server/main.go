package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/tablerag/internal/backend"
	"github.com/JonMunkholm/tablerag/internal/config"
	"github.com/JonMunkholm/tablerag/internal/core"
	"github.com/JonMunkholm/tablerag/internal/history"
	"github.com/JonMunkholm/tablerag/internal/logging"
	"github.com/JonMunkholm/tablerag/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	client, err := backend.New(backend.Options{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
	})
	if err != nil {
		slog.Error("failed to create backend client", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Upload history lives in Postgres when configured, in memory otherwise
	var store core.HistoryStore
	if cfg.Database.Enabled() {
		pool, err := history.OpenPool(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg := history.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("failed to migrate history table", "error", err)
			os.Exit(1)
		}
		store = pg
	} else {
		slog.Info("DATABASE_URL not set, keeping upload history in memory")
		store = history.NewMemoryStore(0)
	}

	service := core.NewService(client, core.ServiceConfig{
		Poll: core.PollConfig{
			Interval:             cfg.Poll.Interval,
			MaxTransientFailures: cfg.Poll.MaxTransientFailures,
			MaxWait:              cfg.Poll.MaxWait,
			PreviewRows:          cfg.Viewer.PreviewRows,
		},
		ContextRows:   cfg.Viewer.ContextRows,
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWaitTime,
		SessionTTL:    cfg.Upload.SessionTTL,
	}, store)

	if err := client.Ping(ctx); err != nil {
		slog.Warn("backend not reachable yet", "url", client.BaseURL(), "error", err)
	}

	server := web.NewServer(service, client, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartHistoryPurge(jobCtx, core.PurgeConfig{
		RetentionDays: cfg.History.RetentionDays,
		CheckInterval: cfg.History.CheckInterval,
	})

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running sessions record their outcome
		if st := service.UploadLimiterStatus(); st.Active > 0 {
			slog.Info("waiting for upload sessions to complete", "active", st.Active)
			if err := service.WaitForUploads(shutdownCtx); err != nil {
				slog.Warn("upload sessions did not complete in time", "error", err)
			} else {
				slog.Info("all upload sessions completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		os.Exit(1)
	}
	<-stopped
	slog.Info("server stopped")
}

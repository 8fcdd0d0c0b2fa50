package core

// scheduler.go runs background maintenance for the upload history.
//
// Entries older than the retention window are purged periodically. The
// scheduler is long-running and context-aware for graceful shutdown. It logs
// failures but never stops the application because of them.

import (
	"context"
	"log/slog"
	"time"
)

// PurgeConfig holds configuration for the history purge scheduler.
// Zero values fall back to defaults.
type PurgeConfig struct {
	RetentionDays int           // Days to keep history entries (default: 30)
	CheckInterval time.Duration // How often to run (default: 24h)
}

func (c *PurgeConfig) defaults() {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
}

// StartHistoryPurge periodically deletes old history entries. It runs once
// immediately, then every CheckInterval, until ctx is cancelled. It returns
// at once when the service has no history store.
func (s *Service) StartHistoryPurge(ctx context.Context, cfg PurgeConfig) {
	if s.history == nil {
		return
	}
	cfg.defaults()

	slog.Info("history purge scheduler started",
		"retention_days", cfg.RetentionDays,
		"interval", cfg.CheckInterval,
	)

	s.runPurge(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history purge scheduler stopped")
			return
		case <-ticker.C:
			s.runPurge(ctx, cfg)
		}
	}
}

// runPurge performs one purge cycle.
func (s *Service) runPurge(ctx context.Context, cfg PurgeConfig) {
	start := time.Now()
	cutoff := start.AddDate(0, 0, -cfg.RetentionDays)

	purged, err := s.history.Purge(ctx, cutoff)
	if err != nil {
		slog.Error("history purge failed", "error", err)
		return
	}
	slog.Info("purged upload history",
		"entries_purged", purged,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

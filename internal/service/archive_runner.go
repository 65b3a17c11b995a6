package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// ArchiveRunner moves audit events past the retention window to cold
// storage on a fixed interval.
type ArchiveRunner struct {
	archiver      domain.Archiver
	retentionDays int
	interval      time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// NewArchiveRunner creates an ArchiveRunner.
func NewArchiveRunner(archiver domain.Archiver, retentionDays int, interval time.Duration, logger *slog.Logger) *ArchiveRunner {
	return &ArchiveRunner{
		archiver:      archiver,
		retentionDays: retentionDays,
		interval:      interval,
		now:           time.Now,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Cutoff returns the time before which events are archived.
func (a *ArchiveRunner) Cutoff() time.Time {
	return a.now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
}

// RunOnce archives everything older than the cutoff.
func (a *ArchiveRunner) RunOnce(ctx context.Context) (int64, error) {
	cutoff := a.Cutoff()
	n, err := a.archiver.ArchiveEvents(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("archiving events before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	a.logger.InfoContext(ctx, "archive run complete",
		slog.Time("cutoff", cutoff),
		slog.Int64("events_archived", n),
	)
	return n, nil
}

// Run archives immediately and then every interval until ctx is cancelled.
func (a *ArchiveRunner) Run(ctx context.Context) error {
	if _, err := a.RunOnce(ctx); err != nil {
		a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
	}
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.RunOnce(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

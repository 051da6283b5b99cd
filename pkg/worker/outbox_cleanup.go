package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/report-assistant/internal/repository"
	"github.com/jwalitptl/report-assistant/pkg/logger"
)

// OutboxCleanupWorker deletes processed outbox rows older than the retention.
type OutboxCleanupWorker struct {
	repo      repository.OutboxRepository
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
	now       func() time.Time
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, retention, interval time.Duration, log *logger.Logger) *OutboxCleanupWorker {
	return &OutboxCleanupWorker{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    log,
		now:       time.Now,
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				w.logger.Error(err, "Failed to clean up outbox")
			}
		}
	}
}

// Cleanup runs one pass and returns the number of rows removed.
func (w *OutboxCleanupWorker) Cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)

	rows, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up outbox events: %w", err)
	}

	if rows > 0 {
		w.logger.Info("Cleaned up outbox events", "rows", rows, "before", cutoff.Format(time.RFC3339))
	}
	return rows, nil
}

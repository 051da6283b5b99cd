package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/report-assistant/internal/model"
	"github.com/jwalitptl/report-assistant/internal/repository"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, event_type, payload, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`
	event.ID = uuid.New()
	event.CreatedAt = time.Now().UTC()
	event.UpdatedAt = event.CreatedAt
	event.Status = string(model.OutboxStatusPending)

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		[]byte(event.Payload),
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// outboxClaimTimeout is how long a claimed event may stay in processing
// before another worker may claim it again.
const outboxClaimTimeout = 5 * time.Minute

// GetPendingEvents claims the oldest pending events. Rows locked by another
// worker's claim are skipped.
func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	selectQuery := `
		SELECT id, event_type, payload, status, error_message, retry_count,
			created_at, processed_at, updated_at
		FROM outbox_events
		WHERE status = $1
		OR (status = $2 AND updated_at < $3)
		ORDER BY created_at ASC
		LIMIT $4
		FOR UPDATE SKIP LOCKED
	`
	claimQuery := `
		UPDATE outbox_events
		SET status = $1, updated_at = NOW()
		WHERE id = ANY($2::uuid[])
	`

	events := []*model.OutboxEvent{}
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		staleBefore := time.Now().UTC().Add(-outboxClaimTimeout)
		if err := tx.SelectContext(ctx, &events, selectQuery,
			string(model.OutboxStatusPending),
			string(model.OutboxStatusProcessing),
			staleBefore,
			limit,
		); err != nil {
			return fmt.Errorf("failed to get pending events: %w", err)
		}
		if len(events) == 0 {
			return nil
		}

		ids := make([]string, len(events))
		for i, e := range events {
			ids[i] = e.ID.String()
		}
		if _, err := tx.ExecContext(ctx, claimQuery, string(model.OutboxStatusProcessing), pq.Array(ids)); err != nil {
			return fmt.Errorf("failed to claim pending events: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range events {
		e.Status = string(model.OutboxStatusProcessing)
	}
	return events, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error {
	query := `
		UPDATE outbox_events
		SET status = $1,
			error_message = $2,
			retry_count = retry_count + CASE WHEN $1 = 'failed' THEN 1 ELSE 0 END,
			processed_at = CASE WHEN $1 = 'processed' THEN NOW() ELSE processed_at END,
			updated_at = NOW()
		WHERE id = $3
	`
	if _, err := r.db.ExecContext(ctx, query, string(status), errorMessage, id); err != nil {
		return fmt.Errorf("failed to update outbox event status: %w", err)
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = 'processed'
		AND processed_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}

	return result.RowsAffected()
}

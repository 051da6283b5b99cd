package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/report-assistant/internal/model"
	"github.com/jwalitptl/report-assistant/internal/repository"
)

type OutboxRepository struct {
	mu     sync.Mutex
	events []*model.OutboxEvent
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{}
}

var _ repository.OutboxRepository = (*OutboxRepository)(nil)

func (r *OutboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	event.ID = uuid.New()
	event.CreatedAt = time.Now().UTC()
	event.UpdatedAt = event.CreatedAt
	event.Status = string(model.OutboxStatusPending)
	stored := *event
	r.events = append(r.events, &stored)
	return nil
}

func (r *OutboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make([]*model.OutboxEvent, 0, limit)
	for _, e := range r.events {
		if len(pending) == limit {
			break
		}
		if e.Status == string(model.OutboxStatusPending) {
			e.Status = string(model.OutboxStatusProcessing)
			e.UpdatedAt = time.Now().UTC()
			copied := *e
			pending = append(pending, &copied)
		}
	}
	return pending, nil
}

func (r *OutboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		if e.ID != id {
			continue
		}
		now := time.Now().UTC()
		e.Status = string(status)
		e.ErrorMessage = errorMessage
		e.UpdatedAt = now
		switch status {
		case model.OutboxStatusProcessed:
			e.ProcessedAt = &now
		case model.OutboxStatusFailed:
			e.RetryCount++
		}
		return nil
	}
	return repository.ErrNotFound
}

func (r *OutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.events[:0]
	var deleted int64
	for _, e := range r.events {
		if e.Status == string(model.OutboxStatusProcessed) && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return deleted, nil
}

// Events returns a snapshot of every stored event.
func (r *OutboxRepository) Events() []model.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.OutboxEvent, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, *e)
	}
	return out
}

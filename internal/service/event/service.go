package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/report-assistant/internal/model"
	"github.com/jwalitptl/report-assistant/internal/repository"
)

// Emitter records domain events for asynchronous publication.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}

type AnalysisCompleted struct {
	SessionID  uuid.UUID           `json:"session_id"`
	OwnerID    uuid.UUID           `json:"owner_id"`
	State      model.AnalysisState `json:"state"`
	HasSummary bool                `json:"has_summary"`
	HasAudio   bool                `json:"has_audio"`
	Notices    int                 `json:"notices"`
	At         time.Time           `json:"at"`
}

type SessionDeleted struct {
	SessionID uuid.UUID `json:"session_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	At        time.Time `json:"at"`
}

// EventService writes events to the transactional outbox; the worker
// publishes them.
type EventService struct {
	outboxRepo repository.OutboxRepository
}

func NewEventService(outboxRepo repository.OutboxRepository) *EventService {
	return &EventService{outboxRepo: outboxRepo}
}

func (s *EventService) Emit(ctx context.Context, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   payloadJSON,
	}

	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

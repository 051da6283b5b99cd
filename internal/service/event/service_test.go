package event

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/report-assistant/internal/model"
	"github.com/jwalitptl/report-assistant/internal/repository/memory"
)

func TestEmitWritesPendingOutboxEvent(t *testing.T) {
	repo := memory.NewOutboxRepository()
	svc := NewEventService(repo)

	sessionID := uuid.New()
	require.NoError(t, svc.Emit(context.Background(), model.EventSessionDeleted, SessionDeleted{SessionID: sessionID}))

	events := repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventSessionDeleted, events[0].EventType)
	assert.Equal(t, string(model.OutboxStatusPending), events[0].Status)

	var payload SessionDeleted
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, sessionID, payload.SessionID)
}

func TestEmitRejectsUnmarshalable(t *testing.T) {
	svc := NewEventService(memory.NewOutboxRepository())
	assert.Error(t, svc.Emit(context.Background(), "X", make(chan int)))
}

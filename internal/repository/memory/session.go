package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/report-assistant/internal/model"
	"github.com/jwalitptl/report-assistant/internal/repository"
)

type sessionEntry struct {
	session model.Session
	seq     uint64
}

type messageEntry struct {
	message model.Message
	seq     uint64
}

// SessionRepository keeps sessions and messages in process memory. Used by
// the "memory" database driver and in tests.
type SessionRepository struct {
	mu       sync.RWMutex
	seq      uint64
	sessions map[uuid.UUID]*sessionEntry
	messages map[uuid.UUID][]messageEntry
	now      func() time.Time
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[uuid.UUID]*sessionEntry),
		messages: make(map[uuid.UUID][]messageEntry),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ repository.SessionRepository = (*SessionRepository)(nil)

func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	session.ID = uuid.New()
	session.CreatedAt = r.now()
	r.sessions[session.ID] = &sessionEntry{session: *session, seq: r.seq}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	s := entry.session
	return &s, nil
}

func (r *SessionRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*sessionEntry, 0)
	for _, entry := range r.sessions {
		if entry.session.OwnerID == ownerID {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.session.CreatedAt.Equal(b.session.CreatedAt) {
			return a.session.CreatedAt.After(b.session.CreatedAt)
		}
		return a.seq > b.seq
	})

	sessions := make([]*model.Session, 0, len(entries))
	for _, entry := range entries {
		s := entry.session
		sessions = append(sessions, &s)
	}
	return sessions, nil
}

func (r *SessionRepository) DeleteMessages(ctx context.Context, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.messages, sessionID)
	return nil
}

// Delete refuses to orphan messages, mirroring the foreign key in postgres.
func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return repository.ErrNotFound
	}
	if len(r.messages[id]) > 0 {
		return fmt.Errorf("failed to delete session: %d messages still reference it", len(r.messages[id]))
	}
	delete(r.sessions, id)
	return nil
}

func (r *SessionRepository) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.messages[sessionID]
	messages := make([]*model.Message, 0, len(entries))
	for _, entry := range entries {
		m := entry.message
		messages = append(messages, &m)
	}
	return messages, nil
}

func (r *SessionRepository) AppendMessage(ctx context.Context, message *model.Message) error {
	if !message.Role.Valid() {
		return fmt.Errorf("invalid message role %q", message.Role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[message.SessionID]; !ok {
		return repository.ErrNotFound
	}
	r.seq++
	message.ID = uuid.New()
	message.CreatedAt = r.now()
	r.messages[message.SessionID] = append(r.messages[message.SessionID], messageEntry{message: *message, seq: r.seq})
	return nil
}

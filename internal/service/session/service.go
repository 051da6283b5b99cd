package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/report-assistant/internal/model"
	"github.com/jwalitptl/report-assistant/internal/repository"
	"github.com/jwalitptl/report-assistant/internal/service/event"
	"github.com/jwalitptl/report-assistant/pkg/errors"
	"github.com/jwalitptl/report-assistant/pkg/logger"
)

// AudioReleaser drops audio an owner no longer displays.
type AudioReleaser interface {
	ReleaseOwner(ownerID uuid.UUID)
}

// AnalysisTracker arbitrates between running analyses and deletion.
type AnalysisTracker interface {
	// BeginDelete reserves the session, failing while an analysis runs.
	BeginDelete(sessionID uuid.UUID) error
	EndDelete(sessionID uuid.UUID)
	Reset(sessionID uuid.UUID)
}

type Service struct {
	repo    repository.SessionRepository
	audio   AudioReleaser
	tracker AnalysisTracker
	events  event.Emitter
	logger  *logger.Logger
	now     func() time.Time
}

func NewService(repo repository.SessionRepository, audio AudioReleaser, tracker AnalysisTracker,
	events event.Emitter, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		audio:   audio,
		tracker: tracker,
		events:  events,
		logger:  log,
		now:     time.Now,
	}
}

// Create starts a new session. A blank title gets the dated default.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, title string) (*model.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = model.DefaultSessionTitle(s.now())
	}

	session := &model.Session{OwnerID: ownerID, Title: title}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, errors.ExternalService("session store", err)
	}

	s.audio.ReleaseOwner(ownerID)
	s.logger.Info("Session created", "session_id", session.ID.String(), "owner_id", ownerID.String())
	return session, nil
}

// List returns the owner's sessions newest first.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]*model.Session, error) {
	sessions, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, errors.ExternalService("session store", err)
	}
	return sessions, nil
}

// EnsureCurrent returns the newest session, creating one when the owner has
// none. The bool reports whether a session was created.
func (s *Service) EnsureCurrent(ctx context.Context, ownerID uuid.UUID) (*model.Session, bool, error) {
	sessions, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, false, err
	}
	if len(sessions) > 0 {
		return sessions[0], false, nil
	}
	session, err := s.Create(ctx, ownerID, "")
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// Get returns a session owned by ownerID.
func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Session, error) {
	session, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("session", err)
		}
		return nil, errors.ExternalService("session store", err)
	}
	if session.OwnerID != ownerID {
		return nil, errors.NotFound("session", nil)
	}
	return session, nil
}

// Delete removes a session's messages and then the session itself. When the
// deleted session was the caller's current one, a fresh session is created
// and returned.
func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID, current bool) (*model.Session, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	if err := s.tracker.BeginDelete(id); err != nil {
		return nil, errors.State(err.Error(), err)
	}
	if err := s.deleteWithMessages(ctx, id); err != nil {
		s.tracker.EndDelete(id)
		return nil, err
	}

	s.tracker.Reset(id)
	s.audio.ReleaseOwner(ownerID)
	s.logger.Info("Session deleted", "session_id", id.String(), "owner_id", ownerID.String())

	if err := s.events.Emit(ctx, model.EventSessionDeleted, event.SessionDeleted{
		SessionID: id,
		OwnerID:   ownerID,
		At:        s.now().UTC(),
	}); err != nil {
		s.logger.Error(err, "Failed to record session deletion event", "session_id", id.String())
	}

	if !current {
		return nil, nil
	}
	return s.Create(ctx, ownerID, "")
}

// deleteWithMessages removes messages before the session, in one transaction
// when the store supports it.
func (s *Service) deleteWithMessages(ctx context.Context, id uuid.UUID) error {
	if tx, ok := s.repo.(repository.TxSessionDeleter); ok {
		if err := tx.DeleteWithMessages(ctx, id); err != nil {
			return errors.ExternalService("session store", fmt.Errorf("delete session: %w", err))
		}
		return nil
	}

	if err := s.repo.DeleteMessages(ctx, id); err != nil {
		return errors.ExternalService("session store", fmt.Errorf("delete messages: %w", err))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.ExternalService("session store", fmt.Errorf("delete session: %w", err))
	}
	return nil
}

// ListMessages returns a session's messages oldest first. Sessions that do
// not exist, or that belong to someone else, have no messages.
func (s *Service) ListMessages(ctx context.Context, ownerID, id uuid.UUID) ([]*model.Message, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return []*model.Message{}, nil
		}
		return nil, err
	}

	messages, err := s.repo.ListMessages(ctx, id)
	if err != nil {
		return nil, errors.ExternalService("session store", err)
	}
	return messages, nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/report-assistant/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("record already exists")
)

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
	}

	// SessionRepository is the session store. Message order within a
	// session is insertion order (created_at ascending).
	SessionRepository interface {
		Create(ctx context.Context, session *model.Session) error
		Get(ctx context.Context, id uuid.UUID) (*model.Session, error)
		// ListByOwner returns the owner's sessions newest first.
		ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Session, error)
		Delete(ctx context.Context, id uuid.UUID) error
		DeleteMessages(ctx context.Context, sessionID uuid.UUID) error
		ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*model.Message, error)
		AppendMessage(ctx context.Context, message *model.Message) error
	}

	// TxSessionDeleter is implemented by session stores that can remove a
	// session and its messages inside one transaction.
	TxSessionDeleter interface {
		DeleteWithMessages(ctx context.Context, sessionID uuid.UUID) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// GetPendingEvents claims up to limit pending events, oldest first,
		// by moving them to processing. Claims left behind by a crashed
		// worker become pending again after the claim timeout.
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// UsageRepository counts analyses per owner per day.
	UsageRepository interface {
		Increment(ctx context.Context, ownerID uuid.UUID, day time.Time) (int, error)
		Decrement(ctx context.Context, ownerID uuid.UUID, day time.Time) error
		Get(ctx context.Context, ownerID uuid.UUID, day time.Time) (int, error)
	}

	// TokenRepository tracks revoked access tokens until they expire.
	TokenRepository interface {
		Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
		IsRevoked(ctx context.Context, tokenID string) (bool, error)
	}
)

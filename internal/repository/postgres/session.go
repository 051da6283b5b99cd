package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/report-assistant/internal/model"
	"github.com/jwalitptl/report-assistant/internal/repository"
)

type sessionRepository struct {
	BaseRepository
}

func NewSessionRepository(base BaseRepository) repository.SessionRepository {
	return &sessionRepository{base}
}

var _ repository.TxSessionDeleter = (*sessionRepository)(nil)

func (r *sessionRepository) Create(ctx context.Context, session *model.Session) error {
	query := `
		INSERT INTO chat_sessions (id, user_id, title, created_at)
		VALUES ($1, $2, $3, $4)
	`

	session.ID = uuid.New()
	session.CreatedAt = time.Now().UTC()

	if _, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.OwnerID,
		session.Title,
		session.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *sessionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	query := `
		SELECT id, user_id, title, created_at
		FROM chat_sessions
		WHERE id = $1
	`

	var session model.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (r *sessionRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Session, error) {
	query := `
		SELECT id, user_id, title, created_at
		FROM chat_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	sessions := []*model.Session{}
	if err := r.db.SelectContext(ctx, &sessions, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (r *sessionRepository) DeleteMessages(ctx context.Context, sessionID uuid.UUID) error {
	query := `DELETE FROM chat_messages WHERE session_id = $1`

	if _, err := r.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to delete session messages: %w", err)
	}
	return nil
}

func (r *sessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM chat_sessions WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteWithMessages removes the session's messages and then the session in
// one transaction.
func (r *sessionRepository) DeleteWithMessages(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete session messages: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r *sessionRepository) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*model.Message, error) {
	query := `
		SELECT id, session_id, content, role, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC, seq ASC
	`

	messages := []*model.Message{}
	if err := r.db.SelectContext(ctx, &messages, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (r *sessionRepository) AppendMessage(ctx context.Context, message *model.Message) error {
	if !message.Role.Valid() {
		return fmt.Errorf("invalid message role %q", message.Role)
	}

	query := `
		INSERT INTO chat_messages (id, session_id, content, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	message.ID = uuid.New()
	message.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		message.ID,
		message.SessionID,
		message.Content,
		message.Role,
		message.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return repository.ErrNotFound
		}
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

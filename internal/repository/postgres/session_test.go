package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/report-assistant/internal/model"
	"github.com/jwalitptl/report-assistant/internal/repository"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestSessionRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(NewBaseRepository(db))

	owner := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chat_sessions")).
		WithArgs(sqlmock.AnyArg(), owner, "Analysis - 2024-05-01", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session := &model.Session{OwnerID: owner, Title: "Analysis - 2024-05-01"}
	require.NoError(t, repo.Create(context.Background(), session))
	assert.NotEqual(t, uuid.Nil, session.ID)
	assert.False(t, session.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_ListByOwnerNewestFirst(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(NewBaseRepository(db))

	owner := uuid.New()
	newer, older := uuid.New(), uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "title", "created_at"}).
		AddRow(newer.String(), owner.String(), "b", now).
		AddRow(older.String(), owner.String(), "a", now.Add(-time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs(owner).
		WillReturnRows(rows)

	sessions, err := repo.ListByOwner(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, newer, sessions[0].ID)
	assert.Equal(t, older, sessions[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_DeleteNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(NewBaseRepository(db))

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM chat_sessions")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionRepository_DeleteMessages(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(NewBaseRepository(db))

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM chat_messages WHERE session_id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.DeleteMessages(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_DeleteWithMessagesInOneTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(NewBaseRepository(db)).(repository.TxSessionDeleter)

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM chat_messages WHERE session_id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM chat_sessions WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteWithMessages(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_DeleteWithMessagesRollsBackMissingSession(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(NewBaseRepository(db)).(repository.TxSessionDeleter)

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM chat_messages")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM chat_sessions")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.DeleteWithMessages(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_ListMessagesOldestFirst(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(NewBaseRepository(db))

	sessionID := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "session_id", "content", "role", "created_at"}).
		AddRow(uuid.NewString(), sessionID.String(), "question", "user", now).
		AddRow(uuid.NewString(), sessionID.String(), "answer", "assistant", now.Add(time.Second))

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at ASC, seq ASC")).
		WithArgs(sessionID).
		WillReturnRows(rows)

	messages, err := repo.ListMessages(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, model.RoleUser, messages[0].Role)
	assert.Equal(t, model.RoleAssistant, messages[1].Role)
}

func TestSessionRepository_ListMessagesEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(NewBaseRepository(db))

	mock.ExpectQuery(regexp.QuoteMeta("FROM chat_messages")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "content", "role", "created_at"}))

	messages, err := repo.ListMessages(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)
}

func TestSessionRepository_AppendMessageMissingSession(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(NewBaseRepository(db))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chat_messages")).
		WillReturnError(&pq.Error{Code: "23503"})

	err := repo.AppendMessage(context.Background(), &model.Message{
		SessionID: uuid.New(),
		Content:   "hello",
		Role:      model.RoleUser,
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionRepository_AppendMessageRejectsRole(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewSessionRepository(NewBaseRepository(db))

	err := repo.AppendMessage(context.Background(), &model.Message{SessionID: uuid.New(), Role: "system"})
	assert.Error(t, err)
}

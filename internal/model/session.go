package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role of a chat message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Session groups the messages of one analysis conversation.
type Session struct {
	Base
	OwnerID uuid.UUID `json:"owner_id" db:"user_id"`
	Title   string    `json:"title" db:"title"`
}

// Message belongs to exactly one live Session.
type Message struct {
	Base
	SessionID uuid.UUID `json:"session_id" db:"session_id"`
	Content   string    `json:"content" db:"content"`
	Role      Role      `json:"role" db:"role"`
}

type CreateSessionRequest struct {
	Title string `json:"title" binding:"max=200"`
}

// DefaultSessionTitle names sessions created without an explicit title.
func DefaultSessionTitle(now time.Time) string {
	return fmt.Sprintf("Analysis - %s", now.Format("2006-01-02"))
}

// SessionLog is the transcript of messages persisted during one
// orchestration call, in persistence order.
type SessionLog struct {
	entries []Message
}

func (l *SessionLog) Append(m Message) {
	l.entries = append(l.entries, m)
}

func (l *SessionLog) Entries() []Message {
	out := make([]Message, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *SessionLog) Len() int {
	return len(l.entries)
}

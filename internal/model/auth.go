package model

import (
	"time"

	"github.com/google/uuid"
)

// AuthRequest types
type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type SignUpRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" binding:"omitempty,eqfield=Password"`
	Name            string `json:"name" binding:"required"`
}

// AuthSession is returned by sign-in and sign-up.
type AuthSession struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

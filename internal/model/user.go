package model

// User represents an authenticated principal. The users table mirrors the
// identity collaborator's schema plus the password hash we verify against.
type User struct {
	Base
	Email        string `json:"email" db:"email"`
	Name         string `json:"name" db:"name"`
	PasswordHash string `json:"-" db:"password_hash"`
}

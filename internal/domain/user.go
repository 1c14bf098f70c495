package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User represents an analyst account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserRepository defines the interface for user persistence.
type UserRepository interface {
	// FindByEmail returns ErrNotFound when no account exists.
	FindByEmail(ctx context.Context, email string) (*User, error)
	// Create returns ErrConflict when the email is taken.
	Create(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, email, passwordHash string) error
}

package core

import (
	"context"
	"time"
)

// User is an operator allowed to sign in to the back office.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUser carries the fields of a user to insert. The password is already hashed.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Role         string
}

// UserService provides user lookup and creation.
type UserService interface {
	// GetByUsername finds an active user by username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	GetByID(ctx context.Context, userID int) (*User, error)

	// Create inserts a user; a taken username or email is a Duplicate error.
	Create(ctx context.Context, u NewUser) (*User, error)
}

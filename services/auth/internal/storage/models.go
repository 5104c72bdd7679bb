package storage

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrTokenRotated = errors.New("refresh token already rotated")
)

// User is the identity record. PasswordHash is nil for accounts created via
// social login that never set a password.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash *string
	Provider     *string
	PhotoURL     *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type RefreshToken struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *uuid.UUID
}

// OTPCode holds the single active password-reset code for an email. One row
// per email by construction; issuing a new code overwrites the old one.
type OTPCode struct {
	Email      string
	CodeHash   string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	VerifiedAt *time.Time
	ConsumedAt *time.Time
}

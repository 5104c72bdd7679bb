// Package otp owns the password-reset code lifecycle: issued, verified,
// consumed. At most one code is live per email; issuing replaces the prior.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/aminammar1/storefront/services/auth/internal/storage"
)

var (
	// ErrInvalidCode covers mismatch, expiry and absence alike so callers
	// cannot tell which one happened.
	ErrInvalidCode = errors.New("invalid or expired code")

	// ErrNoPendingReset means no verified, unconsumed code exists for the
	// email, so a password reset must not proceed.
	ErrNoPendingReset = errors.New("no pending verified reset")
)

const CodeLength = 6

type Store interface {
	UpsertOTP(ctx context.Context, email, codeHash string, issuedAt, expiresAt time.Time) error
	GetOTP(ctx context.Context, email string) (*storage.OTPCode, error)
	MarkOTPVerified(ctx context.Context, email string, at time.Time) error
	ConsumeOTP(ctx context.Context, email string, at time.Time) error
}

type Manager struct {
	store        Store
	ttl          time.Duration
	verifyWindow time.Duration
}

// New builds a manager. ttl bounds code validity from issuance;
// verifyWindow bounds how long after verification the reset may complete.
func New(store Store, ttl, verifyWindow time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl, verifyWindow: verifyWindow}
}

// Issue generates a fresh code and durably stores its hash before returning.
// The plaintext code goes to the caller exactly once, for delivery.
func (m *Manager) Issue(ctx context.Context, email string, now time.Time) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	if err := m.store.UpsertOTP(ctx, email, hashCode(code), now, now.Add(m.ttl)); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	return code, nil
}

// Verify transitions issued → verified. Any failure is ErrInvalidCode.
func (m *Manager) Verify(ctx context.Context, email, code string, now time.Time) error {
	record, err := m.store.GetOTP(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrInvalidCode
		}
		return err
	}

	if record.ConsumedAt != nil || record.VerifiedAt != nil {
		return ErrInvalidCode
	}
	if now.After(record.ExpiresAt) {
		return ErrInvalidCode
	}
	if subtle.ConstantTimeCompare([]byte(record.CodeHash), []byte(hashCode(code))) != 1 {
		return ErrInvalidCode
	}

	if err := m.store.MarkOTPVerified(ctx, email, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrInvalidCode
		}
		return err
	}
	return nil
}

// Consume transitions verified → consumed, gating the actual password
// change. The verified state itself expires after the verify window.
func (m *Manager) Consume(ctx context.Context, email string, now time.Time) error {
	record, err := m.store.GetOTP(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNoPendingReset
		}
		return err
	}

	if record.VerifiedAt == nil || record.ConsumedAt != nil {
		return ErrNoPendingReset
	}
	if now.After(record.VerifiedAt.Add(m.verifyWindow)) {
		return ErrNoPendingReset
	}

	if err := m.store.ConsumeOTP(ctx, email, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNoPendingReset
		}
		return err
	}
	return nil
}

func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < CodeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

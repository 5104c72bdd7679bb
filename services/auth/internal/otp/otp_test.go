package otp

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/aminammar1/storefront/services/auth/internal/storage"
)

type memOTPStore struct {
	mu    sync.Mutex
	codes map[string]*storage.OTPCode
}

func newMemOTPStore() *memOTPStore {
	return &memOTPStore{codes: map[string]*storage.OTPCode{}}
}

func (m *memOTPStore) UpsertOTP(_ context.Context, email, codeHash string, issuedAt, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[email] = &storage.OTPCode{Email: email, CodeHash: codeHash, IssuedAt: issuedAt, ExpiresAt: expiresAt}
	return nil
}

func (m *memOTPStore) GetOTP(_ context.Context, email string) (*storage.OTPCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.codes[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *code
	return &copied, nil
}

func (m *memOTPStore) MarkOTPVerified(_ context.Context, email string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.codes[email]
	if !ok || code.VerifiedAt != nil || code.ConsumedAt != nil {
		return storage.ErrNotFound
	}
	code.VerifiedAt = &at
	return nil
}

func (m *memOTPStore) ConsumeOTP(_ context.Context, email string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.codes[email]
	if !ok || code.VerifiedAt == nil || code.ConsumedAt != nil {
		return storage.ErrNotFound
	}
	code.ConsumedAt = &at
	return nil
}

const testEmail = "user@example.com"

func TestIssueGeneratesNumericCode(t *testing.T) {
	store := newMemOTPStore()
	mgr := New(store, 10*time.Minute, 15*time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	code, err := mgr.Issue(context.Background(), testEmail, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !regexp.MustCompile(`^[0-9]{6}$`).MatchString(code) {
		t.Fatalf("expected 6-digit code, got %q", code)
	}
	if store.codes[testEmail].CodeHash == code {
		t.Fatalf("plaintext code must not be stored")
	}
}

func TestVerifyHappyPathOnce(t *testing.T) {
	store := newMemOTPStore()
	mgr := New(store, 10*time.Minute, 15*time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	code, err := mgr.Issue(context.Background(), testEmail, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := mgr.Verify(context.Background(), testEmail, code, now.Add(time.Minute)); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// Second verification of the same code must fail.
	if err := mgr.Verify(context.Background(), testEmail, code, now.Add(2*time.Minute)); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode on replay, got %v", err)
	}
}

func TestVerifyRejectsWrongAndExpired(t *testing.T) {
	store := newMemOTPStore()
	mgr := New(store, 10*time.Minute, 15*time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	code, err := mgr.Issue(context.Background(), testEmail, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := mgr.Verify(context.Background(), testEmail, "000000", now); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode for wrong code, got %v", err)
	}
	if err := mgr.Verify(context.Background(), testEmail, code, now.Add(11*time.Minute)); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode for expired code, got %v", err)
	}
	if err := mgr.Verify(context.Background(), "other@example.com", code, now); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode for unknown email, got %v", err)
	}
}

func TestReissueInvalidatesPriorCode(t *testing.T) {
	store := newMemOTPStore()
	mgr := New(store, 10*time.Minute, 15*time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := mgr.Issue(context.Background(), testEmail, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := mgr.Issue(context.Background(), testEmail, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("reissue: %v", err)
	}

	if first == second {
		t.Fatalf("expected a fresh code")
	}
	if err := mgr.Verify(context.Background(), testEmail, first, now.Add(2*time.Minute)); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected prior code invalidated, got %v", err)
	}
	if err := mgr.Verify(context.Background(), testEmail, second, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("verify fresh code: %v", err)
	}
}

func TestConsumeRequiresVerifiedState(t *testing.T) {
	store := newMemOTPStore()
	mgr := New(store, 10*time.Minute, 15*time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := mgr.Consume(context.Background(), testEmail, now); !errors.Is(err, ErrNoPendingReset) {
		t.Fatalf("expected ErrNoPendingReset with no record, got %v", err)
	}

	code, err := mgr.Issue(context.Background(), testEmail, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := mgr.Consume(context.Background(), testEmail, now); !errors.Is(err, ErrNoPendingReset) {
		t.Fatalf("expected ErrNoPendingReset before verification, got %v", err)
	}

	if err := mgr.Verify(context.Background(), testEmail, code, now); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := mgr.Consume(context.Background(), testEmail, now.Add(time.Minute)); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := mgr.Consume(context.Background(), testEmail, now.Add(2*time.Minute)); !errors.Is(err, ErrNoPendingReset) {
		t.Fatalf("expected ErrNoPendingReset after consume, got %v", err)
	}
}

func TestConsumeRejectsStaleVerification(t *testing.T) {
	store := newMemOTPStore()
	mgr := New(store, 10*time.Minute, 15*time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	code, err := mgr.Issue(context.Background(), testEmail, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := mgr.Verify(context.Background(), testEmail, code, now); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := mgr.Consume(context.Background(), testEmail, now.Add(16*time.Minute)); !errors.Is(err, ErrNoPendingReset) {
		t.Fatalf("expected ErrNoPendingReset after verify window, got %v", err)
	}
}

package kafka

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topics carrying storefront account-lifecycle events.
const (
	TopicAuthEvents    = "storefront.auth.events"
	TopicAuthEventsDLQ = "storefront.auth.events.dlq"
)

// Event types published by the auth service.
const (
	EventUserSignedUp      = "user.signed_up"
	EventUserPasswordReset = "user.password_reset"
	EventAuthTokenReuse    = "auth.token_reuse"
)

// EnvelopeCurrentVersion is bumped when an event schema changes shape.
const EnvelopeCurrentVersion = 1

type Envelope struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	EventVersion  int       `json:"event_version"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

func NewEnvelope(eventType string, correlationID string) (Envelope, error) {
	if eventType == "" {
		return Envelope{}, fmt.Errorf("event_type is required")
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  EnvelopeCurrentVersion,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
	}, nil
}

func (e Envelope) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if e.EventVersion <= 0 {
		return fmt.Errorf("event_version must be positive")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

// UserSignedUpEvent announces a new account, social or password-based.
type UserSignedUpEvent struct {
	Envelope
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Provider string `json:"provider,omitempty"`
}

// UserPasswordResetEvent announces a completed password reset. All refresh
// tokens for the user have already been revoked when this is published.
type UserPasswordResetEvent struct {
	Envelope
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// TokenReuseEvent announces a replayed refresh token; the whole token family
// was revoked. Downstream can alert the account owner.
type TokenReuseEvent struct {
	Envelope
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

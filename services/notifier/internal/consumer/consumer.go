// Package consumer turns auth events into outbound email. It is the only
// subscriber of the auth events topic today.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aminammar1/storefront/libs/kafka"
	"github.com/aminammar1/storefront/libs/notify"
	"github.com/IBM/sarama"
	"log/slog"
)

type Metrics interface {
	MailSent(eventType string)
	MailFailed(eventType string)
}

type AuthEventConsumer struct {
	sender  notify.Sender
	metrics Metrics
	logger  *slog.Logger
}

func New(sender notify.Sender, metrics Metrics, logger *slog.Logger) *AuthEventConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthEventConsumer{sender: sender, metrics: metrics, logger: logger}
}

// HandleMessage dispatches on the envelope event type. Undecodable or invalid
// messages are poisoned and go to the DLQ; send failures are transient and
// leave the message uncommitted for redelivery.
func (c *AuthEventConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if msg == nil || len(msg.Value) == 0 {
		return kafka.DLQ(fmt.Errorf("empty kafka message"), "empty_message")
	}

	var env kafka.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return kafka.DLQ(fmt.Errorf("decode envelope: %w", err), "decode_failed")
	}
	if err := env.Validate(); err != nil {
		return kafka.DLQ(err, "invalid_envelope")
	}

	switch env.EventType {
	case kafka.EventUserSignedUp:
		return c.handleSignedUp(ctx, msg.Value)
	case kafka.EventUserPasswordReset:
		return c.handlePasswordReset(ctx, msg.Value)
	case kafka.EventAuthTokenReuse:
		return c.handleTokenReuse(ctx, msg.Value)
	default:
		// Forward-compatible: newer producers may emit types we don't know.
		c.logger.Info("skipping unhandled event type", "event_type", env.EventType)
		return nil
	}
}

func (c *AuthEventConsumer) handleSignedUp(ctx context.Context, raw []byte) error {
	var event kafka.UserSignedUpEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return kafka.DLQ(fmt.Errorf("decode %s: %w", kafka.EventUserSignedUp, err), "decode_failed")
	}
	if event.Email == "" {
		return kafka.DLQ(fmt.Errorf("%s without email", kafka.EventUserSignedUp), "missing_email")
	}
	return c.send(ctx, event.EventType, notify.WelcomeMessage(event.Email, event.Name))
}

func (c *AuthEventConsumer) handlePasswordReset(ctx context.Context, raw []byte) error {
	var event kafka.UserPasswordResetEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return kafka.DLQ(fmt.Errorf("decode %s: %w", kafka.EventUserPasswordReset, err), "decode_failed")
	}
	if event.Email == "" {
		return kafka.DLQ(fmt.Errorf("%s without email", kafka.EventUserPasswordReset), "missing_email")
	}
	return c.send(ctx, event.EventType, notify.PasswordChangedMessage(event.Email))
}

func (c *AuthEventConsumer) handleTokenReuse(ctx context.Context, raw []byte) error {
	var event kafka.TokenReuseEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return kafka.DLQ(fmt.Errorf("decode %s: %w", kafka.EventAuthTokenReuse, err), "decode_failed")
	}
	// The event may carry no email; nothing to deliver then.
	if event.Email == "" {
		c.logger.Warn("token reuse event without email", "user_id", event.UserID)
		return nil
	}
	return c.send(ctx, event.EventType, notify.SessionsRevokedMessage(event.Email))
}

func (c *AuthEventConsumer) send(ctx context.Context, eventType string, msg notify.Message) error {
	if err := c.sender.Send(ctx, msg); err != nil {
		if c.metrics != nil {
			c.metrics.MailFailed(eventType)
		}
		return fmt.Errorf("send %s mail: %w", eventType, err)
	}
	if c.metrics != nil {
		c.metrics.MailSent(eventType)
	}
	c.logger.Info("mail sent", "event_type", eventType, "to", msg.To)
	return nil
}

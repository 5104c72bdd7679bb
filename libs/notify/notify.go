// Package notify delivers account emails. Delivery is best-effort: callers
// persist their own state first and only log a failed send.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func (c SMTPConfig) Validate() error {
	if c.Host == "" || c.Port == "" || c.From == "" {
		return fmt.Errorf("smtp host, port and from are required")
	}
	return nil
}

type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SMTPSender{cfg: cfg}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	addr := s.cfg.Host + ":" + s.cfg.Port
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// OTPMessage renders the password-reset code email.
func OTPMessage(to, code string, ttlMinutes int) Message {
	return Message{
		To:      to,
		Subject: "Your password reset code",
		Body:    fmt.Sprintf("Your one-time code is %s. It expires in %d minutes.\r\nIf you did not request a password reset, you can ignore this email.", code, ttlMinutes),
	}
}

// WelcomeMessage greets a newly registered user. Sent by the notifier
// service off the signup event.
func WelcomeMessage(to, name string) Message {
	return Message{
		To:      to,
		Subject: "Welcome to the store",
		Body:    fmt.Sprintf("Hi %s,\r\n\r\nYour account is ready. Happy shopping!", name),
	}
}

// PasswordChangedMessage notifies that a reset completed and sessions were
// signed out everywhere.
func PasswordChangedMessage(to string) Message {
	return Message{
		To:      to,
		Subject: "Your password was changed",
		Body:    "Your password was just changed and all active sessions were signed out.\r\nIf this was not you, reset your password immediately.",
	}
}

// SessionsRevokedMessage warns the account owner after a refresh token was
// replayed and every session was revoked.
func SessionsRevokedMessage(to string) Message {
	return Message{
		To:      to,
		Subject: "Suspicious activity on your account",
		Body:    "A sign-in token for your account was used twice, so we signed out all sessions as a precaution.\r\nPlease log in again and consider changing your password.",
	}
}

// Package mailer delivers outbound email over SMTP.
package mailer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Message is one outbound email
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer sends email. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds the relay settings
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPMailer sends through an SMTP relay with gomail
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.SugaredLogger
}

// NewSMTPMailer creates a mailer for the given relay
func NewSMTPMailer(cfg SMTPConfig, logger *zap.SugaredLogger) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTML)

	if err := m.dialer.DialAndSend(gm); err != nil {
		m.logger.Errorw("Failed to send email", "to", msg.To, "subject", msg.Subject, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	m.logger.Infow("Email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// LogMailer records messages instead of sending them. Used in development
// and tests when no relay is configured.
type LogMailer struct {
	logger *zap.SugaredLogger

	mu   sync.Mutex
	sent []Message
	fail error
}

func NewLogMailer(logger *zap.SugaredLogger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, msg)
	m.logger.Infow("Email not sent (no SMTP relay configured)", "to", msg.To, "subject", msg.Subject)
	return nil
}

// FailWith makes every later Send return err; nil restores delivery
func (m *LogMailer) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Sent returns a copy of every message accepted so far
func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

package email

import (
	"context"
	"errors"
	"strings"

	"github.com/jwalitptl/booking-api/pkg/logger"
)

var ErrInvalidMessage = errors.New("email message requires recipient and subject")

// Message is a plain-text email.
type Message struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" || strings.TrimSpace(m.Subject) == "" {
		return ErrInvalidMessage
	}
	return nil
}

// Mailer delivers a message synchronously.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer only logs messages. Used when no SMTP account is configured.
type LogMailer struct {
	logger *logger.Logger
}

func NewLogMailer(l *logger.Logger) *LogMailer {
	return &LogMailer{logger: l.With("mailer")}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	m.logger.Info("email not sent, smtp disabled", "to", msg.To, "subject", msg.Subject)
	return nil
}

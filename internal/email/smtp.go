package email

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/booking-api/pkg/logger"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends through an SMTP relay behind a circuit breaker.
type SMTPMailer struct {
	sender sender
	from   string
	cb     *gobreaker.CircuitBreaker
	logger *logger.Logger
}

func NewSMTPMailer(cfg SMTPConfig, l *logger.Logger) *SMTPMailer {
	return newSMTPMailer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, l)
}

func newSMTPMailer(s sender, from string, l *logger.Logger) *SMTPMailer {
	log := l.With("mailer")
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &SMTPMailer{sender: s, from: from, cb: cb, logger: log}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := msg.From
	if from == "" {
		from = m.from
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Body)

	_, err := m.cb.Execute(func() (interface{}, error) {
		return nil, m.sender.DialAndSend(gm)
	})
	if err != nil {
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}

	m.logger.Info("email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

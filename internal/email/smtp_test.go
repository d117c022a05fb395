package email

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/booking-api/pkg/logger"
)

type fakeSender struct {
	sent []*gomail.Message
	err  error
	hits int
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	f.hits++
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	s := &fakeSender{}
	m := newSMTPMailer(s, "noreply@example.com", logger.Nop())

	err := m.Send(context.Background(), Message{To: "cara@example.com", Subject: "Booking is Completed", Body: "Dear Cara"})
	require.NoError(t, err)
	require.Len(t, s.sent, 1)

	assert.Equal(t, []string{"noreply@example.com"}, s.sent[0].GetHeader("From"))
	assert.Equal(t, []string{"cara@example.com"}, s.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Booking is Completed"}, s.sent[0].GetHeader("Subject"))
}

func TestSMTPMailerKeepsExplicitSender(t *testing.T) {
	s := &fakeSender{}
	m := newSMTPMailer(s, "noreply@example.com", logger.Nop())

	require.NoError(t, m.Send(context.Background(), Message{From: "owner@example.com", To: "c@example.com", Subject: "x"}))
	assert.Equal(t, []string{"owner@example.com"}, s.sent[0].GetHeader("From"))
}

func TestSMTPMailerOpensBreaker(t *testing.T) {
	s := &fakeSender{err: errors.New("connection refused")}
	m := newSMTPMailer(s, "noreply@example.com", logger.Nop())
	msg := Message{To: "c@example.com", Subject: "x"}

	for i := 0; i < 3; i++ {
		assert.Error(t, m.Send(context.Background(), msg))
	}

	err := m.Send(context.Background(), msg)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, s.hits)
}

func TestMessageValidate(t *testing.T) {
	assert.ErrorIs(t, Message{Subject: "x"}.Validate(), ErrInvalidMessage)
	assert.ErrorIs(t, NewLogMailer(logger.Nop()).Send(context.Background(), Message{To: "a@b.co"}), ErrInvalidMessage)
}

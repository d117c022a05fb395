package postgres

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

func TestOutboxRepository_CreateRejectsEmptyPayload(t *testing.T) {
	base, _ := newMockBase(t)
	repo := NewOutboxRepository(base)

	assert.Error(t, repo.Create(context.Background(), nil))
	assert.Error(t, repo.Create(context.Background(), &model.OutboxEvent{EventType: "x"}))
}

func TestOutboxRepository_CreatePending(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewOutboxRepository(base)

	evt := &model.OutboxEvent{EventType: "notification.email", Payload: json.RawMessage(`{"to":"a@b.co"}`)}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox_events")).
		WithArgs(sqlmock.AnyArg(), "notification.email", []byte(`{"to":"a@b.co"}`), model.OutboxStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), evt))
	assert.Equal(t, model.OutboxStatusPending, evt.Status)
	assert.NotEqual(t, uuid.Nil, evt.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_ClaimPending(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewOutboxRepository(base)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "event_type", "payload", "status", "error_message", "retry_count", "retry_at", "processed_at", "created_at", "updated_at"}).
		AddRow(uuid.NewString(), "booking.created", []byte(`{}`), "pending", nil, 0, now, nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs(25, int64(30000)).
		WillReturnRows(rows)

	events, err := repo.ClaimPending(context.Background(), 25, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "booking.created", events[0].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_MarkRetryMissingRow(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewOutboxRepository(base)

	id := uuid.New()
	retryAt := time.Now().Add(time.Minute)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox_events")).
		WithArgs(model.OutboxStatusRetry, "smtp down", retryAt, id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRetry(context.Background(), id, "smtp down", retryAt)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_DeleteProcessedBefore(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewOutboxRepository(base)

	cutoff := time.Now().Add(-72 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM outbox_events")).
		WithArgs(model.OutboxStatusProcessed, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteProcessedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
)

func TestTaskRepository_CreateDefaults(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewTaskRepository(base)

	task := &model.DeferredTask{Kind: "booking.complete", BookingID: uuid.New(), FireAt: time.Now().Add(35 * time.Minute)}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deferred_tasks")).
		WithArgs(sqlmock.AnyArg(), "booking.complete", task.BookingID, []byte(`{}`), task.FireAt,
			model.TaskStatusScheduled, 0, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), task))
	assert.Equal(t, model.TaskStatusScheduled, task.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_CancelScheduled(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewTaskRepository(base)

	bookingID := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE deferred_tasks")).
		WithArgs(model.TaskStatusCancelled, bookingID, model.TaskStatusScheduled, "booking.complete").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.CancelScheduled(context.Background(), bookingID, "booking.complete")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_ClaimDue(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewTaskRepository(base)

	now := time.Now()
	id, bookingID := uuid.New(), uuid.New()
	rows := sqlmock.NewRows([]string{"id", "kind", "booking_id", "payload", "fire_at", "status", "attempts", "last_error", "created_at", "updated_at"}).
		AddRow(id.String(), "booking.complete", bookingID.String(), []byte(`{"bookingId":"x"}`), now, "scheduled", 1, nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs(now, now.Add(time.Minute), 10).
		WillReturnRows(rows)

	tasks, err := repo.ClaimDue(context.Background(), now, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, id, tasks[0].ID)
	assert.Equal(t, bookingID, tasks[0].BookingID)
	assert.JSONEq(t, `{"bookingId":"x"}`, string(tasks[0].Payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

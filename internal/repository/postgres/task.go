package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

const taskColumns = `id, kind, booking_id, payload, fire_at, status, attempts, last_error, created_at, updated_at`

type taskRepository struct {
	BaseRepository
}

func NewTaskRepository(base BaseRepository) repository.TaskRepository {
	return &taskRepository{base}
}

func (r *taskRepository) Create(ctx context.Context, task *model.DeferredTask) error {
	query := `
		INSERT INTO deferred_tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	now := time.Now().UTC()
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Status == "" {
		task.Status = model.TaskStatusScheduled
	}
	if task.Payload == nil {
		task.Payload = []byte(`{}`)
	}
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.Kind,
		task.BookingID,
		[]byte(task.Payload),
		task.FireAt,
		task.Status,
		task.Attempts,
		task.LastError,
		task.CreatedAt,
		task.UpdatedAt,
	)
	return translate("create deferred task", err)
}

func (r *taskRepository) CancelScheduled(ctx context.Context, bookingID uuid.UUID, kind string) (int64, error) {
	query := `
		UPDATE deferred_tasks
		SET status = $1, updated_at = NOW()
		WHERE booking_id = $2 AND status = $3 AND ($4 = '' OR kind = $4)
	`

	res, err := r.db.ExecContext(ctx, query, model.TaskStatusCancelled, bookingID, model.TaskStatusScheduled, kind)
	if err != nil {
		return 0, translate("cancel deferred tasks", err)
	}
	return res.RowsAffected()
}

func (r *taskRepository) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*model.DeferredTask, error) {
	query := `
		UPDATE deferred_tasks
		SET locked_until = $2, attempts = attempts + 1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM deferred_tasks
			WHERE status = 'scheduled'
			AND fire_at <= $1
			AND (locked_until IS NULL OR locked_until <= $1)
			ORDER BY fire_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $3
		)
		RETURNING ` + taskColumns

	tasks := []*model.DeferredTask{}
	if err := r.db.SelectContext(ctx, &tasks, query, now, now.Add(lease), limit); err != nil {
		return nil, translate("claim deferred tasks", err)
	}
	return tasks, nil
}

// MarkFired is a no-op for tasks cancelled while they were running.
func (r *taskRepository) MarkFired(ctx context.Context, id uuid.UUID, lastErr *string) error {
	query := `
		UPDATE deferred_tasks
		SET status = $1, last_error = $2, locked_until = NULL, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	_, err := r.db.ExecContext(ctx, query, model.TaskStatusFired, lastErr, id, model.TaskStatusScheduled)
	return translate("mark deferred task fired", err)
}

func (r *taskRepository) Reschedule(ctx context.Context, id uuid.UUID, fireAt time.Time, lastErr string) error {
	query := `
		UPDATE deferred_tasks
		SET fire_at = $1, last_error = $2, locked_until = NULL, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	_, err := r.db.ExecContext(ctx, query, fireAt, lastErr, id, model.TaskStatusScheduled)
	return translate("reschedule deferred task", err)
}

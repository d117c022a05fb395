package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusScheduled TaskStatus = "scheduled"
	TaskStatusFired     TaskStatus = "fired"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// DeferredTask is a unit of work persisted to run at FireAt.
type DeferredTask struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	Kind      string          `db:"kind" json:"kind"`
	BookingID uuid.UUID       `db:"booking_id" json:"bookingId"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	FireAt    time.Time       `db:"fire_at" json:"fireAt"`
	Status    TaskStatus      `db:"status" json:"status"`
	Attempts  int             `db:"attempts" json:"attempts"`
	LastError *string         `db:"last_error" json:"lastError,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

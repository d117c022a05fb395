package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusRetry     OutboxStatus = "retry"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"eventType"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processedAt,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
	RetryCount   int             `db:"retry_count" json:"retryCount"`
	RetryAt      *time.Time      `db:"retry_at" json:"retryAt,omitempty"`
}

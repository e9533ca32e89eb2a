package models

import "time"

// DestinationTask is the unit of delivery work: one request fanned out to one
// destination. Exactly one row exists per (request_id, platform, account_id).
type DestinationTask struct {
	RequestID    string    `db:"request_id" json:"request_id"`
	Platform     Platform  `db:"platform" json:"platform"`
	AccountID    string    `db:"account_id" json:"account_id"`
	Status       string    `db:"status" json:"status"`
	AttemptCount int       `db:"attempt_count" json:"attempt_count"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	PostRef      string    `db:"post_ref" json:"post_ref,omitempty"`
	Permalink    string    `db:"permalink" json:"permalink,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

const (
	TaskStatusQueued     = "queued"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

func (t *DestinationTask) Terminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

func (t *DestinationTask) Destination() DestinationRef {
	return DestinationRef{Platform: t.Platform, AccountID: t.AccountID}
}

const (
	LogLevelInfo    = "INFO"
	LogLevelWarning = "WARNING"
	LogLevelError   = "ERROR"
)

// TaskLog is one entry in a task's append-only audit trail.
type TaskLog struct {
	ID        int64          `db:"id" json:"id"`
	RequestID string         `db:"request_id" json:"request_id"`
	Platform  Platform       `db:"platform" json:"platform"`
	AccountID string         `db:"account_id" json:"account_id"`
	Level     string         `db:"level" json:"level"`
	Message   string         `db:"message" json:"message"`
	Fields    map[string]any `db:"fields" json:"fields,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

package models

import "time"

type ScheduledPost struct {
	ID            string           `db:"id" json:"id"`
	OwnerID       int64            `db:"owner_id" json:"owner_id"`
	MediaKey      string           `db:"media_key" json:"media_key"`
	Caption       string           `db:"caption" json:"caption"`
	Destinations  []DestinationRef `db:"destinations" json:"destinations"`
	ScheduledTime time.Time        `db:"scheduled_time" json:"scheduled_time"`
	// Timezone is kept for display only; scheduling math uses the absolute
	// instant in ScheduledTime.
	Timezone     string    `db:"timezone" json:"timezone"`
	Status       string    `db:"status" json:"status"`
	RequestID    string    `db:"request_id" json:"request_id,omitempty"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

const (
	ScheduleStatusScheduled  = "scheduled"
	ScheduleStatusProcessing = "processing"
	ScheduleStatusPosted     = "posted"
	ScheduleStatusCancelled  = "cancelled"
	ScheduleStatusFailed     = "failed"
)

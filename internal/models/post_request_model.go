package models

import "time"

type Platform string

const (
	PlatformTiktok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformYoutube   Platform = "youtube"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformTiktok, PlatformInstagram, PlatformYoutube:
		return true
	}
	return false
}

// DestinationRef identifies one account on one platform.
type DestinationRef struct {
	Platform  Platform `db:"platform" json:"platform"`
	AccountID string   `db:"account_id" json:"account_id"`
}

type PostRequest struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   int64     `db:"owner_id" json:"owner_id"`
	MediaKey  string    `db:"media_key" json:"media_key"`
	MediaURL  string    `db:"media_url" json:"media_url"`
	Caption   string    `db:"caption" json:"caption"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Overall request status values. Derived from the destination tasks,
// never stored on the request row.
const (
	RequestStatusQueued     = "queued"
	RequestStatusProcessing = "processing"
	RequestStatusCompleted  = "completed"
	RequestStatusFailed     = "failed"
)

// AggregateStatus computes the overall status of a request from its task
// statuses. All completed -> completed, all failed -> failed, all queued ->
// queued. A mix of terminal outcomes counts as completed (partial failure is
// surfaced per destination, not on the request); anything still in flight is
// processing.
func AggregateStatus(statuses []string) string {
	if len(statuses) == 0 {
		return RequestStatusQueued
	}

	var queued, processing, completed, failed int
	for _, s := range statuses {
		switch s {
		case TaskStatusQueued:
			queued++
		case TaskStatusProcessing:
			processing++
		case TaskStatusCompleted:
			completed++
		case TaskStatusFailed:
			failed++
		}
	}

	total := len(statuses)
	switch {
	case completed == total:
		return RequestStatusCompleted
	case failed == total:
		return RequestStatusFailed
	case queued == total:
		return RequestStatusQueued
	case processing > 0 || queued > 0:
		return RequestStatusProcessing
	default:
		// all terminal, mixed outcomes
		return RequestStatusCompleted
	}
}

package transfer

import (
	"time"

	"github.com/stick95/fanpost/internal/models"
)

type PostCreation struct {
	MediaKey     string                  `json:"media_key"`
	Caption      string                  `json:"caption"`
	Destinations []models.DestinationRef `json:"destinations"`
}

type ScheduleCreation struct {
	MediaKey      string                  `json:"media_key"`
	Caption       string                  `json:"caption"`
	Destinations  []models.DestinationRef `json:"destinations"`
	ScheduledTime string                  `json:"scheduled_time"`
	Timezone      string                  `json:"timezone"`
}

type DestinationStatus struct {
	Platform     models.Platform `json:"platform"`
	AccountID    string          `json:"account_id"`
	Status       string          `json:"status"`
	AttemptCount int             `json:"attempt_count"`
	Error        string          `json:"error,omitempty"`
	PostRef      string          `json:"post_ref,omitempty"`
	Permalink    string          `json:"permalink,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// PostStatus is the read projection of a request: its stored fields plus the
// overall status derived from the destination tasks.
type PostStatus struct {
	RequestID     string              `json:"request_id"`
	Caption       string              `json:"caption"`
	MediaURL      string              `json:"media_url"`
	OverallStatus string              `json:"overall_status"`
	Destinations  []DestinationStatus `json:"destinations"`
	CreatedAt     time.Time           `json:"created_at"`
}

type AccountInfo struct {
	Platform       models.Platform `json:"platform"`
	AccountID      string          `json:"account_id"`
	AccountName    string          `json:"account_name"`
	Username       string          `json:"username"`
	ProfilePicture string          `json:"profile_picture"`
	Status         string          `json:"status"`
}

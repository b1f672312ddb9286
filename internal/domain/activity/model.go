package activity

import "time"

// ActivityType represents the type of lifecycle event
type ActivityType string

const (
	TypeFastStarted       ActivityType = "fast_started"
	TypeFastEnded         ActivityType = "fast_ended"
	TypeFastAutoCompleted ActivityType = "fast_auto_completed"
	TypeFastSuperseded    ActivityType = "fast_superseded"
	TypeFastDeleted       ActivityType = "fast_deleted"
	TypeFastsCleared      ActivityType = "fasts_cleared"
)

// ActivityEntry represents an event in the activity log
type ActivityEntry struct {
	ID           int64        `json:"id"`
	UserID       string       `json:"user_id"`
	FastID       *string      `json:"fast_id,omitempty"`
	ActivityType ActivityType `json:"type"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time    `json:"created_at"`
}

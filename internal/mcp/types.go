package mcp

import (
	"github.com/rpggio/fastwatch/internal/domain/activity"
	"github.com/rpggio/fastwatch/internal/domain/fast"
	"github.com/rpggio/fastwatch/internal/domain/protocol"
	"github.com/rpggio/fastwatch/internal/domain/stats"
)

type StartFastParams struct {
	Protocol string `json:"protocol,omitempty" jsonschema:"Protocol id from list_protocols; omit for an open-ended fast"`
	Notes    string `json:"notes,omitempty" jsonschema:"Free-form note stored with the fast"`
}

type EndFastParams struct {
	ID          string `json:"id" jsonschema:"Id of the fast to end"`
	Mood        *int   `json:"mood,omitempty" jsonschema:"Optional mood rating"`
	EnergyLevel *int   `json:"energy_level,omitempty" jsonschema:"Optional energy rating"`
}

type DeleteFastParams struct {
	ID string `json:"id" jsonschema:"Id of the fast to delete"`
}

type ClearFastsParams struct {
	Confirm bool `json:"confirm" jsonschema:"Must be true; deletes every fast of the user"`
}

type GetFastsParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of fasts to return, newest first"`
}

type GetLeaderboardParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"Number of users to rank (default 10)"`
}

type GetRecentActivityParams struct {
	FastID string `json:"fast_id,omitempty" jsonschema:"Only entries for this fast"`
	Type   string `json:"type,omitempty" jsonschema:"Only entries of this type"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

type FastResponse struct {
	Fast fast.Session `json:"fast"`
}

type DeleteFastResponse struct {
	Deleted string `json:"deleted"`
}

type ClearFastsResponse struct {
	Cleared bool `json:"cleared"`
}

type StateResponse struct {
	UserID         string         `json:"user_id"`
	Active         *fast.Session  `json:"active,omitempty"`
	ElapsedMinutes int            `json:"elapsed_minutes,omitempty"`
	TargetMinutes  int            `json:"target_minutes,omitempty"`
	Sessions       []fast.Session `json:"sessions"`
	Total          int            `json:"total"`
}

type StatsResponse struct {
	Summary stats.Summary `json:"summary"`
}

type LeaderboardResponse struct {
	Entries []stats.LeaderboardEntry `json:"entries"`
}

type ProtocolsResponse struct {
	Protocols []protocol.Protocol `json:"protocols"`
}

type ActivityResponse struct {
	Entries []activity.ActivityEntry `json:"entries"`
}

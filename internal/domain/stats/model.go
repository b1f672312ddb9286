package stats

// Summary aggregates a user's fasting history.
type Summary struct {
	UserID         string         `json:"user_id"`
	TotalFasts     int            `json:"total_fasts"`
	CompletedFasts int            `json:"completed_fasts"`
	TotalMinutes   int            `json:"total_minutes"`
	AverageMinutes int            `json:"average_minutes"`
	LongestMinutes int            `json:"longest_minutes"`
	GoalsMet       int            `json:"goals_met"`
	CurrentStreak  int            `json:"current_streak_days"`
	LongestStreak  int            `json:"longest_streak_days"`
	ByProtocol     map[string]int `json:"by_protocol"`
	ActiveFastID   string         `json:"active_fast_id,omitempty"`
	ActiveElapsed  int            `json:"active_elapsed_minutes,omitempty"`
}

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"user_id"`
	CompletedFasts int    `json:"completed_fasts"`
	TotalMinutes   int    `json:"total_minutes"`
}

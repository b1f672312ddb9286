package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rpggio/fastwatch/internal/domain/stats"
)

// Matches the start-time filter applied during reconciliation.
var leaderboardSince = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// LeaderboardRepository implements stats.LeaderboardRepository for SQLite
type LeaderboardRepository struct {
	db *DB
}

// NewLeaderboardRepository creates a new LeaderboardRepository
func NewLeaderboardRepository(db *DB) *LeaderboardRepository {
	return &LeaderboardRepository{db: db}
}

// Leaderboard ranks users by total minutes of completed fasts.
func (r *LeaderboardRepository) Leaderboard(ctx context.Context, limit int) ([]stats.LeaderboardEntry, error) {
	query := `
		SELECT user_id, COUNT(*) AS completed, COALESCE(SUM(duration), 0) AS total
		FROM fasts
		WHERE status = 'completed' AND start_time >= ?
		GROUP BY user_id
		ORDER BY total DESC, completed DESC, user_id ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, leaderboardSince, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []stats.LeaderboardEntry{}
	for rows.Next() {
		var entry stats.LeaderboardEntry
		if err := rows.Scan(&entry.UserID, &entry.CompletedFasts, &entry.TotalMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard rows: %w", err)
	}

	return entries, nil
}

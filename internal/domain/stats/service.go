package stats

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rpggio/fastwatch/internal/domain/fast"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

// ErrInvalidInput indicates invalid stats input.
var ErrInvalidInput = errors.New("invalid stats input")

// FastReader loads a user's fasts.
type FastReader interface {
	Query(ctx context.Context, userID string) ([]fast.Session, error)
}

// LeaderboardRepository ranks users by completed fasting time.
type LeaderboardRepository interface {
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// Service computes history statistics and the leaderboard.
type Service struct {
	fasts   FastReader
	board   LeaderboardRepository
	catalog fast.Catalog
	clock   fast.Clock
	loc     *time.Location
	logger  *slog.Logger
}

// NewService creates a new stats service. Streak days are counted in loc.
func NewService(fasts FastReader, board LeaderboardRepository, catalog fast.Catalog, clock fast.Clock, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		fasts:   fasts,
		board:   board,
		catalog: catalog,
		clock:   clock,
		loc:     loc,
		logger:  logger,
	}
}

// Summary computes statistics over the user's reconciled fasts. It reads the
// store directly and never writes corrections back.
func (s *Service) Summary(ctx context.Context, userID string) (*Summary, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	records, err := s.fasts.Query(ctx, userID)
	if err != nil {
		s.logger.Debug("stats query failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: loading fasts: %w", fast.ErrStore, err)
	}

	now := s.clock.Now()
	result := fast.Reconcile(userID, records, now, s.catalog)
	sum := Summarize(result.State, s.catalog, now, s.loc)
	s.logger.Debug("computed stats", "user_id", userID, "fasts", sum.TotalFasts)
	return &sum, nil
}

// Leaderboard returns the top users by total completed minutes.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}
	entries, err := s.board.Leaderboard(ctx, limit)
	if err != nil {
		s.logger.Debug("leaderboard query failed", "limit", limit, "error", err)
		return nil, fmt.Errorf("%w: loading leaderboard: %w", fast.ErrStore, err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

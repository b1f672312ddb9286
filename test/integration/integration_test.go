package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/fastwatch/internal/clock"
	"github.com/rpggio/fastwatch/internal/domain/activity"
	"github.com/rpggio/fastwatch/internal/domain/fast"
	"github.com/rpggio/fastwatch/internal/domain/protocol"
	"github.com/rpggio/fastwatch/internal/domain/stats"
	"github.com/rpggio/fastwatch/internal/sqlite"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 4, 6, 19, 0, 0, 0, time.UTC)

type testEnv struct {
	db          *sqlite.DB
	clock       *clock.Manual
	fastRepo    *sqlite.FastRepository
	fastSvc     *fast.Service
	tracker     *fast.Tracker
	statsSvc    *stats.Service
	activitySvc *activity.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	clk := clock.NewManual(t0)
	protocols := protocol.NewRegistry()
	fastRepo := sqlite.NewFastRepository(db, clk)
	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), nil)
	fastSvc := fast.NewService(fastRepo, protocols, clk, activitySvc, nil)
	tracker := fast.NewTracker(fastSvc, nil)
	statsSvc := stats.NewService(fastRepo, sqlite.NewLeaderboardRepository(db), protocols, clk, time.UTC, nil)

	t.Cleanup(func() {
		_ = tracker.Close()
		fastRepo.Close()
		_ = db.Close()
	})

	return &testEnv{
		db:          db,
		clock:       clk,
		fastRepo:    fastRepo,
		fastSvc:     fastSvc,
		tracker:     tracker,
		statsSvc:    statsSvc,
		activitySvc: activitySvc,
	}
}

func strPtr(s string) *string { return &s }

// waitFor polls the tracked state until cond holds.
func (env *testEnv) waitFor(t *testing.T, userID string, cond func(fast.State) bool) fast.State {
	t.Helper()
	var last fast.State
	require.Eventually(t, func() bool {
		st, ok := env.fastSvc.Current(userID)
		last = st
		return ok && cond(st)
	}, 2*time.Second, 10*time.Millisecond)
	return last
}

func TestIntegration_StartEndStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const userID = "user1"

	_, err := env.tracker.Ensure(ctx, userID)
	require.NoError(t, err)

	started, err := env.fastSvc.Start(ctx, userID, fast.StartRequest{Protocol: strPtr("16:8")})
	require.NoError(t, err)

	env.clock.Advance(17 * time.Hour)
	ended, err := env.fastSvc.End(ctx, userID, fast.EndRequest{ID: started.ID})
	require.NoError(t, err)
	require.Equal(t, 1020, ended.Duration)

	stored, err := env.fastRepo.Get(ctx, userID, started.ID)
	require.NoError(t, err)
	require.Equal(t, fast.StatusCompleted, stored.Status)
	require.Equal(t, 1020, stored.Duration)

	sum, err := env.statsSvc.Summary(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 1, sum.CompletedFasts)
	require.Equal(t, 1, sum.GoalsMet)
	require.Equal(t, 1, sum.CurrentStreak)

	board, err := env.statsSvc.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, board, 1)
	require.Equal(t, 1, board[0].Rank)
	require.Equal(t, 1020, board[0].TotalMinutes)

	entries, err := env.activitySvc.GetRecentActivity(ctx, userID, activity.ListActivityOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestIntegration_ConvergesToOneActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const userID = "user1"

	// Three devices start fasts before the observation exists.
	for i := 0; i < 3; i++ {
		require.NoError(t, env.fastRepo.Create(ctx, &fast.Session{UserID: userID}))
		env.clock.Advance(10 * time.Minute)
	}

	st, err := env.tracker.Ensure(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, st.Active)

	require.Eventually(t, func() bool {
		sessions, err := env.fastRepo.Query(ctx, userID)
		if err != nil || len(sessions) != 3 {
			return false
		}
		active := 0
		for _, s := range sessions {
			if s.Status == fast.StatusActive {
				active++
			}
		}
		return active == 1 && sessions[0].Status == fast.StatusActive
	}, 2*time.Second, 10*time.Millisecond)

	sessions, err := env.fastRepo.Query(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, st.Active.ID, sessions[0].ID)
	require.Equal(t, 20, sessions[1].Duration)
	require.Equal(t, 30, sessions[2].Duration)

	superseded := activity.TypeFastSuperseded
	entries, err := env.activitySvc.GetRecentActivity(ctx, userID, activity.ListActivityOptions{ActivityType: &superseded})
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestIntegration_OverdueOnFirstObservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const userID = "user1"

	sess := &fast.Session{UserID: userID, Protocol: strPtr("omad")}
	require.NoError(t, env.fastRepo.Create(ctx, sess))
	env.clock.Advance(26 * time.Hour)

	st, err := env.tracker.Ensure(ctx, userID)
	require.NoError(t, err)
	require.Nil(t, st.Active)
	require.Equal(t, 23*60, st.Sessions[0].Duration)

	require.Eventually(t, func() bool {
		stored, err := env.fastRepo.Get(ctx, userID, sess.ID)
		return err == nil && stored.Status == fast.StatusCompleted && stored.Duration == 23*60
	}, 2*time.Second, 10*time.Millisecond)

	stored, err := env.fastRepo.Get(ctx, userID, sess.ID)
	require.NoError(t, err)
	require.True(t, t0.Add(23*time.Hour).Equal(*stored.EndTime))
}

func TestIntegration_ClearAllAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const userID = "user1"

	_, err := env.tracker.Ensure(ctx, userID)
	require.NoError(t, err)

	first, err := env.fastSvc.Start(ctx, userID, fast.StartRequest{})
	require.NoError(t, err)
	env.clock.Advance(time.Hour)
	_, err = env.fastSvc.End(ctx, userID, fast.EndRequest{ID: first.ID})
	require.NoError(t, err)
	_, err = env.fastSvc.Start(ctx, userID, fast.StartRequest{Protocol: strPtr(protocol.Custom)})
	require.NoError(t, err)

	// Another user's fasts are untouched.
	require.NoError(t, env.fastRepo.Create(ctx, &fast.Session{UserID: "user2"}))

	require.NoError(t, env.fastSvc.Delete(ctx, userID, first.ID))
	require.NoError(t, env.fastSvc.Delete(ctx, userID, first.ID))
	env.waitFor(t, userID, func(st fast.State) bool { return len(st.Sessions) == 1 })

	require.NoError(t, env.fastSvc.ClearAll(ctx, userID))
	st := env.waitFor(t, userID, func(st fast.State) bool { return len(st.Sessions) == 0 })
	require.Nil(t, st.Active)

	remaining, err := env.fastRepo.Query(ctx, "user2")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestIntegration_ObservationSeesExternalWrites(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	const userID = "user1"

	obs, err := env.fastSvc.Observe(ctx, userID)
	require.NoError(t, err)
	defer obs.Close()

	select {
	case st := <-obs.Updates():
		require.Empty(t, st.Sessions)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial state")
	}

	require.NoError(t, env.fastRepo.Create(ctx, &fast.Session{UserID: userID}))

	select {
	case st := <-obs.Updates():
		require.NotNil(t, st.Active)
	case <-time.After(2 * time.Second):
		t.Fatal("no state after external write")
	}
}

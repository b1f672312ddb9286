package fast_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rpggio/fastwatch/internal/clock"
	"github.com/rpggio/fastwatch/internal/domain/activity"
	"github.com/rpggio/fastwatch/internal/domain/fast"
	"github.com/rpggio/fastwatch/internal/domain/protocol"
	"github.com/rpggio/fastwatch/internal/repository"
	"github.com/rpggio/fastwatch/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store *mocks.FastStore
	sub   *mocks.Subscription
	clock *clock.Manual
	svc   *fast.Service
}

func newHarness(t *testing.T, journal fast.Journal, logger *slog.Logger) *harness {
	t.Helper()
	h := &harness{
		store: &mocks.FastStore{},
		sub:   mocks.NewSubscription(),
		clock: clock.NewManual(t0),
	}
	h.store.On("Subscribe", mock.Anything, "u1").Return(h.sub, nil)
	h.svc = fast.NewService(h.store, protocol.NewRegistry(), h.clock, journal, logger)
	return h
}

func (h *harness) observe(t *testing.T) *fast.Observation {
	t.Helper()
	obs, err := h.svc.Observe(context.Background(), "u1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.Close() })
	return obs
}

func (h *harness) push(t *testing.T, obs *fast.Observation, snapshot ...fast.Session) fast.State {
	t.Helper()
	require.True(t, h.sub.Push(snapshot))
	return nextState(t, obs)
}

func nextState(t *testing.T, obs *fast.Observation) fast.State {
	t.Helper()
	select {
	case st, ok := <-obs.Updates():
		require.True(t, ok, "updates closed")
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reconciled state")
		return fast.State{}
	}
}

func TestService_ObserveEmitsReconciledState(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.clock.Set(t0.Add(2 * time.Hour))
	h.store.On("Update", mock.Anything, "u1", "old", mock.Anything).Return(nil).Once()

	obs := h.observe(t)
	st := h.push(t, obs, active("old", t0, nil), active("new", t0.Add(time.Hour), nil))

	require.Equal(t, "u1", st.UserID)
	require.NotNil(t, st.Active)
	require.Equal(t, "new", st.Active.ID)
	require.Len(t, st.Sessions, 2)
	require.Equal(t, fast.StatusCompleted, st.Sessions[1].Status)
	require.Equal(t, 120, st.Sessions[1].Duration)

	require.NoError(t, obs.Close())
	h.store.AssertExpectations(t)

	patch := h.store.Calls[len(h.store.Calls)-1].Arguments.Get(3).(fast.Patch)
	require.Equal(t, t0.Add(2*time.Hour), *patch.EndTime)
	require.Equal(t, 120, *patch.Duration)
}

func TestService_OverdueWriteBackIsJournaled(t *testing.T) {
	journal := &mocks.ActivityRepository{}
	journal.On("Log", mock.Anything, "u1", mock.MatchedBy(func(e *activity.ActivityEntry) bool {
		return e.ActivityType == activity.TypeFastAutoCompleted && *e.FastID == "a"
	})).Return(nil).Once()

	h := newHarness(t, journal, nil)
	h.clock.Set(t0.Add(18*time.Hour + time.Minute))
	h.store.On("Update", mock.Anything, "u1", "a", mock.Anything).Return(nil).Once()

	obs := h.observe(t)
	st := h.push(t, obs, active("a", t0, strPtr("16:8")))
	require.Nil(t, st.Active)
	require.Equal(t, 960, st.Sessions[0].Duration)

	require.NoError(t, obs.Close())
	h.store.AssertExpectations(t)
	journal.AssertExpectations(t)
}

func TestService_FailedWriteBackRetriedOnNextSnapshot(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := newHarness(t, nil, logger)
	h.clock.Set(t0.Add(time.Hour))

	var attempts atomic.Int32
	count := func(mock.Arguments) { attempts.Add(1) }
	h.store.On("Update", mock.Anything, "u1", "old", mock.Anything).Return(errors.New("unavailable")).Once().Run(count)
	h.store.On("Update", mock.Anything, "u1", "old", mock.Anything).Return(nil).Run(count)

	obs := h.observe(t)
	snapshot := []fast.Session{active("old", t0, nil), active("new", t0.Add(time.Minute), nil)}

	// The failed correction surfaces nowhere but the log.
	st := h.push(t, obs, snapshot...)
	require.Equal(t, "new", st.Active.ID)

	require.Eventually(t, func() bool {
		if attempts.Load() < 2 {
			h.sub.Push(snapshot)
		}
		return attempts.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, obs.Close())
	require.Contains(t, logs.String(), "fast correction failed")
	require.Contains(t, logs.String(), "fast corrected")
}

func TestService_StartCreatesActiveFast(t *testing.T) {
	journal := &mocks.ActivityRepository{}
	journal.On("Log", mock.Anything, "u1", mock.Anything).Return(nil)

	h := newHarness(t, journal, nil)
	h.store.On("Create", mock.Anything, mock.AnythingOfType("*fast.Session")).Run(func(args mock.Arguments) {
		sess := args.Get(1).(*fast.Session)
		sess.ID = "f1"
		sess.StartTime = t0
	}).Return(nil).Once()

	obs := h.observe(t)
	h.push(t, obs)

	sess, err := h.svc.Start(context.Background(), "u1", fast.StartRequest{Protocol: strPtr("16:8"), Notes: strPtr("after dinner")})
	require.NoError(t, err)
	require.Equal(t, "f1", sess.ID)
	require.Equal(t, fast.StatusActive, sess.Status)
	require.Nil(t, sess.EndTime)
	require.Zero(t, sess.Duration)

	current, ok := h.svc.Current("u1")
	require.True(t, ok)
	require.NotNil(t, current.Active)
	require.Equal(t, "f1", current.Active.ID)

	// The local view already blocks a second start.
	_, err = h.svc.Start(context.Background(), "u1", fast.StartRequest{})
	require.ErrorIs(t, err, fast.ErrActiveFastExists)
	h.store.AssertNumberOfCalls(t, "Create", 1)
	journal.AssertCalled(t, "Log", mock.Anything, "u1", mock.MatchedBy(func(e *activity.ActivityEntry) bool {
		return e.ActivityType == activity.TypeFastStarted
	}))
}

func TestService_StartConflictIssuesNoWrite(t *testing.T) {
	h := newHarness(t, nil, nil)
	obs := h.observe(t)
	h.push(t, obs, active("a", t0, nil))

	_, err := h.svc.Start(context.Background(), "u1", fast.StartRequest{})
	require.ErrorIs(t, err, fast.ErrActiveFastExists)
	h.store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_StartEchoedBeforeCreateReturns(t *testing.T) {
	h := newHarness(t, nil, nil)
	obs := h.observe(t)
	h.push(t, obs)

	// The store delivers the new fast to subscribers before Create returns.
	h.store.On("Create", mock.Anything, mock.AnythingOfType("*fast.Session")).Run(func(args mock.Arguments) {
		sess := args.Get(1).(*fast.Session)
		sess.ID = "f1"
		sess.StartTime = t0
		st := h.push(t, obs, *sess)
		require.Equal(t, []string{"f1"}, ids(st.Sessions))
	}).Return(nil).Once()

	_, err := h.svc.Start(context.Background(), "u1", fast.StartRequest{})
	require.NoError(t, err)

	current, ok := h.svc.Current("u1")
	require.True(t, ok)
	require.Equal(t, []string{"f1"}, ids(current.Sessions))
	require.NotNil(t, current.Active)
	require.Equal(t, "f1", current.Active.ID)
}

func TestService_StartKeepsNewerEchoedActive(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.clock.Set(t0.Add(time.Hour))
	h.store.On("Update", mock.Anything, "u1", "f1", mock.Anything).Return(nil).Maybe()
	obs := h.observe(t)
	h.push(t, obs)

	// Another device starts a fast while ours is being created.
	h.store.On("Create", mock.Anything, mock.AnythingOfType("*fast.Session")).Run(func(args mock.Arguments) {
		sess := args.Get(1).(*fast.Session)
		sess.ID = "f1"
		sess.StartTime = t0
		h.push(t, obs, *sess, active("f2", t0.Add(time.Minute), nil))
	}).Return(nil).Once()

	_, err := h.svc.Start(context.Background(), "u1", fast.StartRequest{})
	require.NoError(t, err)

	current, ok := h.svc.Current("u1")
	require.True(t, ok)
	require.Equal(t, []string{"f2", "f1"}, ids(current.Sessions))
	require.Equal(t, "f2", current.Active.ID)
	require.Equal(t, fast.StatusCompleted, current.Sessions[1].Status)
	require.NoError(t, obs.Close())
}

func TestService_StartValidation(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	_, err := h.svc.Start(ctx, "", fast.StartRequest{})
	require.ErrorIs(t, err, fast.ErrInvalidInput)

	_, err = h.svc.Start(ctx, "u1", fast.StartRequest{Protocol: strPtr("5:2")})
	require.ErrorIs(t, err, fast.ErrUnknownProtocol)

	boom := errors.New("offline")
	h.store.On("Create", ctx, mock.Anything).Return(boom).Once()
	_, err = h.svc.Start(ctx, "u1", fast.StartRequest{Protocol: strPtr(protocol.Custom)})
	require.ErrorIs(t, err, fast.ErrStore)
	require.ErrorIs(t, err, boom)
}

func TestService_End(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	obs := h.observe(t)
	h.push(t, obs, active("a", t0, strPtr("16:8")), completed("done", t0.Add(-48*time.Hour), 900))

	_, err := h.svc.End(ctx, "u1", fast.EndRequest{ID: "missing"})
	require.ErrorIs(t, err, fast.ErrFastNotFound)

	_, err = h.svc.End(ctx, "u1", fast.EndRequest{ID: "done"})
	require.ErrorIs(t, err, fast.ErrAlreadyCompleted)

	h.clock.Set(t0.Add(5*time.Hour + 30*time.Second))
	end := t0.Add(5*time.Hour + 30*time.Second)
	dur := 300
	status := fast.StatusCompleted
	mood := 11
	want := fast.Patch{EndTime: &end, Duration: &dur, Status: &status, Mood: &mood}
	h.store.On("Update", ctx, "u1", "a", want).Return(nil).Once()

	ended, err := h.svc.End(ctx, "u1", fast.EndRequest{ID: "a", Mood: &mood})
	require.NoError(t, err)
	require.Equal(t, fast.StatusCompleted, ended.Status)
	require.Equal(t, 300, ended.Duration)
	require.Equal(t, 11, *ended.Mood)
	require.Nil(t, ended.EnergyLevel)

	current, _ := h.svc.Current("u1")
	require.Nil(t, current.Active)
	h.store.AssertExpectations(t)
}

func TestService_EndStoreErrors(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	// "a" is superseded in the first pass; let the write-back fail quietly.
	h.store.On("Update", mock.Anything, "u1", "a", mock.Anything).Return(errors.New("offline")).Maybe()
	obs := h.observe(t)
	h.push(t, obs, active("a", t0, nil), active("b", t0.Add(time.Hour), nil))

	h.store.On("Update", ctx, "u1", "b", mock.Anything).Return(repository.ErrNotFound).Once()
	_, err := h.svc.End(ctx, "u1", fast.EndRequest{ID: "b"})
	require.ErrorIs(t, err, fast.ErrFastNotFound)

	h.store.On("Update", ctx, "u1", "b", mock.Anything).Return(errors.New("offline")).Once()
	_, err = h.svc.End(ctx, "u1", fast.EndRequest{ID: "b"})
	require.ErrorIs(t, err, fast.ErrStore)
}

func TestService_EndWithoutObservation(t *testing.T) {
	h := newHarness(t, nil, nil)
	_, err := h.svc.End(context.Background(), "u1", fast.EndRequest{ID: "a"})
	require.ErrorIs(t, err, fast.ErrFastNotFound)
}

func TestService_DeleteCompletedFast(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	obs := h.observe(t)
	h.push(t, obs, completed("done", t0, 600), active("a", t0.Add(24*time.Hour), nil))

	h.store.On("Delete", ctx, "u1", "done").Return(nil).Once()
	require.NoError(t, h.svc.Delete(ctx, "u1", "done"))

	current, _ := h.svc.Current("u1")
	require.Equal(t, []string{"a"}, ids(current.Sessions))
	require.NotNil(t, current.Active)

	// The store echoes the delete.
	st := h.push(t, obs, active("a", t0.Add(24*time.Hour), nil))
	require.Equal(t, []string{"a"}, ids(st.Sessions))

	h.store.On("Delete", ctx, "u1", "a").Return(errors.New("offline")).Once()
	require.ErrorIs(t, h.svc.Delete(ctx, "u1", "a"), fast.ErrStore)
	h.store.AssertExpectations(t)
}

func TestService_ClearAll(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	obs := h.observe(t)
	h.push(t, obs, completed("x", t0, 60), active("y", t0.Add(time.Hour), nil))

	raw := []fast.Session{completed("x", t0, 60), active("y", t0.Add(time.Hour), nil), active("junk", time.Time{}, nil)}
	h.store.On("Query", ctx, "u1").Return(raw, nil).Once()
	h.store.On("BatchDelete", ctx, "u1", []string{"x", "y", "junk"}).Return(nil).Once()

	require.NoError(t, h.svc.ClearAll(ctx, "u1"))
	current, ok := h.svc.Current("u1")
	require.True(t, ok)
	require.Empty(t, current.Sessions)
	require.Nil(t, current.Active)
	h.store.AssertExpectations(t)
}

func TestService_ClearAllKeepsConcurrentlyStartedFast(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	obs := h.observe(t)
	h.push(t, obs, completed("x", t0, 60))

	h.store.On("Query", ctx, "u1").Return([]fast.Session{completed("x", t0, 60)}, nil).Once()
	// "z" was started elsewhere after the query; the post-delete snapshot carries it.
	h.store.On("BatchDelete", ctx, "u1", []string{"x"}).Run(func(mock.Arguments) {
		h.push(t, obs, active("z", t0.Add(2*time.Hour), nil))
	}).Return(nil).Once()

	require.NoError(t, h.svc.ClearAll(ctx, "u1"))

	current, ok := h.svc.Current("u1")
	require.True(t, ok)
	require.Equal(t, []string{"z"}, ids(current.Sessions))
	require.NotNil(t, current.Active)
	require.Equal(t, "z", current.Active.ID)

	_, err := h.svc.Start(ctx, "u1", fast.StartRequest{})
	require.ErrorIs(t, err, fast.ErrActiveFastExists)
	h.store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_ClearAllEmptySkipsBatch(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	h.store.On("Query", ctx, "u1").Return([]fast.Session{}, nil).Once()

	require.NoError(t, h.svc.ClearAll(ctx, "u1"))
	h.store.AssertNotCalled(t, "BatchDelete", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_ClearAllStoreError(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	h.store.On("Query", ctx, "u1").Return([]fast.Session{completed("x", t0, 60)}, nil).Once()
	h.store.On("BatchDelete", ctx, "u1", []string{"x"}).Return(errors.New("aborted")).Once()

	require.ErrorIs(t, h.svc.ClearAll(ctx, "u1"), fast.ErrStore)
}

func TestService_CloseDetaches(t *testing.T) {
	h := newHarness(t, nil, nil)
	obs, err := h.svc.Observe(context.Background(), "u1")
	require.NoError(t, err)
	h.push(t, obs, active("a", t0, nil))

	_, ok := h.svc.Current("u1")
	require.True(t, ok)

	require.NoError(t, obs.Close())
	require.NoError(t, obs.Close())
	require.True(t, h.sub.Closed())

	_, open := <-obs.Updates()
	require.False(t, open)
	_, ok = h.svc.Current("u1")
	require.False(t, ok)
	require.False(t, h.sub.Push(nil))
}

func TestService_ObserveStopsWithContext(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	obs, err := h.svc.Observe(ctx, "u1")
	require.NoError(t, err)

	cancel()
	select {
	case <-obs.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("observation did not stop")
	}
	require.True(t, h.sub.Closed())
	require.NoError(t, obs.Close())
}

func TestService_ObserveSubscribeError(t *testing.T) {
	store := &mocks.FastStore{}
	boom := errors.New("no route")
	store.On("Subscribe", mock.Anything, "u1").Return(nil, boom)
	svc := fast.NewService(store, protocol.NewRegistry(), clock.NewManual(t0), nil, nil)

	_, err := svc.Observe(context.Background(), "u1")
	require.ErrorIs(t, err, fast.ErrStore)
	require.ErrorIs(t, err, boom)

	_, err = svc.Observe(context.Background(), "")
	require.ErrorIs(t, err, fast.ErrInvalidInput)
}

func TestService_SlowReaderGetsLatestState(t *testing.T) {
	h := newHarness(t, nil, nil)
	obs := h.observe(t)

	require.True(t, h.sub.Push([]fast.Session{completed("a", t0, 10)}))
	require.True(t, h.sub.Push([]fast.Session{completed("a", t0, 10), completed("b", t0.Add(time.Hour), 20)}))
	// The loop may still be delivering the second snapshot.
	require.True(t, h.sub.Push([]fast.Session{completed("a", t0, 10), completed("b", t0.Add(time.Hour), 20), completed("c", t0.Add(2*time.Hour), 30)}))

	require.Eventually(t, func() bool {
		select {
		case st := <-obs.Updates():
			return len(st.Sessions) == 3
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

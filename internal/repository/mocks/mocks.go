package mocks

import (
	"context"
	"sync"

	"github.com/rpggio/fastwatch/internal/domain/activity"
	"github.com/rpggio/fastwatch/internal/domain/fast"
	"github.com/rpggio/fastwatch/internal/domain/stats"
	"github.com/stretchr/testify/mock"
)

// FastStore is a mock for fast.Store.
type FastStore struct {
	mock.Mock
}

func (m *FastStore) Subscribe(ctx context.Context, userID string) (fast.Subscription, error) {
	args := m.Called(ctx, userID)
	if sub, ok := args.Get(0).(fast.Subscription); ok {
		return sub, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *FastStore) Create(ctx context.Context, sess *fast.Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *FastStore) Update(ctx context.Context, userID, id string, patch fast.Patch) error {
	args := m.Called(ctx, userID, id, patch)
	return args.Error(0)
}

func (m *FastStore) Delete(ctx context.Context, userID, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *FastStore) BatchDelete(ctx context.Context, userID string, ids []string) error {
	args := m.Called(ctx, userID, ids)
	return args.Error(0)
}

func (m *FastStore) Query(ctx context.Context, userID string) ([]fast.Session, error) {
	args := m.Called(ctx, userID)
	if list, ok := args.Get(0).([]fast.Session); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// Subscription is a hand-driven fast.Subscription.
type Subscription struct {
	ch     chan []fast.Session
	once   sync.Once
	closed chan struct{}
}

// NewSubscription creates a subscription whose snapshots are sent with Push.
func NewSubscription() *Subscription {
	return &Subscription{
		ch:     make(chan []fast.Session),
		closed: make(chan struct{}),
	}
}

// Push hands a snapshot to the reader. It returns false if the subscription
// was closed first.
func (s *Subscription) Push(snapshot []fast.Session) bool {
	select {
	case s.ch <- snapshot:
		return true
	case <-s.closed:
		return false
	}
}

func (s *Subscription) Snapshots() <-chan []fast.Session {
	return s.ch
}

func (s *Subscription) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// Closed reports whether Close was called.
func (s *Subscription) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, userID string, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, userID, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, userID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, userID, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// LeaderboardRepository is a mock for stats.LeaderboardRepository.
type LeaderboardRepository struct {
	mock.Mock
}

func (m *LeaderboardRepository) Leaderboard(ctx context.Context, limit int) ([]stats.LeaderboardEntry, error) {
	args := m.Called(ctx, limit)
	if list, ok := args.Get(0).([]stats.LeaderboardEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

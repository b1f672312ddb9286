package fast

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// ErrTrackerClosed is returned by Ensure after Close.
var ErrTrackerClosed = errors.New("tracker closed")

// Tracker keeps one long-lived observation per user so request handlers can
// rely on an up-to-date reconciled state.
type Tracker struct {
	svc    *Service
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*trackedUser
	closed  bool
}

type trackedUser struct {
	obs   *Observation
	ready chan struct{}
	done  chan struct{}
}

// NewTracker creates a tracker over svc.
func NewTracker(svc *Service, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tracker{
		svc:     svc,
		logger:  logger,
		entries: make(map[string]*trackedUser),
	}
}

// Ensure starts observing userID if needed and waits for the first
// reconciled state.
func (t *Tracker) Ensure(ctx context.Context, userID string) (State, error) {
	entry, err := t.entry(userID)
	if err != nil {
		return State{}, err
	}

	select {
	case <-entry.ready:
	case <-entry.done:
		select {
		case <-entry.ready:
		default:
			// Observation ended before its first state; let the next call retry.
			t.forget(userID, entry)
			return State{}, ErrStore
		}
	case <-ctx.Done():
		return State{}, ctx.Err()
	}

	st, _ := t.svc.Current(userID)
	return st, nil
}

// Observed lists users with a live observation.
func (t *Tracker) Observed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	users := make([]string, 0, len(t.entries))
	for userID := range t.entries {
		users = append(users, userID)
	}
	return users
}

// Close ends every observation.
func (t *Tracker) Close() error {
	t.mu.Lock()
	t.closed = true
	entries := t.entries
	t.entries = make(map[string]*trackedUser)
	t.mu.Unlock()

	var errs []error
	for _, entry := range entries {
		if err := entry.obs.Close(); err != nil {
			errs = append(errs, err)
		}
		<-entry.done
	}
	return errors.Join(errs...)
}

func (t *Tracker) entry(userID string) (*trackedUser, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTrackerClosed
	}
	if entry, ok := t.entries[userID]; ok {
		return entry, nil
	}

	obs, err := t.svc.Observe(context.Background(), userID)
	if err != nil {
		return nil, err
	}
	entry := &trackedUser{
		obs:   obs,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	t.entries[userID] = entry
	go t.drain(entry)
	t.logger.Debug("tracking user", "user_id", userID)
	return entry, nil
}

func (t *Tracker) drain(entry *trackedUser) {
	defer close(entry.done)
	var once sync.Once
	for range entry.obs.Updates() {
		once.Do(func() { close(entry.ready) })
	}
}

func (t *Tracker) forget(userID string, entry *trackedUser) {
	t.mu.Lock()
	if t.entries[userID] == entry {
		delete(t.entries, userID)
	}
	t.mu.Unlock()
	_ = entry.obs.Close()
}

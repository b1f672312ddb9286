package fast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/rpggio/fastwatch/internal/domain/activity"
	"github.com/rpggio/fastwatch/internal/domain/protocol"
	"github.com/rpggio/fastwatch/internal/repository"
	"golang.org/x/sync/errgroup"
)

// maxParallelWrites bounds concurrent write-backs within one pass.
const maxParallelWrites = 4

// Service owns the reconciled view of each observed user's fasts.
type Service struct {
	store   Store
	catalog Catalog
	clock   Clock
	journal Journal
	logger  *slog.Logger

	mu       sync.Mutex
	views    map[string]*view
	inflight map[string]struct{}
}

type view struct {
	observers int
	ready     bool
	state     State
}

// NewService creates a new fast service. journal and logger may be nil.
func NewService(store Store, catalog Catalog, clock Clock, journal Journal, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		store:    store,
		catalog:  catalog,
		clock:    clock,
		journal:  journal,
		logger:   logger,
		views:    make(map[string]*view),
		inflight: make(map[string]struct{}),
	}
}

// Observe subscribes to the user's fasts and emits the reconciled state after
// every change notification. Close the observation to detach.
func (s *Service) Observe(ctx context.Context, userID string) (*Observation, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}

	sub, err := s.store.Subscribe(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: subscribing: %w", ErrStore, err)
	}

	s.attach(userID)
	loopCtx, cancel := context.WithCancel(ctx)
	obs := &Observation{
		svc:     s,
		userID:  userID,
		sub:     sub,
		cancel:  cancel,
		updates: make(chan State, 1),
		done:    make(chan struct{}),
	}
	go obs.run(loopCtx, context.WithoutCancel(ctx))
	return obs, nil
}

// Current returns the last reconciled state of an observed user.
func (s *Service) Current(userID string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[userID]
	if !ok || !v.ready {
		return State{UserID: userID}, false
	}
	return cloneState(v.state), true
}

// Start creates a new active fast. The active-fast check runs against the
// last reconciled state and is advisory: two clients racing here are
// resolved by the next reconciliation pass.
func (s *Service) Start(ctx context.Context, userID string, req StartRequest) (*Session, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	if req.Protocol != nil && *req.Protocol == "" {
		req.Protocol = nil
	}
	if req.Protocol != nil && *req.Protocol != protocol.Custom {
		if _, ok := s.catalog.Lookup(*req.Protocol); !ok {
			return nil, ErrUnknownProtocol
		}
	}

	if current, ok := s.Current(userID); ok && current.Active != nil {
		return nil, ErrActiveFastExists
	}

	sess := &Session{
		UserID:   userID,
		Status:   StatusActive,
		Protocol: req.Protocol,
		Notes:    req.Notes,
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("%w: creating fast: %w", ErrStore, err)
	}

	s.updateLocal(userID, func(st *State) {
		// An echoed snapshot may already hold the new fast, or a newer active
		// one from another client; the reconciled view wins in both cases.
		if _, seen := findSession(st.Sessions, sess.ID); seen || st.Active != nil {
			return
		}
		st.Sessions = append([]Session{*sess}, st.Sessions...)
		active := *sess
		st.Active = &active
	})
	s.record(ctx, userID, sess.ID, activity.TypeFastStarted, fmt.Sprintf("started fast %s", sess.ID))

	return sess, nil
}

// End completes a fast at the current time.
func (s *Service) End(ctx context.Context, userID string, req EndRequest) (*Session, error) {
	if userID == "" || req.ID == "" {
		return nil, ErrInvalidInput
	}

	current, _ := s.Current(userID)
	target, ok := findSession(current.Sessions, req.ID)
	if !ok {
		return nil, ErrFastNotFound
	}
	if target.Status == StatusCompleted {
		return nil, ErrAlreadyCompleted
	}

	now := s.clock.Now()
	patch := completedPatch(now, minutesBetween(target.StartTime, now))
	patch.Mood = req.Mood
	patch.EnergyLevel = req.EnergyLevel

	if err := s.store.Update(ctx, userID, req.ID, patch); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFastNotFound
		}
		return nil, fmt.Errorf("%w: ending fast: %w", ErrStore, err)
	}

	ended := patch.Apply(target)
	s.updateLocal(userID, func(st *State) {
		replaceSession(st, ended)
	})
	s.record(ctx, userID, ended.ID, activity.TypeFastEnded,
		fmt.Sprintf("ended fast %s after %d minutes", ended.ID, ended.Duration))

	return &ended, nil
}

// Delete removes a fast regardless of its status.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if userID == "" || id == "" {
		return ErrInvalidInput
	}

	if err := s.store.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("%w: deleting fast: %w", ErrStore, err)
	}

	s.updateLocal(userID, func(st *State) {
		removeSessions(st, func(sess Session) bool { return sess.ID == id })
	})
	s.record(ctx, userID, id, activity.TypeFastDeleted, fmt.Sprintf("deleted fast %s", id))
	return nil
}

// ClearAll deletes every fast the user owns in one atomic batch.
func (s *Service) ClearAll(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidInput
	}

	records, err := s.store.Query(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: loading fasts: %w", ErrStore, err)
	}

	ids := make([]string, 0, len(records))
	deleted := make(map[string]struct{}, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
		deleted[rec.ID] = struct{}{}
	}
	if len(ids) > 0 {
		if err := s.store.BatchDelete(ctx, userID, ids); err != nil {
			return fmt.Errorf("%w: clearing fasts: %w", ErrStore, err)
		}
	}

	s.updateLocal(userID, func(st *State) {
		removeSessions(st, func(sess Session) bool {
			_, ok := deleted[sess.ID]
			return ok
		})
	})
	s.record(ctx, userID, "", activity.TypeFastsCleared, fmt.Sprintf("cleared %d fasts", len(ids)))
	return nil
}

// reconcile runs one pass over a snapshot and starts its write-backs.
func (s *Service) reconcile(obs *Observation, writeCtx context.Context, snapshot []Session) State {
	result := Reconcile(obs.userID, snapshot, s.clock.Now(), s.catalog)

	s.mu.Lock()
	if v, ok := s.views[obs.userID]; ok {
		v.state = cloneState(result.State)
		v.ready = true
	}
	s.mu.Unlock()

	activeID := ""
	if result.State.Active != nil {
		activeID = result.State.Active.ID
	}
	s.logger.Debug("reconciled fasts",
		"user_id", obs.userID,
		"sessions", len(result.State.Sessions),
		"active", activeID,
		"corrections", len(result.Corrections),
	)

	if len(result.Corrections) > 0 {
		s.writeBack(obs, writeCtx, result.Corrections)
	}
	return result.State
}

// writeBack applies corrections without blocking the notification handler.
// A correction for a fast that already has one in flight is skipped; the
// next pass recomputes it if it is still needed.
func (s *Service) writeBack(obs *Observation, ctx context.Context, corrections []Correction) {
	s.mu.Lock()
	pending := corrections[:0:0]
	for _, c := range corrections {
		key := obs.userID + "/" + c.SessionID
		if _, busy := s.inflight[key]; busy {
			continue
		}
		s.inflight[key] = struct{}{}
		pending = append(pending, c)
	}
	s.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	obs.writes.Add(1)
	go func() {
		defer obs.writes.Done()

		var g errgroup.Group
		g.SetLimit(maxParallelWrites)
		for _, c := range pending {
			g.Go(func() error {
				defer s.release(obs.userID, c.SessionID)
				if err := s.store.Update(ctx, obs.userID, c.SessionID, c.Patch); err != nil {
					s.logger.Warn("fast correction failed",
						"user_id", obs.userID,
						"fast_id", c.SessionID,
						"kind", c.Kind,
						"error", err,
					)
					return err
				}
				s.logger.Info("fast corrected", "user_id", obs.userID, "fast_id", c.SessionID, "kind", c.Kind)
				s.record(ctx, obs.userID, c.SessionID, correctionActivity(c.Kind),
					fmt.Sprintf("%s fast %s completed by reconciliation", c.Kind, c.SessionID))
				return nil
			})
		}
		_ = g.Wait()
	}()
}

func (s *Service) release(userID, id string) {
	s.mu.Lock()
	delete(s.inflight, userID+"/"+id)
	s.mu.Unlock()
}

func (s *Service) attach(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[userID]
	if !ok {
		v = &view{state: State{UserID: userID}}
		s.views[userID] = v
	}
	v.observers++
}

func (s *Service) detach(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[userID]
	if !ok {
		return
	}
	v.observers--
	if v.observers <= 0 {
		delete(s.views, userID)
	}
}

// updateLocal patches the last reconciled state of an observed user so local
// writes are visible before the store echoes them back.
func (s *Service) updateLocal(userID string, fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[userID]
	if !ok || !v.ready {
		return
	}
	fn(&v.state)
}

func (s *Service) record(ctx context.Context, userID, fastID string, kind activity.ActivityType, summary string) {
	if s.journal == nil {
		return
	}
	entry := &activity.ActivityEntry{
		ActivityType: kind,
		Summary:      summary,
		CreatedAt:    s.clock.Now(),
	}
	if fastID != "" {
		entry.FastID = &fastID
	}
	_ = s.journal.Log(ctx, userID, entry)
}

func correctionActivity(kind CorrectionKind) activity.ActivityType {
	if kind == CorrectionSuperseded {
		return activity.TypeFastSuperseded
	}
	return activity.TypeFastAutoCompleted
}

func findSession(sessions []Session, id string) (Session, bool) {
	for _, sess := range sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return Session{}, false
}

func replaceSession(st *State, updated Session) {
	for i := range st.Sessions {
		if st.Sessions[i].ID == updated.ID {
			st.Sessions[i] = updated
		}
	}
	if st.Active != nil && st.Active.ID == updated.ID {
		if updated.Status == StatusActive {
			st.Active = &updated
		} else {
			st.Active = nil
		}
	}
}

func removeSessions(st *State, drop func(Session) bool) {
	kept := st.Sessions[:0]
	for _, sess := range st.Sessions {
		if !drop(sess) {
			kept = append(kept, sess)
		}
	}
	st.Sessions = kept
	if st.Active != nil && drop(*st.Active) {
		st.Active = nil
	}
}

func cloneState(st State) State {
	out := State{UserID: st.UserID}
	if st.Sessions != nil {
		out.Sessions = append([]Session(nil), st.Sessions...)
	}
	if st.Active != nil {
		active := *st.Active
		out.Active = &active
	}
	return out
}

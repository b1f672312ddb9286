package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rpggio/fastwatch/internal/clock"
	"github.com/rpggio/fastwatch/internal/domain/fast"
	"github.com/rpggio/fastwatch/internal/feed"
	"github.com/rpggio/fastwatch/internal/repository"
)

const fastColumns = `id, user_id, start_time, end_time, duration, status, protocol, mood, energy_level, notes`

// FastRepository implements fast.Store for SQLite. Every committed write
// publishes a fresh snapshot of the affected user's fasts to subscribers.
type FastRepository struct {
	db    *DB
	clock clock.Clock
	hub   *feed.Hub[string, []fast.Session]

	// writeMu keeps snapshot publication in commit order.
	writeMu sync.Mutex
}

// NewFastRepository creates a new FastRepository. clock assigns start times.
func NewFastRepository(db *DB, clk clock.Clock) *FastRepository {
	if clk == nil {
		clk = clock.System{}
	}
	return &FastRepository{
		db:    db,
		clock: clk,
		hub:   feed.New[string, []fast.Session](),
	}
}

// Subscribe streams snapshots of the user's fasts, starting with the current
// set. Snapshots are shared between subscribers and must not be modified.
func (r *FastRepository) Subscribe(ctx context.Context, userID string) (fast.Subscription, error) {
	sub, err := r.hub.Subscribe(userID, func() ([]fast.Session, error) {
		return r.Query(ctx, userID)
	})
	if errors.Is(err, feed.ErrClosed) {
		return nil, repository.ErrClosed
	}
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, sub.Close)
	return &fastSubscription{sub: sub, stop: stop}, nil
}

// Create inserts a new fast. ID and StartTime are assigned here.
func (r *FastRepository) Create(ctx context.Context, sess *fast.Session) error {
	if sess == nil || sess.UserID == "" {
		return repository.ErrInvalidInput
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	sess.ID = uuid.NewString()
	sess.StartTime = r.clock.Now()
	if sess.Status == "" {
		sess.Status = fast.StatusActive
	}

	query := `INSERT INTO fasts (` + fastColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		sess.ID,
		sess.UserID,
		sess.StartTime,
		sess.EndTime,
		sess.Duration,
		sess.Status,
		sess.Protocol,
		sess.Mood,
		sess.EnergyLevel,
		sess.Notes,
	)
	if err != nil {
		if isCheckViolation(err) {
			return repository.ErrInvalidInput
		}
		return fmt.Errorf("failed to create fast: %w", err)
	}

	r.publish(ctx, sess.UserID)
	return nil
}

// Update applies a partial update to one fast.
func (r *FastRepository) Update(ctx context.Context, userID, id string, patch fast.Patch) error {
	var sets []string
	var args []interface{}
	if patch.EndTime != nil {
		sets = append(sets, "end_time = ?")
		args = append(args, *patch.EndTime)
	}
	if patch.Duration != nil {
		sets = append(sets, "duration = ?")
		args = append(args, *patch.Duration)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	if patch.Mood != nil {
		sets = append(sets, "mood = ?")
		args = append(args, *patch.Mood)
	}
	if patch.EnergyLevel != nil {
		sets = append(sets, "energy_level = ?")
		args = append(args, *patch.EnergyLevel)
	}
	if len(sets) == 0 {
		return repository.ErrInvalidInput
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	query := `UPDATE fasts SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND user_id = ?`
	args = append(args, id, userID)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isCheckViolation(err) {
			return repository.ErrInvalidInput
		}
		return fmt.Errorf("failed to update fast: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	r.publish(ctx, userID)
	return nil
}

// Delete removes a fast. Deleting a missing fast is not an error.
func (r *FastRepository) Delete(ctx context.Context, userID, id string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM fasts WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("failed to delete fast: %w", err)
	}

	r.publish(ctx, userID)
	return nil
}

// BatchDelete removes every listed fast in one transaction.
func (r *FastRepository) BatchDelete(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM fasts WHERE id = ? AND user_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id, userID); err != nil {
			return fmt.Errorf("failed to delete fast %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch delete: %w", err)
	}

	r.publish(ctx, userID)
	return nil
}

// Query returns the user's fasts, newest first.
func (r *FastRepository) Query(ctx context.Context, userID string) ([]fast.Session, error) {
	query := `SELECT ` + fastColumns + ` FROM fasts WHERE user_id = ? ORDER BY start_time DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fasts: %w", err)
	}
	defer rows.Close()

	sessions := []fast.Session{}
	for rows.Next() {
		sess, err := scanFast(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fasts: %w", err)
	}

	return sessions, nil
}

// Get retrieves a single fast.
func (r *FastRepository) Get(ctx context.Context, userID, id string) (*fast.Session, error) {
	query := `SELECT ` + fastColumns + ` FROM fasts WHERE id = ? AND user_id = ?`
	sess, err := scanFast(r.db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Close detaches all subscribers.
func (r *FastRepository) Close() {
	r.hub.Close()
}

func (r *FastRepository) publish(ctx context.Context, userID string) {
	if r.hub.Subscribers(userID) == 0 {
		return
	}
	snapshot, err := r.Query(context.WithoutCancel(ctx), userID)
	if err != nil {
		// Subscribers catch up on the next successful write.
		return
	}
	r.hub.Publish(userID, snapshot)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFast(row rowScanner) (fast.Session, error) {
	var sess fast.Session
	var endTime sql.NullTime
	var protocol, notes sql.NullString
	var mood, energy sql.NullInt64
	err := row.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.StartTime,
		&endTime,
		&sess.Duration,
		&sess.Status,
		&protocol,
		&mood,
		&energy,
		&notes,
	)
	if err == sql.ErrNoRows {
		return sess, err
	}
	if err != nil {
		return sess, fmt.Errorf("failed to scan fast: %w", err)
	}

	sess.StartTime = sess.StartTime.UTC()
	if endTime.Valid {
		t := endTime.Time.UTC()
		sess.EndTime = &t
	}
	if protocol.Valid {
		sess.Protocol = &protocol.String
	}
	if notes.Valid {
		sess.Notes = &notes.String
	}
	if mood.Valid {
		v := int(mood.Int64)
		sess.Mood = &v
	}
	if energy.Valid {
		v := int(energy.Int64)
		sess.EnergyLevel = &v
	}
	return sess, nil
}

type fastSubscription struct {
	sub  *feed.Subscriber[string, []fast.Session]
	stop func() bool
}

func (s *fastSubscription) Snapshots() <-chan []fast.Session {
	return s.sub.C()
}

func (s *fastSubscription) Close() error {
	s.stop()
	s.sub.Close()
	return nil
}

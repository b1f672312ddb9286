package fast

import (
	"sort"
	"time"

	"github.com/rpggio/fastwatch/internal/domain/protocol"
)

// GracePeriod is how long a fast may overrun its protocol target before it is
// completed automatically.
const GracePeriod = 120 * time.Minute

// validSince rejects unset or sentinel start times.
var validSince = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Result is the outcome of one reconciliation pass.
type Result struct {
	State       State
	Corrections []Correction
}

// Reconcile derives the single active fast from raw records and the
// corrections that restore the one-active-fast invariant.
//
// Older fasts are completed at now when several are active; the newest one
// survives. A surviving fast that ran longer than its target plus GracePeriod
// is completed at its nominal end instant.
func Reconcile(userID string, records []Session, now time.Time, catalog Catalog) Result {
	sessions := make([]Session, 0, len(records))
	for _, rec := range records {
		if rec.StartTime.Before(validSince) {
			continue
		}
		sessions = append(sessions, rec)
	}
	sortNewestFirst(sessions)

	var active []int
	for i := range sessions {
		if sessions[i].Status == StatusActive {
			active = append(active, i)
		}
	}

	var corrections []Correction
	var current *Session
	if len(active) > 0 {
		// sessions is newest first, so active[0] is the survivor.
		for _, i := range active[1:] {
			patch := completedPatch(now, minutesBetween(sessions[i].StartTime, now))
			sessions[i] = patch.Apply(sessions[i])
			corrections = append(corrections, Correction{
				SessionID: sessions[i].ID,
				Kind:      CorrectionSuperseded,
				Patch:     patch,
			})
		}

		survivor := active[0]
		if patch, overdue := overduePatch(sessions[survivor], now, catalog); overdue {
			sessions[survivor] = patch.Apply(sessions[survivor])
			corrections = append(corrections, Correction{
				SessionID: sessions[survivor].ID,
				Kind:      CorrectionOverdue,
				Patch:     patch,
			})
		} else {
			s := sessions[survivor]
			current = &s
		}
	}

	return Result{
		State:       State{UserID: userID, Sessions: sessions, Active: current},
		Corrections: corrections,
	}
}

// Target returns the fasting target of sess, if its protocol has one.
func Target(sess Session, catalog Catalog) (time.Duration, bool) {
	if sess.Protocol == nil || *sess.Protocol == protocol.Custom || catalog == nil {
		return 0, false
	}
	p, ok := catalog.Lookup(*sess.Protocol)
	if !ok {
		return 0, false
	}
	return p.Target()
}

func overduePatch(sess Session, now time.Time, catalog Catalog) (Patch, bool) {
	target, ok := Target(sess, catalog)
	if !ok {
		return Patch{}, false
	}
	if now.Sub(sess.StartTime) <= target+GracePeriod {
		return Patch{}, false
	}
	return completedPatch(sess.StartTime.Add(target), int(target.Minutes())), true
}

func sortNewestFirst(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].StartTime.Equal(sessions[j].StartTime) {
			return sessions[i].StartTime.After(sessions[j].StartTime)
		}
		return sessions[i].ID > sessions[j].ID
	})
}

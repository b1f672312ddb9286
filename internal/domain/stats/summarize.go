package stats

import (
	"sort"
	"time"

	"github.com/rpggio/fastwatch/internal/domain/fast"
)

// freeformKey groups fasts without a protocol.
const freeformKey = "none"

// Summarize computes history statistics over a reconciled state. Streaks
// count consecutive calendar days in loc with at least one fast completed.
func Summarize(state fast.State, catalog fast.Catalog, now time.Time, loc *time.Location) Summary {
	if loc == nil {
		loc = time.UTC
	}
	sum := Summary{
		UserID:     state.UserID,
		TotalFasts: len(state.Sessions),
		ByProtocol: make(map[string]int),
	}

	days := make(map[time.Time]struct{})
	for _, sess := range state.Sessions {
		key := freeformKey
		if sess.Protocol != nil {
			key = *sess.Protocol
		}
		sum.ByProtocol[key]++

		if sess.Status != fast.StatusCompleted {
			continue
		}
		sum.CompletedFasts++
		sum.TotalMinutes += sess.Duration
		if sess.Duration > sum.LongestMinutes {
			sum.LongestMinutes = sess.Duration
		}
		if target, ok := fast.Target(sess, catalog); ok && sess.Duration >= int(target.Minutes()) {
			sum.GoalsMet++
		}
		if sess.EndTime != nil {
			days[dayOf(*sess.EndTime, loc)] = struct{}{}
		}
	}
	if sum.CompletedFasts > 0 {
		sum.AverageMinutes = sum.TotalMinutes / sum.CompletedFasts
	}
	if state.Active != nil {
		sum.ActiveFastID = state.Active.ID
		if elapsed := now.Sub(state.Active.StartTime); elapsed > 0 {
			sum.ActiveElapsed = int(elapsed.Minutes())
		}
	}

	sum.CurrentStreak, sum.LongestStreak = streaks(days, dayOf(now, loc))
	return sum
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// streaks returns the run ending today (or yesterday, when today has no
// completion yet) and the longest run overall.
func streaks(days map[time.Time]struct{}, today time.Time) (current, longest int) {
	if len(days) == 0 {
		return 0, 0
	}

	sorted := make([]time.Time, 0, len(days))
	for d := range days {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	run := 0
	var prev time.Time
	for i, d := range sorted {
		if i > 0 && prev.AddDate(0, 0, 1).Equal(d) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
		prev = d
	}

	cursor := today
	if _, ok := days[cursor]; !ok {
		cursor = cursor.AddDate(0, 0, -1)
	}
	for {
		if _, ok := days[cursor]; !ok {
			break
		}
		current++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return current, longest
}

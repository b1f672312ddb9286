package fast

import "time"

// Status represents the lifecycle status of a fast.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Session is one fasting interval owned by a user.
type Session struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Duration    int        `json:"duration"` // minutes
	Status      Status     `json:"status"`
	Protocol    *string    `json:"protocol,omitempty"`
	Mood        *int       `json:"mood,omitempty"`
	EnergyLevel *int       `json:"energy_level,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	EndTime     *time.Time
	Duration    *int
	Status      *Status
	Mood        *int
	EnergyLevel *int
}

// Apply returns a copy of s with the patch applied.
func (p Patch) Apply(s Session) Session {
	if p.EndTime != nil {
		t := *p.EndTime
		s.EndTime = &t
	}
	if p.Duration != nil {
		s.Duration = *p.Duration
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.Mood != nil {
		v := *p.Mood
		s.Mood = &v
	}
	if p.EnergyLevel != nil {
		v := *p.EnergyLevel
		s.EnergyLevel = &v
	}
	return s
}

// State is the reconciled view of a user's fasts.
type State struct {
	UserID   string    `json:"user_id"`
	Sessions []Session `json:"sessions"`
	Active   *Session  `json:"active,omitempty"`
}

// CorrectionKind explains why a fast was completed by reconciliation.
type CorrectionKind string

const (
	// CorrectionSuperseded completes an older fast when several are active.
	CorrectionSuperseded CorrectionKind = "superseded"
	// CorrectionOverdue completes a fast that ran past its target plus grace.
	CorrectionOverdue CorrectionKind = "overdue"
)

// Correction is a write-back produced by reconciliation.
type Correction struct {
	SessionID string
	Kind      CorrectionKind
	Patch     Patch
}

// StartRequest describes a new fast.
type StartRequest struct {
	Protocol *string
	Notes    *string
}

// EndRequest describes the completion of a fast.
type EndRequest struct {
	ID          string
	Mood        *int
	EnergyLevel *int
}

func minutesBetween(from, to time.Time) int {
	m := int(to.Sub(from).Minutes())
	if m < 0 {
		return 0
	}
	return m
}

func completedPatch(end time.Time, duration int) Patch {
	status := StatusCompleted
	return Patch{EndTime: &end, Duration: &duration, Status: &status}
}

package protocol

import "time"

// Custom identifies freeform fasts. They carry no target and never auto-complete.
const Custom = "custom"

// Protocol is a named fasting schedule.
type Protocol struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	FastingHours int    `json:"fasting_hours" yaml:"fasting_hours"`
	EatingHours  int    `json:"eating_hours" yaml:"eating_hours"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Target returns the fasting window length. Custom protocols have none.
func (p Protocol) Target() (time.Duration, bool) {
	if p.ID == Custom || p.FastingHours <= 0 {
		return 0, false
	}
	return time.Duration(p.FastingHours) * time.Hour, true
}

// Builtin lists the protocols every catalog starts with.
func Builtin() []Protocol {
	return []Protocol{
		{ID: "12:12", Name: "Circadian 12:12", FastingHours: 12, EatingHours: 12},
		{ID: "14:10", Name: "14:10", FastingHours: 14, EatingHours: 10},
		{ID: "16:8", Name: "Leangains 16:8", FastingHours: 16, EatingHours: 8},
		{ID: "18:6", Name: "18:6", FastingHours: 18, EatingHours: 6},
		{ID: "20:4", Name: "Warrior 20:4", FastingHours: 20, EatingHours: 4},
		{ID: "omad", Name: "One meal a day", FastingHours: 23, EatingHours: 1},
		{ID: "36h", Name: "Monk fast 36h", FastingHours: 36, EatingHours: 0},
		{ID: Custom, Name: "Custom", Description: "Open-ended fast without a target"},
	}
}

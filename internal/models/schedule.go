package models

import "time"

// WeekdayKeys orders the lowercase weekday names used by the schedule
// dataset's per-day hour columns.
var WeekdayKeys = []string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

// ScheduleCandidate is one aggregated sweeping schedule for one side of a
// street corridor. Multiple candidates share a corridor (opposite sides)
// and are disambiguated by BlockSide, never merged.
type ScheduleCandidate struct {
	ID         int64  `json:"id" db:"id"`
	CorridorID string `json:"corridor_id" db:"corridor_id"`
	Corridor   string `json:"corridor" db:"corridor"`     // street name, e.g. "MCALLISTER ST"
	Limits     string `json:"limits" db:"limits"`         // block limits, e.g. "STEINER ST - PIERCE ST"
	BlockSide  string `json:"block_side" db:"block_side"` // e.g. "North", "NorthEast", "Odd side"

	// Per-weekday active sweeping hours (local, 0-23), keyed by the
	// lowercase weekday name. Empty or missing slice means no sweeping
	// on that day.
	HoursByDay map[string][]int `json:"hours_by_day" db:"-"`

	// Active week-of-month flags, weeks 1..5
	Weeks [5]bool `json:"weeks" db:"-"`

	// Street centerline as supplied by the schedule dataset
	Geometry []Coordinate `json:"geometry" db:"-"`
}

// ActiveAt reports whether sweeping is active at t
func (c ScheduleCandidate) ActiveAt(t time.Time) bool {
	week := weekOfMonth(t)
	if week < 1 || week > 5 || !c.Weeks[week-1] {
		return false
	}
	hours := c.HoursByDay[WeekdayKeys[int(t.Weekday())]]
	for _, h := range hours {
		if h == t.Hour() {
			return true
		}
	}
	return false
}

// NextSweeping returns the start of the next active sweeping hour at or
// after from, scanning up to the given horizon. Returns nil if the
// candidate has no active hours inside the horizon.
func (c ScheduleCandidate) NextSweeping(from time.Time, horizon time.Duration) *time.Time {
	t := from.Truncate(time.Hour)
	if t.Before(from) {
		t = t.Add(time.Hour)
	}
	end := from.Add(horizon)
	for !t.After(end) {
		if c.ActiveAt(t) {
			next := t
			return &next
		}
		t = t.Add(time.Hour)
	}
	return nil
}

func weekOfMonth(t time.Time) int {
	return (t.Day()-1)/7 + 1
}

// SideResolution is the outcome of matching a parked coordinate against
// the candidate schedules around it.
type SideResolution struct {
	ChosenSide         string             `json:"chosen_side"`
	Matched            *ScheduleCandidate `json:"matched,omitempty"`
	DistanceToSegmentM float64            `json:"distance_to_segment_m"`
	Confidence         float64            `json:"confidence"` // 0~1
	Fallback           bool               `json:"fallback"`   // true when side naming failed and nearest-candidate fallback was used
}

// ScheduleNearFilter represents query parameters for nearby-schedule lookups
type ScheduleNearFilter struct {
	Lat     float64 `form:"lat" binding:"required"`
	Lon     float64 `form:"lon" binding:"required"`
	RadiusM float64 `form:"radius"`
}

package appointment

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock start time in minutes after midnight.
type TimeOfDay int

const (
	SlotDuration = 2 * time.Hour

	OpeningTime TimeOfDay = 8 * 60
	ClosingTime TimeOfDay = 16 * 60
)

func Clock(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return Clock(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// CivilDate drops the clock part of t, keeping its calendar date in UTC.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// Interval is half-open: [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func SlotAt(date time.Time, start TimeOfDay) Interval {
	s := CivilDate(date).Add(start.Duration())
	return Interval{Start: s, End: s.Add(SlotDuration)}
}

// Overlaps reports whether the two intervals share any instant. Touching
// endpoints do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

// Conflicts reports whether candidate overlaps any of existing.
func Conflicts(candidate Interval, existing []Interval) bool {
	for _, busy := range existing {
		if candidate.Overlaps(busy) {
			return true
		}
	}
	return false
}

// BusyIntervals converts bookings into calendar intervals. Terminal bookings
// never block a slot and are skipped.
func BusyIntervals(bookings []Appointment) []Interval {
	out := make([]Interval, 0, len(bookings))
	for _, b := range bookings {
		if !b.Status.Active() {
			continue
		}
		out = append(out, b.Slot())
	}
	return out
}

// withinAssignmentWindow keeps bookings that start in [OpeningTime, ClosingTime).
func withinAssignmentWindow(bookings []Appointment) []Appointment {
	out := bookings[:0:0]
	for _, b := range bookings {
		if b.StartTime >= OpeningTime && b.StartTime < ClosingTime {
			out = append(out, b)
		}
	}
	return out
}

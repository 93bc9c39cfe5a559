// Package engagement implements the plano progress engine: streaks, badges,
// the log history aggregate, daily/weekly summaries and notifications.
package engagement

import "time"

// StreakState is the pair of counters carried in UserStats.
type StreakState struct {
	Current int
	Best    int
}

// CalendarDaysBetween returns the number of midnights between from and to,
// both read as calendar dates in loc. A from that falls on a later date than
// to yields 0.
func CalendarDaysBetween(from, to time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	a := civilDate(from.In(loc))
	b := civilDate(to.In(loc))
	days := int(b.Sub(a).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// SameDay reports whether a and b fall on the same calendar date in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	return civilDate(a.In(loc)).Equal(civilDate(b.In(loc)))
}

// civilDate maps t's wall-clock date onto UTC midnight so differences are
// exact multiples of 24h regardless of DST in the source location.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextStreak advances the streak for a new log created at now.
// prev is the date of the most recent earlier log, nil when there is none.
//
//	no previous log   → current = 1
//	same calendar day → unchanged (0 becomes 1)
//	next calendar day → current + 1
//	a gap of 2+ days  → current = 1
//
// Best is raised to current when exceeded.
func NextStreak(s StreakState, prev *time.Time, now time.Time, loc *time.Location) StreakState {
	switch {
	case prev == nil:
		s.Current = 1
	default:
		switch CalendarDaysBetween(*prev, now, loc) {
		case 0:
			if s.Current == 0 {
				s.Current = 1
			}
		case 1:
			s.Current++
		default:
			s.Current = 1
		}
	}
	if s.Current > s.Best {
		s.Best = s.Current
	}
	return s
}

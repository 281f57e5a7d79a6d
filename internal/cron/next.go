package cron

import (
	"errors"
	"time"
)

// ErrUnsatisfiable is returned when no matching instant exists within the
// search bound (e.g. "0 0 31 2 *", which asks for February 31st).
var ErrUnsatisfiable = errors.New("cron: no matching time within the search bound")

// probeLimit bounds the coarse-to-fine search. Each probe advances the
// candidate by at least one field-granularity step, so the bound comfortably
// covers more than a calendar year before giving up.
const probeLimit = 1500

// Next computes the next instant matching the schedule, strictly after now.
// The result carries now's location and is truncated to the minute.
func (s *Schedule) Next(now time.Time) (time.Time, error) {
	loc := now.Location()

	// Truncate to the minute and step forward once so the result can never
	// equal now.
	t := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), 0, 0, loc)
	t = t.Add(time.Minute)

	for i := 0; i < probeLimit; i++ {
		// Month first: jump straight to day 1, 00:00 of the next allowed
		// month, rolling the year when none remain.
		if !s.Month.Contains(int(t.Month())) {
			if m, ok := s.Month.NextAfter(int(t.Month())); ok {
				t = time.Date(t.Year(), time.Month(m), 1, 0, 0, 0, 0, loc)
			} else {
				t = time.Date(t.Year()+1, time.Month(s.Month.First()), 1, 0, 0, 0, 0, loc)
			}
			continue
		}

		// Day: time.Date normalizes day+1 across month ends (and leap
		// February), so the month rule above re-validates after a rollover.
		if !s.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			continue
		}

		if !s.Hour.Contains(t.Hour()) {
			if h, ok := s.Hour.NextAfter(t.Hour()); ok {
				t = time.Date(t.Year(), t.Month(), t.Day(), h, 0, 0, 0, loc)
			} else {
				t = time.Date(t.Year(), t.Month(), t.Day()+1, s.Hour.First(), 0, 0, 0, loc)
			}
			continue
		}

		if !s.Minute.Contains(t.Minute()) {
			if m, ok := s.Minute.NextAfter(t.Minute()); ok {
				t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), m, 0, 0, loc)
			} else if h, ok := s.Hour.NextAfter(t.Hour()); ok {
				t = time.Date(t.Year(), t.Month(), t.Day(), h, s.Minute.First(), 0, 0, loc)
			} else {
				t = time.Date(t.Year(), t.Month(), t.Day()+1, s.Hour.First(), s.Minute.First(), 0, 0, loc)
			}
			continue
		}

		return t, nil
	}

	return time.Time{}, ErrUnsatisfiable
}

// dayMatches applies standard cron day semantics: when the weekday field is
// unrestricted only day-of-month governs; when both fields are restricted a
// day is valid if either matches.
func (s *Schedule) dayMatches(t time.Time) bool {
	day := s.Day.Contains(t.Day())
	if s.Weekday.Full() {
		return day
	}
	return day || s.Weekday.Contains(int(t.Weekday()))
}

// Package schedule holds the pure time-window predicates that decide
// whether a notification workflow may run right now. Gates never perform
// I/O; malformed configuration falls back to documented defaults.
package schedule

import (
	"fmt"
	"time"
)

// FixedDayGate permits a run only on one calendar day, from FromHour
// through the end of that day. Used by the holiday greetings.
type FixedDayGate struct {
	Month    time.Month
	Day      int
	FromHour int
}

func (g FixedDayGate) Allowed(now time.Time) bool {
	return now.Month() == g.Month && now.Day() == g.Day && now.Hour() >= g.FromHour
}

// WeeklyGate permits one run per calendar day, on a configured weekday at
// or after a configured time of day. lastRun is the day of the previous
// successful run; the hour of that run is deliberately not kept, so a
// second trigger later the same day stays blocked.
type WeeklyGate struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
}

func (g WeeklyGate) Allowed(now time.Time, lastRun time.Time) bool {
	if now.Weekday() != g.Weekday {
		return false
	}
	if sameDay(now, lastRun) {
		return false
	}
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), g.Hour, g.Minute, 0, 0, now.Location())
	return !now.Before(cutoff)
}

// BusinessHoursGate permits a run while the clock time is inside the
// configured [Start, End] range, both bounds inclusive. Start and End are
// "HH:MM" strings; unparsable values fall back to 09:00 and 17:59.
type BusinessHoursGate struct {
	Start string
	End   string
}

func (g BusinessHoursGate) Allowed(now time.Time) bool {
	sh, sm := parseClock(g.Start, 9, 0)
	eh, em := parseClock(g.End, 17, 59)

	minute := now.Hour()*60 + now.Minute()
	return minute >= sh*60+sm && minute <= eh*60+em
}

func parseClock(s string, defHour, defMin int) (int, int) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%02d:%02d", &h, &m); err != nil {
		return defHour, defMin
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return defHour, defMin
	}
	return h, m
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

package schedule

import (
	"fmt"
	"time"
)

// windowProbeDays bounds the day-by-day search for the next open window.
// A valid config always opens within 7 days; the 8th probe only exists so a
// degenerate config cannot loop forever.
const windowProbeDays = 8

// CivilTime is the minute-resolution decomposition of an instant in some
// zone's civil calendar.
type CivilTime struct {
	Year    int
	Month   time.Month
	Day     int
	Hour    int
	Minute  int
	Weekday time.Weekday
}

// CivilTimeIn decomposes a UTC instant into civil time in the named zone.
// Zone rules come from the platform tz database, so DST transitions are
// handled without any fixed-offset caching.
func CivilTimeIn(t time.Time, zone string) (CivilTime, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return CivilTime{}, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return civilTime(t.In(loc)), nil
}

func civilTime(t time.Time) CivilTime {
	return CivilTime{
		Year:    t.Year(),
		Month:   t.Month(),
		Day:     t.Day(),
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Weekday: t.Weekday(),
	}
}

// InstantOf is the inverse of CivilTimeIn. For civil times that do not
// exist (a DST spring-forward gap) time.Date already normalizes to the
// first valid instant; the bounded correction loop below only exists as a
// safety net so the result's re-decomposition can never drift backwards
// past the requested minute.
func InstantOf(c CivilTime, zone string) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", zone, err)
	}

	candidate := time.Date(c.Year, c.Month, c.Day, c.Hour, c.Minute, 0, 0, loc)
	want := c.Year*100000000 + int(c.Month)*1000000 + c.Day*10000 + c.Hour*100 + c.Minute
	for i := 0; i < 4; i++ {
		got := civilTime(candidate.In(loc))
		key := got.Year*100000000 + int(got.Month)*1000000 + got.Day*10000 + got.Hour*100 + got.Minute
		if key >= want {
			return candidate, nil
		}
		candidate = candidate.Add(30 * time.Minute)
	}
	return candidate, nil
}

// IsWithinWindow reports whether t falls inside the allowed sending window:
// the zone-local weekday must be enabled and the zone-local time-of-day
// must be inside [start, end], both inclusive, at minute granularity.
func IsWithinWindow(t time.Time, cfg Config) bool {
	loc, err := time.LoadLocation(cfg.windowZone())
	if err != nil {
		return false
	}
	local := t.In(loc)
	startMin, endMin, enabled := cfg.windowFor(local.Weekday())
	if !enabled {
		return false
	}
	minuteOfDay := local.Hour()*60 + local.Minute()
	return minuteOfDay >= startMin && minuteOfDay <= endMin
}

// NextWindowStart returns the smallest instant >= t at which IsWithinWindow
// holds, probing forward day by day. Both the override-aware pass and the
// global fallback are bounded, so the function terminates even when the
// per-weekday overrides disable every day (invalid upstream, but reachable
// at runtime).
func NextWindowStart(t time.Time, cfg Config) time.Time {
	loc, err := time.LoadLocation(cfg.windowZone())
	if err != nil {
		return t
	}
	if next, ok := nextStart(t, cfg, loc, cfg.windowFor); ok {
		return next
	}
	// Every probed day was disabled by overrides: fall through to the
	// global window so a degenerate override set still terminates.
	if next, ok := nextStart(t, cfg, loc, cfg.globalWindowFor); ok {
		return next
	}
	return t
}

func nextStart(t time.Time, cfg Config, loc *time.Location, windowFor func(time.Weekday) (int, int, bool)) (time.Time, bool) {
	local := t.In(loc)
	for offset := 0; offset < windowProbeDays; offset++ {
		day := time.Date(local.Year(), local.Month(), local.Day()+offset, 0, 0, 0, 0, loc)
		startMin, endMin, enabled := windowFor(day.Weekday())
		if !enabled {
			continue
		}
		start := time.Date(day.Year(), day.Month(), day.Day(), startMin/60, startMin%60, 0, 0, loc)
		end := time.Date(day.Year(), day.Month(), day.Day(), endMin/60, endMin%60, 0, 0, loc)
		if !t.After(start) {
			return start, true
		}
		if offset == 0 && !t.After(end) {
			return t, true
		}
	}
	return time.Time{}, false
}

// NextDayWindowStart returns the first window start strictly after t's
// civil day in the window zone. Used when the daily quota is exhausted and
// the remaining items spill into the next allowed day.
func NextDayWindowStart(t time.Time, cfg Config) time.Time {
	loc, err := time.LoadLocation(cfg.windowZone())
	if err != nil {
		return t
	}
	local := t.In(loc)
	nextMidnight := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return NextWindowStart(nextMidnight, cfg)
}

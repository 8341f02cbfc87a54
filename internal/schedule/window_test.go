package schedule_test

import (
	"testing"
	"time"

	"github.com/givelift/send-scheduler/internal/schedule"
)

// 2026-01-05 is a Monday; weekday-sensitive tests below are anchored to
// that week.
func utc(day, hour, minute int) time.Time {
	return time.Date(2026, time.January, day, hour, minute, 0, 0, time.UTC)
}

func weekdayConfig() schedule.Config {
	return schedule.Config{
		DailyLimit:       50,
		MinGapMinutes:    3,
		MaxGapMinutes:    10,
		Timezone:         "UTC",
		AllowedDays:      []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		AllowedStartTime: "09:00",
		AllowedEndTime:   "17:00",
	}
}

// ---- civil time conversion ----

func TestCivilTimeRoundTrip(t *testing.T) {
	instant := time.Date(2026, time.June, 15, 14, 30, 0, 0, time.UTC)

	ct, err := schedule.CivilTimeIn(instant, "America/New_York")
	if err != nil {
		t.Fatalf("CivilTimeIn: %v", err)
	}
	if ct.Hour != 10 || ct.Minute != 30 {
		t.Errorf("EDT civil time = %02d:%02d, want 10:30", ct.Hour, ct.Minute)
	}
	if ct.Weekday != time.Monday {
		t.Errorf("weekday = %v, want Monday", ct.Weekday)
	}

	back, err := schedule.InstantOf(ct, "America/New_York")
	if err != nil {
		t.Fatalf("InstantOf: %v", err)
	}
	if !back.Equal(instant) {
		t.Errorf("round trip = %v, want %v", back, instant)
	}
}

func TestCivilTimeIn_BadZone(t *testing.T) {
	if _, err := schedule.CivilTimeIn(time.Now(), "Mars/Olympus"); err == nil {
		t.Error("want error for unknown zone")
	}
}

func TestInstantOf_DSTGapNormalizesForward(t *testing.T) {
	// 2026-03-08 02:30 does not exist in America/New_York; clocks jump
	// from 02:00 EST to 03:00 EDT.
	gap := schedule.CivilTime{Year: 2026, Month: time.March, Day: 8, Hour: 2, Minute: 30}

	instant, err := schedule.InstantOf(gap, "America/New_York")
	if err != nil {
		t.Fatalf("InstantOf: %v", err)
	}

	got, err := schedule.CivilTimeIn(instant, "America/New_York")
	if err != nil {
		t.Fatalf("CivilTimeIn: %v", err)
	}
	if got.Day != 8 || got.Hour < 3 {
		t.Errorf("normalized to %02d:%02d on day %d, want at least 03:00 on day 8", got.Hour, got.Minute, got.Day)
	}
}

// ---- window membership ----

func TestIsWithinWindow_Boundaries(t *testing.T) {
	cfg := weekdayConfig()

	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"window start is inclusive", utc(5, 9, 0), true},
		{"window end is inclusive", utc(5, 17, 0), true},
		{"minute before start", utc(5, 8, 59), false},
		{"minute after end", utc(5, 17, 1), false},
		{"midday", utc(5, 12, 30), true},
		{"saturday midday", utc(10, 12, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := schedule.IsWithinWindow(tc.t, cfg); got != tc.want {
				t.Errorf("IsWithinWindow(%v) = %v, want %v", tc.t, got, tc.want)
			}
		})
	}
}

func TestIsWithinWindow_AllowedTimezone(t *testing.T) {
	cfg := weekdayConfig()
	cfg.AllowedTimezone = "America/New_York"

	// Monday 14:00 UTC = 10:00 EDT, inside the window.
	in := time.Date(2026, time.June, 15, 14, 0, 0, 0, time.UTC)
	if !schedule.IsWithinWindow(in, cfg) {
		t.Errorf("14:00 UTC should be inside the 09:00 EDT window")
	}

	// Monday 12:00 UTC = 08:00 EDT, before the window opens.
	out := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	if schedule.IsWithinWindow(out, cfg) {
		t.Errorf("12:00 UTC should be before the 09:00 EDT window")
	}
}

func TestIsWithinWindow_PerDayOverride(t *testing.T) {
	cfg := weekdayConfig()
	cfg.DailySchedules = map[time.Weekday]schedule.DaySchedule{
		time.Monday:   {Enabled: true, StartTime: "13:00", EndTime: "15:00"},
		time.Saturday: {Enabled: true, StartTime: "10:00", EndTime: "12:00"},
	}

	// Monday uses the override, not the global 09:00 start.
	if schedule.IsWithinWindow(utc(5, 9, 30), cfg) {
		t.Error("monday 09:30 should be outside the 13:00-15:00 override")
	}
	if !schedule.IsWithinWindow(utc(5, 14, 0), cfg) {
		t.Error("monday 14:00 should be inside the override")
	}
	// Saturday is globally disabled but enabled by its override.
	if !schedule.IsWithinWindow(utc(10, 11, 0), cfg) {
		t.Error("saturday 11:00 should be inside the override")
	}
}

// ---- next window start ----

func TestNextWindowStart(t *testing.T) {
	cfg := weekdayConfig()

	cases := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{"inside window stays put", utc(5, 10, 15), utc(5, 10, 15)},
		{"before open snaps to same-day start", utc(5, 6, 0), utc(5, 9, 0)},
		{"after close rolls to next day", utc(5, 18, 0), utc(6, 9, 0)},
		{"friday evening rolls to monday", utc(9, 18, 0), utc(12, 9, 0)},
		{"saturday rolls to monday", utc(10, 12, 0), utc(12, 9, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := schedule.NextWindowStart(tc.from, cfg); !got.Equal(tc.want) {
				t.Errorf("NextWindowStart(%v) = %v, want %v", tc.from, got, tc.want)
			}
		})
	}
}

func TestNextWindowStart_OverrideOpensDisabledDay(t *testing.T) {
	cfg := weekdayConfig()
	cfg.DailySchedules = map[time.Weekday]schedule.DaySchedule{
		time.Saturday: {Enabled: true, StartTime: "10:00", EndTime: "12:00"},
	}

	got := schedule.NextWindowStart(utc(9, 18, 0), cfg) // friday evening
	if want := utc(10, 10, 0); !got.Equal(want) {
		t.Errorf("NextWindowStart = %v, want saturday %v", got, want)
	}
}

func TestNextWindowStart_AllOverridesDisabledFallsBackToGlobal(t *testing.T) {
	cfg := weekdayConfig()
	cfg.DailySchedules = map[time.Weekday]schedule.DaySchedule{}
	for d := time.Sunday; d <= time.Saturday; d++ {
		cfg.DailySchedules[d] = schedule.DaySchedule{Enabled: false}
	}

	// Saturday under a fully-disabled override set still terminates and
	// lands on the next globally allowed day.
	got := schedule.NextWindowStart(utc(10, 12, 0), cfg)
	if want := utc(12, 9, 0); !got.Equal(want) {
		t.Errorf("NextWindowStart = %v, want monday %v", got, want)
	}
}

func TestNextDayWindowStart(t *testing.T) {
	cfg := weekdayConfig()

	// Midday Monday: the next day's window is Tuesday 09:00, never later
	// the same day.
	got := schedule.NextDayWindowStart(utc(5, 9, 1), cfg)
	if want := utc(6, 9, 0); !got.Equal(want) {
		t.Errorf("NextDayWindowStart = %v, want %v", got, want)
	}

	// Friday rolls over the weekend.
	got = schedule.NextDayWindowStart(utc(9, 9, 0), cfg)
	if want := utc(12, 9, 0); !got.Equal(want) {
		t.Errorf("NextDayWindowStart = %v, want %v", got, want)
	}
}

func TestNextDayWindowStart_SingleAllowedDay(t *testing.T) {
	cfg := weekdayConfig()
	cfg.AllowedDays = []time.Weekday{time.Monday}

	got := schedule.NextDayWindowStart(utc(5, 9, 1), cfg)
	if want := utc(12, 9, 0); !got.Equal(want) {
		t.Errorf("NextDayWindowStart = %v, want next monday %v", got, want)
	}
}

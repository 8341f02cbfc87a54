package schedule

import (
	"fmt"
	"time"

	"github.com/givelift/send-scheduler/internal/domain"
)

const (
	maxDailyLimit = 500
)

// DaySchedule overrides the global sending window for a single weekday.
// When present it replaces the allowed-days membership check and the global
// start/end times for that day only.
type DaySchedule struct {
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Config is the per-organization sending policy: how many emails may go out
// per civil day, how far apart, and during which days and hours.
type Config struct {
	// DailyLimit caps sends per allowed day, 1..500.
	DailyLimit int `json:"dailyLimit"`

	// Randomized inter-email gap, minutes. MaxGapMinutes >= MinGapMinutes.
	MinGapMinutes int `json:"minGapMinutes"`
	MaxGapMinutes int `json:"maxGapMinutes"`

	// Timezone is the IANA zone used for "what day is it" quota
	// bookkeeping.
	Timezone string `json:"timezone"`

	// Window membership: allowed weekdays plus an HH:MM..HH:MM range,
	// evaluated in AllowedTimezone (falls back to Timezone when empty).
	AllowedDays      []time.Weekday `json:"allowedDays"`
	AllowedStartTime string         `json:"allowedStartTime"`
	AllowedEndTime   string         `json:"allowedEndTime"`
	AllowedTimezone  string         `json:"allowedTimezone,omitempty"`

	// DailySchedules optionally overrides the window per weekday.
	DailySchedules map[time.Weekday]DaySchedule `json:"dailySchedules,omitempty"`
}

// Default is the config created lazily the first time an organization's
// policy is read.
func Default() Config {
	return Config{
		DailyLimit:       50,
		MinGapMinutes:    3,
		MaxGapMinutes:    10,
		Timezone:         "America/New_York",
		AllowedDays:      []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		AllowedStartTime: "09:00",
		AllowedEndTime:   "17:00",
	}
}

// Patch is a partial config: nil fields fall back to the base value.
// Campaign-level overrides are stored and merged as patches.
type Patch struct {
	DailyLimit       *int                         `json:"dailyLimit,omitempty"`
	MinGapMinutes    *int                         `json:"minGapMinutes,omitempty"`
	MaxGapMinutes    *int                         `json:"maxGapMinutes,omitempty"`
	Timezone         *string                      `json:"timezone,omitempty"`
	AllowedDays      []time.Weekday               `json:"allowedDays,omitempty"`
	AllowedStartTime *string                      `json:"allowedStartTime,omitempty"`
	AllowedEndTime   *string                      `json:"allowedEndTime,omitempty"`
	AllowedTimezone  *string                      `json:"allowedTimezone,omitempty"`
	DailySchedules   map[time.Weekday]DaySchedule `json:"dailySchedules,omitempty"`
}

// IsZero reports whether the patch overrides nothing.
func (p Patch) IsZero() bool {
	return p.DailyLimit == nil && p.MinGapMinutes == nil && p.MaxGapMinutes == nil &&
		p.Timezone == nil && p.AllowedDays == nil && p.AllowedStartTime == nil &&
		p.AllowedEndTime == nil && p.AllowedTimezone == nil && p.DailySchedules == nil
}

// Apply returns a copy of c with every non-nil patch field overridden.
func (c Config) Apply(p Patch) Config {
	out := c
	if p.DailyLimit != nil {
		out.DailyLimit = *p.DailyLimit
	}
	if p.MinGapMinutes != nil {
		out.MinGapMinutes = *p.MinGapMinutes
	}
	if p.MaxGapMinutes != nil {
		out.MaxGapMinutes = *p.MaxGapMinutes
	}
	if p.Timezone != nil {
		out.Timezone = *p.Timezone
	}
	if p.AllowedDays != nil {
		out.AllowedDays = p.AllowedDays
	}
	if p.AllowedStartTime != nil {
		out.AllowedStartTime = *p.AllowedStartTime
	}
	if p.AllowedEndTime != nil {
		out.AllowedEndTime = *p.AllowedEndTime
	}
	if p.AllowedTimezone != nil {
		out.AllowedTimezone = *p.AllowedTimezone
	}
	if p.DailySchedules != nil {
		out.DailySchedules = p.DailySchedules
	}
	return out
}

// Validate checks that sending is possible at all under this config.
// Violations come back as a *domain.ValidationError naming the field.
func (c Config) Validate() error {
	if c.DailyLimit < 1 || c.DailyLimit > maxDailyLimit {
		return &domain.ValidationError{Field: "dailyLimit", Message: fmt.Sprintf("must be between 1 and %d", maxDailyLimit)}
	}
	if c.MinGapMinutes < 0 {
		return &domain.ValidationError{Field: "minGapMinutes", Message: "must not be negative"}
	}
	if c.MaxGapMinutes < c.MinGapMinutes {
		return &domain.ValidationError{Field: "maxGapMinutes", Message: "must not be less than minGapMinutes"}
	}
	if len(c.AllowedDays) == 0 {
		return &domain.ValidationError{Field: "allowedDays", Message: "must contain at least one weekday"}
	}
	for _, d := range c.AllowedDays {
		if d < time.Sunday || d > time.Saturday {
			return &domain.ValidationError{Field: "allowedDays", Message: fmt.Sprintf("weekday %d is outside 0..6", d)}
		}
	}
	startMin, err := parseClock(c.AllowedStartTime)
	if err != nil {
		return &domain.ValidationError{Field: "allowedStartTime", Message: "must be HH:MM in 24-hour format"}
	}
	endMin, err := parseClock(c.AllowedEndTime)
	if err != nil {
		return &domain.ValidationError{Field: "allowedEndTime", Message: "must be HH:MM in 24-hour format"}
	}
	if startMin >= endMin {
		return &domain.ValidationError{Field: "allowedStartTime", Message: "must be earlier than allowedEndTime"}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return &domain.ValidationError{Field: "timezone", Message: "must be a valid IANA timezone name"}
	}
	if c.AllowedTimezone != "" {
		if _, err := time.LoadLocation(c.AllowedTimezone); err != nil {
			return &domain.ValidationError{Field: "allowedTimezone", Message: "must be a valid IANA timezone name"}
		}
	}
	for day, ds := range c.DailySchedules {
		if day < time.Sunday || day > time.Saturday {
			return &domain.ValidationError{Field: "dailySchedules", Message: fmt.Sprintf("weekday %d is outside 0..6", day)}
		}
		if !ds.Enabled {
			continue
		}
		s, err := parseClock(ds.StartTime)
		if err != nil {
			return &domain.ValidationError{Field: fmt.Sprintf("dailySchedules[%d].startTime", day), Message: "must be HH:MM in 24-hour format"}
		}
		e, err := parseClock(ds.EndTime)
		if err != nil {
			return &domain.ValidationError{Field: fmt.Sprintf("dailySchedules[%d].endTime", day), Message: "must be HH:MM in 24-hour format"}
		}
		if s >= e {
			return &domain.ValidationError{Field: fmt.Sprintf("dailySchedules[%d].startTime", day), Message: "must be earlier than endTime"}
		}
	}
	return nil
}

// windowZone is the zone window-membership tests run in.
func (c Config) windowZone() string {
	if c.AllowedTimezone != "" {
		return c.AllowedTimezone
	}
	return c.Timezone
}

// windowFor resolves the effective window for a weekday: the per-day
// override when one exists, otherwise the global allowed-days check.
func (c Config) windowFor(day time.Weekday) (startMin, endMin int, enabled bool) {
	if ds, ok := c.DailySchedules[day]; ok {
		if !ds.Enabled {
			return 0, 0, false
		}
		s, err1 := parseClock(ds.StartTime)
		e, err2 := parseClock(ds.EndTime)
		if err1 != nil || err2 != nil {
			return 0, 0, false
		}
		return s, e, true
	}
	return c.globalWindowFor(day)
}

// globalWindowFor ignores per-day overrides. Used as the terminating
// fallback when every override entry is disabled.
func (c Config) globalWindowFor(day time.Weekday) (startMin, endMin int, enabled bool) {
	allowed := false
	for _, d := range c.AllowedDays {
		if d == day {
			allowed = true
			break
		}
	}
	if !allowed {
		return 0, 0, false
	}
	s, err1 := parseClock(c.AllowedStartTime)
	e, err2 := parseClock(c.AllowedEndTime)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return s, e, true
}

// parseClock parses a strict "HH:MM" 24-hour clock into minutes since
// midnight.
func parseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("malformed clock %q", s)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("malformed clock %q", s)
		}
	}
	hh := int(s[0]-'0')*10 + int(s[1]-'0')
	mm := int(s[3]-'0')*10 + int(s[4]-'0')
	if hh > 23 || mm > 59 {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return hh*60 + mm, nil
}

package schedule

import (
	"math/rand"
	"time"
)

// Item is one schedulable email. The planner treats the payload fields as
// opaque; they exist so the dispatcher can build the trigger task without a
// second lookup.
type Item struct {
	EmailID        string
	SessionID      string
	OrganizationID string
}

// Assignment pairs an item with its computed send time. Assignments come
// back in input order with non-decreasing ScheduledTime values.
type Assignment struct {
	Item          Item
	ScheduledTime time.Time
}

// Plan assigns a send time to every item, honoring the daily quota, the
// randomized inter-email gap, and the allowed sending window, spilling into
// following days as needed. It never drops items; an impossible window is a
// config-validation failure, not a planning failure.
//
// sentToday is the count of emails the organization already sent during the
// current civil day, charged against the first day's quota only. rng may be
// nil, in which case the global source is used.
func Plan(items []Item, cfg Config, sentToday int, now time.Time, rng *rand.Rand) []Assignment {
	if len(items) == 0 {
		return nil
	}

	cursor := NextWindowStart(now, cfg)
	remainingToday := cfg.DailyLimit - sentToday
	if remainingToday < 0 {
		remainingToday = 0
	}
	countToday := 0
	assignedAny := false

	assignments := make([]Assignment, 0, len(items))
	for _, item := range items {
		switch {
		case countToday >= remainingToday:
			// Quota exhausted: roll to the next allowed day's window start.
			// The per-day quota resets at day rollover, and no gap is
			// applied — the item opens the new day.
			cursor = NextDayWindowStart(cursor, cfg)
			countToday = 0
			remainingToday = cfg.DailyLimit
		case assignedAny:
			cursor = cursor.Add(time.Duration(drawGap(cfg, rng)) * time.Minute)
			if !IsWithinWindow(cursor, cfg) {
				// The gap pushed the cursor past the close of the sending
				// day (or onto a disabled day): snap forward and start a
				// fresh allowed period.
				cursor = NextWindowStart(cursor, cfg)
				countToday = 0
			}
		}

		assignments = append(assignments, Assignment{Item: item, ScheduledTime: cursor})
		countToday++
		assignedAny = true
	}
	return assignments
}

// drawGap picks a uniform gap in [MinGapMinutes, MaxGapMinutes].
func drawGap(cfg Config, rng *rand.Rand) int {
	span := cfg.MaxGapMinutes - cfg.MinGapMinutes
	if span <= 0 {
		return cfg.MinGapMinutes
	}
	if rng != nil {
		return cfg.MinGapMinutes + rng.Intn(span+1)
	}
	return cfg.MinGapMinutes + rand.Intn(span+1)
}

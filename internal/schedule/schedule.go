// Package schedule turns raw per-account schedule configuration into
// concrete posting slots.
//
// Accounts store their schedule as a comma-separated list of hours
// ("07,12,14", or the literal "null" when posting is disabled) plus a
// comma-separated list of lowercase day names ("monday,friday", or
// "everyday"). All date arithmetic here happens in the time.Location the
// caller passes in via the reference time, never in UTC: hours are what the
// user typed into their schedule, and the user typed them in their own zone.
package schedule

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// ParseHours extracts the valid posting hours from a raw cron field.
// Tokens that do not parse as integers in [0,23] are dropped silently, the
// literal "null" included; a disabled or malformed schedule is simply an
// empty set. Duplicates collapse. The result is sorted ascending.
func ParseHours(raw string) []int {
	seen := make(map[int]bool)
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		h, err := strconv.Atoi(tok)
		if err != nil || h < 0 || h > 23 {
			continue
		}
		seen[h] = true
	}
	hours := make([]int, 0, len(seen))
	for h := range seen {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	return hours
}

// ParseDays splits a raw days field into lowercase day names.
func ParseDays(raw string) []string {
	var days []string
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			days = append(days, tok)
		}
	}
	return days
}

// DayAllowed reports whether at falls on one of the configured days.
// An empty set and the literal "everyday" allow every day. The weekday is
// taken from at as-is, so callers must convert to the configured zone first.
func DayAllowed(days []string, at time.Time) bool {
	if len(days) == 0 {
		return true
	}
	weekday := strings.ToLower(at.Weekday().String())
	for _, d := range days {
		if d == "everyday" || d == weekday {
			return true
		}
	}
	return false
}

// HourOnDay returns hour:00:00 on ref's calendar day, in ref's location.
// It never rolls into the next day: an hour already in the past yields a
// timestamp in the past.
func HourOnDay(hour int, ref time.Time) time.Time {
	y, m, d := ref.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, ref.Location())
}

// RemainingHours filters hours down to the slots strictly after ref's
// current hour, for re-filling today's queue after a mid-day schedule edit.
func RemainingHours(hours []int, ref time.Time) []int {
	var out []int
	for _, h := range hours {
		if h > ref.Hour() {
			out = append(out, h)
		}
	}
	return out
}

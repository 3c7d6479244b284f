package fallback

import (
	"fmt"
	"time"
)

// Calendar generates forecast timestamps that respect trading sessions:
// weekends, listed holidays and out-of-session hours are skipped. The zero
// bounds (0, 24) describe a round-the-clock weekday market, which matches
// the FX instruments this pipeline was built for.
type Calendar struct {
	Location  *time.Location
	OpenHour  int
	CloseHour int
	Holidays  map[string]bool // "01-02" month-day keys
}

// DefaultCalendar trades around the clock on weekdays and skips the common
// full-close holidays.
func DefaultCalendar() *Calendar {
	return &Calendar{
		Location:  time.UTC,
		OpenHour:  0,
		CloseHour: 24,
		Holidays: map[string]bool{
			"01-01": true, // New Year's Day
			"12-25": true, // Christmas Day
		},
	}
}

// Next returns the first tradable instant strictly after ts at the given
// interval.
func (c *Calendar) Next(ts time.Time, interval time.Duration) time.Time {
	next := ts.Add(interval)
	for !c.tradable(next) {
		next = next.Add(interval)
	}
	return next
}

// Timestamps generates n consecutive tradable instants following start.
func (c *Calendar) Timestamps(start time.Time, interval time.Duration, n int) []time.Time {
	out := make([]time.Time, 0, n)
	ts := start
	for i := 0; i < n; i++ {
		ts = c.Next(ts, interval)
		out = append(out, ts)
	}
	return out
}

func (c *Calendar) tradable(ts time.Time) bool {
	local := ts.In(c.location())
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if c.Holidays[fmt.Sprintf("%02d-%02d", local.Month(), local.Day())] {
		return false
	}
	hour := local.Hour()
	if hour < c.OpenHour {
		return false
	}
	if c.CloseHour < 24 && hour >= c.CloseHour {
		return false
	}
	return true
}

func (c *Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Package orgday maps instants to calendar days in the organization's timezone.
// Every "same day" decision in the service goes through Calendar.Key.
package orgday

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// DefaultTimezone is the organization's zone when none is configured.
const DefaultTimezone = "America/Manaus"

const layout = "2006-01-02"

// Day is a calendar date in the organizational timezone, formatted YYYY-MM-DD.
// Days compare correctly as strings.
type Day string

// String returns the YYYY-MM-DD form.
func (d Day) String() string { return string(d) }

// Before reports whether d is strictly earlier than o.
func (d Day) Before(o Day) bool { return d < o }

// After reports whether d is strictly later than o.
func (d Day) After(o Day) bool { return d > o }

// Next returns the following calendar day.
func (d Day) Next() Day { return d.add(1) }

// Prev returns the preceding calendar day.
func (d Day) Prev() Day { return d.add(-1) }

func (d Day) add(n int) Day {
	t, err := time.Parse(layout, string(d))
	if err != nil {
		return d
	}
	return Day(t.AddDate(0, 0, n).Format(layout))
}

// ParseDay validates a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	if _, err := time.Parse(layout, s); err != nil {
		return "", fmt.Errorf("invalid day %q: %w", s, err)
	}
	return Day(s), nil
}

// Calendar resolves days in one fixed location.
type Calendar struct {
	loc *time.Location
}

// New loads the named IANA zone. An empty name uses DefaultTimezone.
func New(tz string) (*Calendar, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return &Calendar{loc: loc}, nil
}

// NewWithLocation builds a calendar around an already loaded location.
func NewWithLocation(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{loc: loc}
}

// Location returns the organizational location.
func (c *Calendar) Location() *time.Location { return c.loc }

// Key converts t into the organizational zone and truncates it to its date.
func (c *Calendar) Key(t time.Time) Day {
	return Day(t.In(c.loc).Format(layout))
}

// Today is Key(now); callers pass the clock reading explicitly.
func (c *Calendar) Today(now time.Time) Day {
	return c.Key(now)
}

// Bounds returns the half-open instant range [start, end) covered by d.
func (c *Calendar) Bounds(d Day) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(layout, string(d), c.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid day %q: %w", d, err)
	}
	// AddDate keeps wall-clock midnight across DST shifts.
	return start, start.AddDate(0, 0, 1), nil
}

// InRange reports whether t falls on a day within [from, to] inclusive.
func (c *Calendar) InRange(t time.Time, from, to Day) bool {
	d := c.Key(t)
	return !d.Before(from) && !d.After(to)
}

// Range lists every day from..to inclusive. It returns nil when to precedes from.
func Range(from, to Day) []Day {
	if to.Before(from) {
		return nil
	}
	var out []Day
	for d := from; !d.After(to); d = d.Next() {
		out = append(out, d)
	}
	return out
}

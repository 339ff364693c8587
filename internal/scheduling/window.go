// Package scheduling implements the allocation admission core: the calendar
// guard and the sweep-line capacity ledger. Everything here is pure; callers
// pass read-only snapshots of terms, blackouts, holidays and the locked
// overlap set, and get back a verdict.
package scheduling

import "time"

// Window is a half-open [Start, End) time range. Touching windows do not
// overlap, which makes back-to-back sittings at a shared boundary legal.
type Window struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the window has positive duration.
func (w Window) Valid() bool {
	return w.Start.Before(w.End)
}

// Overlaps reports whether two half-open windows intersect.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// DayBounds expands an inclusive calendar-day range into the instant window
// [first 00:00, day-after-last 00:00) in the given location. Day arguments
// are calendar dates; only their year/month/day components are read.
func DayBounds(firstDay, lastDay time.Time, loc *time.Location) Window {
	start := midnight(firstDay, loc)
	end := midnight(lastDay, loc).AddDate(0, 0, 1)
	return Window{Start: start, End: end}
}

func midnight(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

package scheduling

import "time"

// TermWindow carries the inclusive calendar-day boundaries of a term.
type TermWindow struct {
	ID       string
	FirstDay time.Time
	LastDay  time.Time
}

// Blackout is a read-only snapshot of a blackout window. An empty RoomID
// applies to every room.
type Blackout struct {
	ID     string
	RoomID string
	Window Window
}

// HolidayRange is a read-only snapshot of a holiday, inclusive on both days.
type HolidayRange struct {
	ID       string
	FirstDay time.Time
	LastDay  time.Time
}

// ValidateCalendar checks a candidate window against the term boundaries,
// blackout windows, and holidays. Checks run in that order and the first
// failure wins. The function is a pure predicate: no clock reads, no state.
func ValidateCalendar(term TermWindow, roomID string, blackouts []Blackout, holidays []HolidayRange, w Window, loc *time.Location) *Rejection {
	bounds := DayBounds(term.FirstDay, term.LastDay, loc)
	if w.Start.Before(bounds.Start) || w.End.After(bounds.End) {
		return &Rejection{Kind: KindOutsideTermWindow, ConflictID: term.ID}
	}

	for _, b := range blackouts {
		if b.RoomID != "" && b.RoomID != roomID {
			continue
		}
		if w.Overlaps(b.Window) {
			return &Rejection{Kind: KindBlackoutConflict, ConflictID: b.ID}
		}
	}

	for _, h := range holidays {
		if w.Overlaps(holidayWindow(h, loc)) {
			return &Rejection{Kind: KindHolidayConflict, ConflictID: h.ID}
		}
	}

	return nil
}

// holidayWindow expands inclusive holiday dates into an instant range. The
// end boundary is pulled in by one nanosecond so a window starting exactly
// at midnight of the day after the holiday does not collide.
func holidayWindow(h HolidayRange, loc *time.Location) Window {
	bounds := DayBounds(h.FirstDay, h.LastDay, loc)
	return Window{Start: bounds.Start, End: bounds.End.Add(-time.Nanosecond)}
}

package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func window(start, end time.Time) Window {
	return Window{Start: start, End: end}
}

var springTerm = TermWindow{
	ID:       "term-spring",
	FirstDay: day(2026, time.March, 1),
	LastDay:  day(2026, time.June, 30),
}

func TestValidateCalendarAcceptsWindowInsideTerm(t *testing.T) {
	w := window(day(2026, time.April, 7).Add(9*time.Hour), day(2026, time.April, 7).Add(11*time.Hour))

	rej := ValidateCalendar(springTerm, "room-1", nil, nil, w, time.UTC)
	assert.Nil(t, rej)
}

func TestValidateCalendarRejectsOutsideTerm(t *testing.T) {
	cases := []struct {
		name string
		w    Window
	}{
		{"before term", window(day(2026, time.February, 27).Add(9*time.Hour), day(2026, time.February, 27).Add(11*time.Hour))},
		{"after term", window(day(2026, time.July, 1).Add(9*time.Hour), day(2026, time.July, 1).Add(11*time.Hour))},
		{"straddles start", window(day(2026, time.February, 28).Add(23*time.Hour), day(2026, time.March, 1).Add(1*time.Hour))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rej := ValidateCalendar(springTerm, "room-1", nil, nil, tc.w, time.UTC)
			require.NotNil(t, rej)
			assert.Equal(t, KindOutsideTermWindow, rej.Kind)
			assert.Equal(t, "term-spring", rej.ConflictID)
		})
	}
}

func TestValidateCalendarTermBoundariesAreInclusiveDays(t *testing.T) {
	// The last day of the term is usable up to the following midnight.
	w := window(day(2026, time.June, 30).Add(22*time.Hour), day(2026, time.July, 1))
	assert.Nil(t, ValidateCalendar(springTerm, "room-1", nil, nil, w, time.UTC))
}

func TestValidateCalendarBlackoutScoping(t *testing.T) {
	blackouts := []Blackout{
		{ID: "bo-room2", RoomID: "room-2", Window: window(day(2026, time.April, 7).Add(8*time.Hour), day(2026, time.April, 7).Add(18*time.Hour))},
		{ID: "bo-global", RoomID: "", Window: window(day(2026, time.April, 8).Add(8*time.Hour), day(2026, time.April, 8).Add(18*time.Hour))},
	}

	// Another room's blackout does not apply.
	w := window(day(2026, time.April, 7).Add(9*time.Hour), day(2026, time.April, 7).Add(11*time.Hour))
	assert.Nil(t, ValidateCalendar(springTerm, "room-1", blackouts, nil, w, time.UTC))

	// A global blackout applies to every room.
	w = window(day(2026, time.April, 8).Add(9*time.Hour), day(2026, time.April, 8).Add(11*time.Hour))
	rej := ValidateCalendar(springTerm, "room-1", blackouts, nil, w, time.UTC)
	require.NotNil(t, rej)
	assert.Equal(t, KindBlackoutConflict, rej.Kind)
	assert.Equal(t, "bo-global", rej.ConflictID)
}

func TestValidateCalendarBlackoutTouchingEndpointsDoNotOverlap(t *testing.T) {
	blackouts := []Blackout{
		{ID: "bo", Window: window(day(2026, time.April, 7).Add(12*time.Hour), day(2026, time.April, 7).Add(14*time.Hour))},
	}

	before := window(day(2026, time.April, 7).Add(10*time.Hour), day(2026, time.April, 7).Add(12*time.Hour))
	after := window(day(2026, time.April, 7).Add(14*time.Hour), day(2026, time.April, 7).Add(16*time.Hour))

	assert.Nil(t, ValidateCalendar(springTerm, "room-1", blackouts, nil, before, time.UTC))
	assert.Nil(t, ValidateCalendar(springTerm, "room-1", blackouts, nil, after, time.UTC))
}

func TestValidateCalendarHolidayEdges(t *testing.T) {
	// Holiday spans April 10-12 inclusive.
	holidays := []HolidayRange{{ID: "hol", FirstDay: day(2026, time.April, 10), LastDay: day(2026, time.April, 12)}}

	// Starting exactly at midnight of the day after the holiday is allowed.
	w := window(day(2026, time.April, 13), day(2026, time.April, 13).Add(2*time.Hour))
	assert.Nil(t, ValidateCalendar(springTerm, "room-1", nil, holidays, w, time.UTC))

	// Ending exactly at midnight of the first holiday day is allowed.
	w = window(day(2026, time.April, 9).Add(22*time.Hour), day(2026, time.April, 10))
	assert.Nil(t, ValidateCalendar(springTerm, "room-1", nil, holidays, w, time.UTC))

	// Any instant inside the holiday conflicts.
	w = window(day(2026, time.April, 12).Add(23*time.Hour), day(2026, time.April, 13).Add(1*time.Hour))
	rej := ValidateCalendar(springTerm, "room-1", nil, holidays, w, time.UTC)
	require.NotNil(t, rej)
	assert.Equal(t, KindHolidayConflict, rej.Kind)
	assert.Equal(t, "hol", rej.ConflictID)
}

func TestValidateCalendarBlackoutCheckedBeforeHoliday(t *testing.T) {
	blackouts := []Blackout{
		{ID: "bo", Window: window(day(2026, time.April, 10), day(2026, time.April, 11))},
	}
	holidays := []HolidayRange{{ID: "hol", FirstDay: day(2026, time.April, 10), LastDay: day(2026, time.April, 12)}}

	w := window(day(2026, time.April, 10).Add(9*time.Hour), day(2026, time.April, 10).Add(11*time.Hour))
	rej := ValidateCalendar(springTerm, "room-1", blackouts, holidays, w, time.UTC)
	require.NotNil(t, rej)
	assert.Equal(t, KindBlackoutConflict, rej.Kind)
}

func TestValidateCalendarHonorsReferenceTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+3:30", int((3*time.Hour + 30*time.Minute).Seconds()))

	// 30 March 2026 at 01:00 local time is still 29 March in UTC; term
	// containment must be judged against local midnights.
	term := TermWindow{ID: "t", FirstDay: day(2026, time.March, 30), LastDay: day(2026, time.March, 30)}
	w := window(
		time.Date(2026, time.March, 30, 1, 0, 0, 0, loc),
		time.Date(2026, time.March, 30, 3, 0, 0, 0, loc),
	)

	assert.Nil(t, ValidateCalendar(term, "room-1", nil, nil, w, loc))
	rej := ValidateCalendar(term, "room-1", nil, nil, w, time.UTC)
	require.NotNil(t, rej)
	assert.Equal(t, KindOutsideTermWindow, rej.Kind)
}

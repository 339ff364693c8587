package scheduling

import "time"

// RejectionKind classifies why an allocation was refused.
type RejectionKind string

const (
	KindOutsideTermWindow RejectionKind = "OUTSIDE_TERM_WINDOW"
	KindBlackoutConflict  RejectionKind = "BLACKOUT_CONFLICT"
	KindHolidayConflict   RejectionKind = "HOLIDAY_CONFLICT"
	KindCapacityExceeded  RejectionKind = "CAPACITY_EXCEEDED"
)

// Rejection is the negative outcome of an admission check. It is a normal
// result, not a fault: given the same committed state and candidate, the
// same rejection is produced again.
type Rejection struct {
	Kind RejectionKind

	// ConflictID identifies the term, blackout, or holiday that failed the
	// calendar checks. Empty for capacity rejections.
	ConflictID string

	// At and Total describe the first overflowing instant and the seat
	// count reached there. Zero values for calendar rejections.
	At    time.Time
	Total int
}

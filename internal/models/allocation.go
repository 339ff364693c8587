package models

import "time"

// Allocation books seats in a room for an exam within a half-open
// [start_at, end_at) window. Edits are wholesale: the record is replaced
// after re-running the full admission check, never patched in place.
type Allocation struct {
	ID             string    `db:"id" json:"id"`
	ExamID         string    `db:"exam_id" json:"exam_id"`
	RoomID         string    `db:"room_id" json:"room_id"`
	StartAt        time.Time `db:"start_at" json:"start_at"`
	EndAt          time.Time `db:"end_at" json:"end_at"`
	AllocatedSeats int       `db:"allocated_seats" json:"allocated_seats"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// AllocationDetail joins exam metadata for list and timetable views.
type AllocationDetail struct {
	Allocation
	ExamTitle  string `db:"exam_title" json:"exam_title"`
	CourseCode string `db:"course_code" json:"course_code"`
	RoomName   string `db:"room_name" json:"room_name"`
}

// AllocationFilter defines filters supported by allocation list endpoints.
type AllocationFilter struct {
	RoomID    string
	ExamID    string
	TermID    string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

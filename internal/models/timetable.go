package models

import "time"

// TimetableEntry is the public representation of one allocation.
type TimetableEntry struct {
	ID             string    `json:"id"`
	ExamTitle      string    `json:"exam_title"`
	CourseCode     string    `json:"course_code"`
	StartAt        time.Time `json:"start_at"`
	EndAt          time.Time `json:"end_at"`
	AllocatedSeats int       `json:"allocated_seats"`
}

// TimetableRoom groups a room's allocations for the public timetable.
type TimetableRoom struct {
	RoomID      string           `json:"room_id"`
	RoomName    string           `json:"room_name"`
	Capacity    int              `json:"capacity"`
	Allocations []TimetableEntry `json:"allocations"`
}

// Timetable is the published per-term view of all room allocations.
type Timetable struct {
	TermID      string          `json:"term_id"`
	Label       string          `json:"label"`
	GeneratedAt time.Time       `json:"generated_at"`
	Rooms       []TimetableRoom `json:"rooms"`
}

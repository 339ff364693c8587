package models

import "time"

// BlackoutWindow is a period where scheduling is not permitted. A nil RoomID
// applies the window to every room.
type BlackoutWindow struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartAt   time.Time `db:"start_at" json:"start_at"`
	EndAt     time.Time `db:"end_at" json:"end_at"`
	RoomID    *string   `db:"room_id" json:"room_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AppliesTo reports whether the blackout constrains the given room.
func (b BlackoutWindow) AppliesTo(roomID string) bool {
	return b.RoomID == nil || *b.RoomID == roomID
}

// Holiday is an all-day range where exams are not scheduled, inclusive on
// both calendar dates and applying to every room.
type Holiday struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

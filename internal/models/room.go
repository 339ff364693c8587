package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Room models a physical exam room. Features is opaque metadata; the
// admission core never inspects it. types.JSONText tolerates NULL columns
// and never writes NULL back, so rooms created without features stay
// readable under the admission lock fetch.
type Room struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Building  string         `db:"building" json:"building"`
	Capacity  int            `db:"capacity" json:"capacity"`
	Features  types.JSONText `db:"features" json:"features,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// RoomFilter defines filters supported by room list endpoints.
type RoomFilter struct {
	Name        string
	MinCapacity int
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

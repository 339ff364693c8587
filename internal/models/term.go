package models

import "time"

// Term models an academic term. Start and end dates are inclusive calendar
// days; the admission core expands them to midnight boundaries in the
// configured scheduling timezone.
type Term struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	EndDate     time.Time `db:"end_date" json:"end_date"`
	IsPublished bool      `db:"is_published" json:"is_published"`
	IsArchived  bool      `db:"is_archived" json:"is_archived"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TermFilter defines filters supported by term list endpoints.
type TermFilter struct {
	Code        string
	IsPublished *bool
	IsArchived  *bool
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

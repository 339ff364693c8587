package models

import "time"

// Exam models an exam sitting definition. Allocations place an exam into a
// room for a concrete time window.
type Exam struct {
	ID               string    `db:"id" json:"id"`
	Title            string    `db:"title" json:"title"`
	CourseCode       string    `db:"course_code" json:"course_code"`
	TermID           string    `db:"term_id" json:"term_id"`
	ExpectedStudents int       `db:"expected_students" json:"expected_students"`
	DurationMinutes  int       `db:"duration_minutes" json:"duration_minutes"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// ExamFilter defines filters supported by exam list endpoints.
type ExamFilter struct {
	TermID     string
	CourseCode string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

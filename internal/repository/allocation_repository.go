package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-scheduler/internal/models"
)

// AllocationRepository handles persistence for exam allocations, including
// the locked admission transaction the coordinator runs its checks inside.
type AllocationRepository struct {
	db *sqlx.DB
}

// NewAllocationRepository instantiates an allocation repository.
func NewAllocationRepository(db *sqlx.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

const allocationColumns = "id, exam_id, room_id, start_at, end_at, allocated_seats, created_at, updated_at"

// Admission is an open admission transaction. Room and Overlapping expose
// the state read under the room lock; it stays current until Commit or
// Rollback because every writer for the room serializes on the same lock.
type Admission interface {
	Room() models.Room
	Overlapping() []models.Allocation
	Commit(ctx context.Context, allocation *models.Allocation, replaceID string) error
	Rollback() error
}

type admissionTx struct {
	tx          *sqlx.Tx
	room        models.Room
	overlapping []models.Allocation
}

// BeginAdmission opens the admission transaction for a candidate window.
// It locks the room row first, since that is what serializes concurrent
// admissions for the room: two inserts could otherwise each miss the
// other's uncommitted row. The overlap set is then read under the lock.
// Blocking on the lock honors ctx cancellation; the transaction is rolled
// back on every error path.
func (r *AllocationRepository) BeginAdmission(ctx context.Context, roomID string, startAt, endAt time.Time, excludeID string) (Admission, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin admission tx: %w", err)
	}

	var room models.Room
	if err := tx.GetContext(ctx, &room, `SELECT id, name, building, capacity, features, created_at, updated_at FROM rooms WHERE id = $1 FOR UPDATE`, roomID); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("lock room %s: %w", roomID, err)
	}

	query := fmt.Sprintf("SELECT %s FROM allocations WHERE room_id = $1 AND start_at < $3 AND end_at > $2", allocationColumns)
	args := []interface{}{roomID, startAt, endAt}
	if excludeID != "" {
		query += " AND id <> $4"
		args = append(args, excludeID)
	}
	query += " ORDER BY start_at ASC FOR UPDATE"

	var overlapping []models.Allocation
	if err := tx.SelectContext(ctx, &overlapping, query, args...); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("lock overlapping allocations: %w", err)
	}

	return &admissionTx{tx: tx, room: room, overlapping: overlapping}, nil
}

func (t *admissionTx) Room() models.Room {
	return t.room
}

func (t *admissionTx) Overlapping() []models.Allocation {
	return t.overlapping
}

// Commit persists the candidate and releases the locks. A non-empty
// replaceID rewrites the existing row wholesale instead of inserting.
func (t *admissionTx) Commit(ctx context.Context, allocation *models.Allocation, replaceID string) error {
	now := time.Now().UTC()
	allocation.UpdatedAt = now

	if replaceID != "" {
		allocation.ID = replaceID
		const query = `UPDATE allocations SET exam_id = :exam_id, room_id = :room_id, start_at = :start_at, end_at = :end_at, allocated_seats = :allocated_seats, updated_at = :updated_at WHERE id = :id`
		res, err := t.tx.NamedExecContext(ctx, query, allocation)
		if err != nil {
			_ = t.tx.Rollback()
			return fmt.Errorf("replace allocation: %w", err)
		}
		// The row can vanish between the caller's existence check and this
		// point; a zero-row update must not be reported as admitted.
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			_ = t.tx.Rollback()
			return sql.ErrNoRows
		}
	} else {
		if allocation.ID == "" {
			allocation.ID = uuid.NewString()
		}
		allocation.CreatedAt = now
		const query = `INSERT INTO allocations (id, exam_id, room_id, start_at, end_at, allocated_seats, created_at, updated_at) VALUES (:id, :exam_id, :room_id, :start_at, :end_at, :allocated_seats, :created_at, :updated_at)`
		if _, err := t.tx.NamedExecContext(ctx, query, allocation); err != nil {
			_ = t.tx.Rollback()
			return fmt.Errorf("insert allocation: %w", err)
		}
	}

	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit admission tx: %w", err)
	}
	return nil
}

// Rollback discards the admission transaction. Safe to call after Commit.
func (t *admissionTx) Rollback() error {
	return t.tx.Rollback()
}

// List returns allocation details matching provided filters.
func (r *AllocationRepository) List(ctx context.Context, filter models.AllocationFilter) ([]models.AllocationDetail, int, error) {
	base := `FROM allocations a JOIN exams e ON e.id = a.exam_id JOIN rooms ro ON ro.id = a.room_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("a.room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.ExamID != "" {
		conditions = append(conditions, fmt.Sprintf("a.exam_id = $%d", len(args)+1))
		args = append(args, filter.ExamID)
	}
	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("e.term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("a.end_at > $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("a.start_at < $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"start_at":   true,
		"end_at":     true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "start_at"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	const detailColumns = "a.id, a.exam_id, a.room_id, a.start_at, a.end_at, a.allocated_seats, a.created_at, a.updated_at, e.title AS exam_title, e.course_code, ro.name AS room_name"
	query := fmt.Sprintf("SELECT %s %s ORDER BY a.%s %s LIMIT %d OFFSET %d", detailColumns, base, sortBy, order, size, offset)

	var allocations []models.AllocationDetail
	if err := r.db.SelectContext(ctx, &allocations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list allocations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count allocations: %w", err)
	}

	return allocations, total, nil
}

// FindByID loads an allocation by identifier.
func (r *AllocationRepository) FindByID(ctx context.Context, id string) (*models.Allocation, error) {
	query := fmt.Sprintf("SELECT %s FROM allocations WHERE id = $1", allocationColumns)
	var allocation models.Allocation
	if err := r.db.GetContext(ctx, &allocation, query, id); err != nil {
		return nil, err
	}
	return &allocation, nil
}

// ListByRoom returns all allocations of a room ordered by start. Used by
// invariant audits and tests; admission itself reads under BeginAdmission.
func (r *AllocationRepository) ListByRoom(ctx context.Context, roomID string) ([]models.Allocation, error) {
	query := fmt.Sprintf("SELECT %s FROM allocations WHERE room_id = $1 ORDER BY start_at ASC", allocationColumns)
	var allocations []models.Allocation
	if err := r.db.SelectContext(ctx, &allocations, query, roomID); err != nil {
		return nil, fmt.Errorf("list allocations by room: %w", err)
	}
	return allocations, nil
}

// ListDetailsByTerm returns allocation details for a term ordered per room,
// feeding the public timetable.
func (r *AllocationRepository) ListDetailsByTerm(ctx context.Context, termID string) ([]models.AllocationDetail, error) {
	const query = `SELECT a.id, a.exam_id, a.room_id, a.start_at, a.end_at, a.allocated_seats, a.created_at, a.updated_at, e.title AS exam_title, e.course_code, ro.name AS room_name FROM allocations a JOIN exams e ON e.id = a.exam_id JOIN rooms ro ON ro.id = a.room_id WHERE e.term_id = $1 ORDER BY ro.name ASC, a.start_at ASC`
	var allocations []models.AllocationDetail
	if err := r.db.SelectContext(ctx, &allocations, query, termID); err != nil {
		return nil, fmt.Errorf("list allocations by term: %w", err)
	}
	return allocations, nil
}

// Delete removes an allocation permanently. Removing seat demand cannot
// violate the capacity invariant, so no room lock is taken.
func (r *AllocationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM allocations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete allocation: %w", err)
	}
	return nil
}

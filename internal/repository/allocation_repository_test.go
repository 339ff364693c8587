package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-scheduler/internal/models"
)

func newAllocationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func roomRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "building", "capacity", "features", "created_at", "updated_at"}).
		AddRow("room-1", "Main Hall", "North Wing", 100, nil, time.Now(), time.Now())
}

func TestAllocationRepositoryBeginAdmissionLocksRoomThenOverlap(t *testing.T) {
	db, mock, cleanup := newAllocationRepoMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	start := time.Date(2026, 4, 7, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, building, capacity, features, created_at, updated_at FROM rooms WHERE id = $1 FOR UPDATE")).
		WithArgs("room-1").
		WillReturnRows(roomRows())
	mock.ExpectQuery(regexp.QuoteMeta("FROM allocations WHERE room_id = $1 AND start_at < $3 AND end_at > $2 ORDER BY start_at ASC FOR UPDATE")).
		WithArgs("room-1", start, end).
		WillReturnRows(sqlmock.NewRows([]string{"id", "exam_id", "room_id", "start_at", "end_at", "allocated_seats", "created_at", "updated_at"}).
			AddRow("alloc-1", "exam-1", "room-1", start.Add(-time.Hour), start.Add(time.Hour), 40, time.Now(), time.Now()))
	mock.ExpectRollback()

	atx, err := repo.BeginAdmission(context.Background(), "room-1", start, end, "")
	require.NoError(t, err)
	assert.Equal(t, 100, atx.Room().Capacity)
	require.Len(t, atx.Overlapping(), 1)
	assert.Equal(t, "alloc-1", atx.Overlapping()[0].ID)

	require.NoError(t, atx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocationRepositoryBeginAdmissionInsertAndCommit(t *testing.T) {
	db, mock, cleanup := newAllocationRepoMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	start := time.Date(2026, 4, 7, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name, building, capacity, features, created_at, updated_at FROM rooms").
		WithArgs("room-1").
		WillReturnRows(roomRows())
	mock.ExpectQuery("FROM allocations WHERE room_id").
		WithArgs("room-1", start, end).
		WillReturnRows(sqlmock.NewRows([]string{"id", "exam_id", "room_id", "start_at", "end_at", "allocated_seats", "created_at", "updated_at"}))
	mock.ExpectExec("INSERT INTO allocations").
		WithArgs(sqlmock.AnyArg(), "exam-2", "room-1", start, end, 30, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	atx, err := repo.BeginAdmission(context.Background(), "room-1", start, end, "")
	require.NoError(t, err)
	assert.Empty(t, atx.Overlapping())

	alloc := &models.Allocation{ExamID: "exam-2", RoomID: "room-1", StartAt: start, EndAt: end, AllocatedSeats: 30}
	require.NoError(t, atx.Commit(context.Background(), alloc, ""))
	assert.NotEmpty(t, alloc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocationRepositoryBeginAdmissionExcludesReplacedRow(t *testing.T) {
	db, mock, cleanup := newAllocationRepoMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	start := time.Date(2026, 4, 7, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name, building, capacity, features, created_at, updated_at FROM rooms").
		WithArgs("room-1").
		WillReturnRows(roomRows())
	mock.ExpectQuery(regexp.QuoteMeta("AND id <> $4 ORDER BY start_at ASC FOR UPDATE")).
		WithArgs("room-1", start, end, "alloc-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "exam_id", "room_id", "start_at", "end_at", "allocated_seats", "created_at", "updated_at"}))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE allocations SET")).
		WithArgs("exam-1", "room-1", start, end, 50, sqlmock.AnyArg(), "alloc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	atx, err := repo.BeginAdmission(context.Background(), "room-1", start, end, "alloc-1")
	require.NoError(t, err)

	alloc := &models.Allocation{ExamID: "exam-1", RoomID: "room-1", StartAt: start, EndAt: end, AllocatedSeats: 50}
	require.NoError(t, atx.Commit(context.Background(), alloc, "alloc-1"))
	assert.Equal(t, "alloc-1", alloc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocationRepositoryReplaceMissingRowRollsBack(t *testing.T) {
	db, mock, cleanup := newAllocationRepoMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	start := time.Date(2026, 4, 7, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name, building, capacity, features, created_at, updated_at FROM rooms").
		WithArgs("room-1").
		WillReturnRows(roomRows())
	mock.ExpectQuery("FROM allocations WHERE room_id").
		WithArgs("room-1", start, end, "alloc-gone").
		WillReturnRows(sqlmock.NewRows([]string{"id", "exam_id", "room_id", "start_at", "end_at", "allocated_seats", "created_at", "updated_at"}))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE allocations SET")).
		WithArgs("exam-1", "room-1", start, end, 50, sqlmock.AnyArg(), "alloc-gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	atx, err := repo.BeginAdmission(context.Background(), "room-1", start, end, "alloc-gone")
	require.NoError(t, err)

	alloc := &models.Allocation{ExamID: "exam-1", RoomID: "room-1", StartAt: start, EndAt: end, AllocatedSeats: 50}
	err = atx.Commit(context.Background(), alloc, "alloc-gone")
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocationRepositoryBeginAdmissionRollsBackOnLockError(t *testing.T) {
	db, mock, cleanup := newAllocationRepoMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	start := time.Date(2026, 4, 7, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name, building, capacity, features, created_at, updated_at FROM rooms").
		WithArgs("room-missing").
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	_, err := repo.BeginAdmission(context.Background(), "room-missing", start, end, "")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocationRepositoryListDetailsByTerm(t *testing.T) {
	db, mock, cleanup := newAllocationRepoMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	start := time.Date(2026, 4, 7, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "exam_id", "room_id", "start_at", "end_at", "allocated_seats", "created_at", "updated_at", "exam_title", "course_code", "room_name"}).
		AddRow("alloc-1", "exam-1", "room-1", start, start.Add(2*time.Hour), 60, time.Now(), time.Now(), "Calculus I", "MATH101", "Main Hall")
	mock.ExpectQuery("FROM allocations a JOIN exams e ON e.id = a.exam_id JOIN rooms ro ON ro.id = a.room_id WHERE e.term_id").
		WithArgs("term-1").
		WillReturnRows(rows)

	details, err := repo.ListDetailsByTerm(context.Background(), "term-1")
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "MATH101", details[0].CourseCode)
	assert.Equal(t, "Main Hall", details[0].RoomName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-scheduler/internal/models"
)

func newRoomRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

// Rooms created without a features payload store NULL; reads must tolerate
// it, since the admission lock fetch reads the same columns.
func TestRoomRepositoryFindByIDNullFeatures(t *testing.T) {
	db, mock, cleanup := newRoomRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "building", "capacity", "features", "created_at", "updated_at"}).
		AddRow("room-1", "Main Hall", "North Wing", 100, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, building, capacity, features, created_at, updated_at FROM rooms WHERE id = $1")).
		WithArgs("room-1").
		WillReturnRows(rows)

	room, err := repo.FindByID(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, 100, room.Capacity)
	assert.JSONEq(t, "{}", string(room.Features))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRoomRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rooms")).
		WithArgs(sqlmock.AnyArg(), "Main Hall", "North Wing", 100, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	room := &models.Room{Name: "Main Hall", Building: "North Wing", Capacity: 100}
	require.NoError(t, repo.Create(context.Background(), room))
	assert.NotEmpty(t, room.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

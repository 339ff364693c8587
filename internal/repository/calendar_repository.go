package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-scheduler/internal/models"
)

// CalendarRepository handles persistence for blackout windows and holidays.
// The admission coordinator reads both as snapshots before opening the
// admission transaction; they change rarely and only through this CRUD.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository instantiates a calendar repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

const blackoutColumns = "id, name, start_at, end_at, room_id, created_at, updated_at"
const holidayColumns = "id, name, start_date, end_date, created_at, updated_at"

// ListBlackouts returns all blackout windows ordered by start.
func (r *CalendarRepository) ListBlackouts(ctx context.Context) ([]models.BlackoutWindow, error) {
	query := fmt.Sprintf("SELECT %s FROM blackout_windows ORDER BY start_at ASC, name ASC", blackoutColumns)
	var blackouts []models.BlackoutWindow
	if err := r.db.SelectContext(ctx, &blackouts, query); err != nil {
		return nil, fmt.Errorf("list blackout windows: %w", err)
	}
	return blackouts, nil
}

// ListBlackoutsForRoom returns blackout windows scoped to the room or global.
func (r *CalendarRepository) ListBlackoutsForRoom(ctx context.Context, roomID string) ([]models.BlackoutWindow, error) {
	query := fmt.Sprintf("SELECT %s FROM blackout_windows WHERE room_id IS NULL OR room_id = $1 ORDER BY start_at ASC", blackoutColumns)
	var blackouts []models.BlackoutWindow
	if err := r.db.SelectContext(ctx, &blackouts, query, roomID); err != nil {
		return nil, fmt.Errorf("list blackout windows for room: %w", err)
	}
	return blackouts, nil
}

// FindBlackoutByID loads a blackout window by identifier.
func (r *CalendarRepository) FindBlackoutByID(ctx context.Context, id string) (*models.BlackoutWindow, error) {
	query := fmt.Sprintf("SELECT %s FROM blackout_windows WHERE id = $1", blackoutColumns)
	var blackout models.BlackoutWindow
	if err := r.db.GetContext(ctx, &blackout, query, id); err != nil {
		return nil, err
	}
	return &blackout, nil
}

// CreateBlackout inserts a new blackout window.
func (r *CalendarRepository) CreateBlackout(ctx context.Context, blackout *models.BlackoutWindow) error {
	if blackout.ID == "" {
		blackout.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if blackout.CreatedAt.IsZero() {
		blackout.CreatedAt = now
	}
	blackout.UpdatedAt = now

	const query = `INSERT INTO blackout_windows (id, name, start_at, end_at, room_id, created_at, updated_at) VALUES (:id, :name, :start_at, :end_at, :room_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, blackout); err != nil {
		return fmt.Errorf("create blackout window: %w", err)
	}
	return nil
}

// UpdateBlackout modifies an existing blackout window.
func (r *CalendarRepository) UpdateBlackout(ctx context.Context, blackout *models.BlackoutWindow) error {
	blackout.UpdatedAt = time.Now().UTC()
	const query = `UPDATE blackout_windows SET name = :name, start_at = :start_at, end_at = :end_at, room_id = :room_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, blackout); err != nil {
		return fmt.Errorf("update blackout window: %w", err)
	}
	return nil
}

// DeleteBlackout removes a blackout window permanently.
func (r *CalendarRepository) DeleteBlackout(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM blackout_windows WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete blackout window: %w", err)
	}
	return nil
}

// ListHolidays returns all holidays ordered by start date.
func (r *CalendarRepository) ListHolidays(ctx context.Context) ([]models.Holiday, error) {
	query := fmt.Sprintf("SELECT %s FROM holidays ORDER BY start_date ASC, name ASC", holidayColumns)
	var holidays []models.Holiday
	if err := r.db.SelectContext(ctx, &holidays, query); err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return holidays, nil
}

// FindHolidayByID loads a holiday by identifier.
func (r *CalendarRepository) FindHolidayByID(ctx context.Context, id string) (*models.Holiday, error) {
	query := fmt.Sprintf("SELECT %s FROM holidays WHERE id = $1", holidayColumns)
	var holiday models.Holiday
	if err := r.db.GetContext(ctx, &holiday, query, id); err != nil {
		return nil, err
	}
	return &holiday, nil
}

// CreateHoliday inserts a new holiday.
func (r *CalendarRepository) CreateHoliday(ctx context.Context, holiday *models.Holiday) error {
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if holiday.CreatedAt.IsZero() {
		holiday.CreatedAt = now
	}
	holiday.UpdatedAt = now

	const query = `INSERT INTO holidays (id, name, start_date, end_date, created_at, updated_at) VALUES (:id, :name, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, holiday); err != nil {
		return fmt.Errorf("create holiday: %w", err)
	}
	return nil
}

// UpdateHoliday modifies an existing holiday.
func (r *CalendarRepository) UpdateHoliday(ctx context.Context, holiday *models.Holiday) error {
	holiday.UpdatedAt = time.Now().UTC()
	const query = `UPDATE holidays SET name = :name, start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, holiday); err != nil {
		return fmt.Errorf("update holiday: %w", err)
	}
	return nil
}

// DeleteHoliday removes a holiday permanently.
func (r *CalendarRepository) DeleteHoliday(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM holidays WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete holiday: %w", err)
	}
	return nil
}

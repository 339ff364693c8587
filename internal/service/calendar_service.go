package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-scheduler/internal/models"
	appErrors "github.com/noah-isme/exam-scheduler/pkg/errors"
)

type calendarRepository interface {
	ListBlackouts(ctx context.Context) ([]models.BlackoutWindow, error)
	FindBlackoutByID(ctx context.Context, id string) (*models.BlackoutWindow, error)
	CreateBlackout(ctx context.Context, blackout *models.BlackoutWindow) error
	UpdateBlackout(ctx context.Context, blackout *models.BlackoutWindow) error
	DeleteBlackout(ctx context.Context, id string) error
	ListHolidays(ctx context.Context) ([]models.Holiday, error)
	FindHolidayByID(ctx context.Context, id string) (*models.Holiday, error)
	CreateHoliday(ctx context.Context, holiday *models.Holiday) error
	UpdateHoliday(ctx context.Context, holiday *models.Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
}

// BlackoutRequest describes the payload for blackout windows. RoomID left
// empty scopes the window to every room.
type BlackoutRequest struct {
	Name    string    `json:"name" validate:"required"`
	StartAt time.Time `json:"start_at" validate:"required"`
	EndAt   time.Time `json:"end_at" validate:"required"`
	RoomID  string    `json:"room_id"`
}

// HolidayRequest describes the payload for holidays. Dates are inclusive
// calendar days.
type HolidayRequest struct {
	Name      string    `json:"name" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// CalendarService manages the institutional calendar: blackout windows and
// holidays consumed by the admission checks.
type CalendarService struct {
	repo      calendarRepository
	rooms     roomRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService creates a new calendar service instance.
func NewCalendarService(repo calendarRepository, rooms roomRepository, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{repo: repo, rooms: rooms, validator: validate, logger: logger}
}

// ListBlackouts returns every blackout window.
func (s *CalendarService) ListBlackouts(ctx context.Context) ([]models.BlackoutWindow, error) {
	blackouts, err := s.repo.ListBlackouts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list blackout windows")
	}
	return blackouts, nil
}

// CreateBlackout registers a new blackout window.
func (s *CalendarService) CreateBlackout(ctx context.Context, req BlackoutRequest) (*models.BlackoutWindow, error) {
	if err := s.validateBlackout(ctx, req); err != nil {
		return nil, err
	}

	blackout := &models.BlackoutWindow{
		Name:    req.Name,
		StartAt: req.StartAt,
		EndAt:   req.EndAt,
	}
	if req.RoomID != "" {
		blackout.RoomID = &req.RoomID
	}

	if err := s.repo.CreateBlackout(ctx, blackout); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create blackout window")
	}
	s.logger.Info("blackout window created", zap.String("blackout_id", blackout.ID), zap.String("name", blackout.Name))
	return blackout, nil
}

// UpdateBlackout modifies an existing blackout window. Existing allocations
// inside the new window stay committed; the window only constrains future
// admissions.
func (s *CalendarService) UpdateBlackout(ctx context.Context, id string, req BlackoutRequest) (*models.BlackoutWindow, error) {
	if err := s.validateBlackout(ctx, req); err != nil {
		return nil, err
	}

	blackout, err := s.repo.FindBlackoutByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "blackout window not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load blackout window")
	}

	blackout.Name = req.Name
	blackout.StartAt = req.StartAt
	blackout.EndAt = req.EndAt
	blackout.RoomID = nil
	if req.RoomID != "" {
		blackout.RoomID = &req.RoomID
	}

	if err := s.repo.UpdateBlackout(ctx, blackout); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update blackout window")
	}
	return blackout, nil
}

// DeleteBlackout removes a blackout window.
func (s *CalendarService) DeleteBlackout(ctx context.Context, id string) error {
	if _, err := s.repo.FindBlackoutByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "blackout window not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load blackout window")
	}
	if err := s.repo.DeleteBlackout(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete blackout window")
	}
	return nil
}

// ListHolidays returns every holiday.
func (s *CalendarService) ListHolidays(ctx context.Context) ([]models.Holiday, error) {
	holidays, err := s.repo.ListHolidays(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list holidays")
	}
	return holidays, nil
}

// CreateHoliday registers a new holiday.
func (s *CalendarService) CreateHoliday(ctx context.Context, req HolidayRequest) (*models.Holiday, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid holiday payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not precede start_date")
	}

	holiday := &models.Holiday{
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}

	if err := s.repo.CreateHoliday(ctx, holiday); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create holiday")
	}
	s.logger.Info("holiday created", zap.String("holiday_id", holiday.ID), zap.String("name", holiday.Name))
	return holiday, nil
}

// UpdateHoliday modifies an existing holiday.
func (s *CalendarService) UpdateHoliday(ctx context.Context, id string, req HolidayRequest) (*models.Holiday, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid holiday payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not precede start_date")
	}

	holiday, err := s.repo.FindHolidayByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "holiday not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holiday")
	}

	holiday.Name = req.Name
	holiday.StartDate = req.StartDate
	holiday.EndDate = req.EndDate

	if err := s.repo.UpdateHoliday(ctx, holiday); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update holiday")
	}
	return holiday, nil
}

// DeleteHoliday removes a holiday.
func (s *CalendarService) DeleteHoliday(ctx context.Context, id string) error {
	if _, err := s.repo.FindHolidayByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "holiday not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holiday")
	}
	if err := s.repo.DeleteHoliday(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete holiday")
	}
	return nil
}

func (s *CalendarService) validateBlackout(ctx context.Context, req BlackoutRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid blackout payload")
	}
	if !req.StartAt.Before(req.EndAt) {
		return appErrors.Clone(appErrors.ErrValidation, "start_at must be before end_at")
	}
	if req.RoomID != "" && s.rooms != nil {
		if _, err := s.rooms.FindByID(ctx, req.RoomID); err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "room not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
		}
	}
	return nil
}

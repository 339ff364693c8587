package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-scheduler/internal/models"
	"github.com/noah-isme/exam-scheduler/internal/repository"
	"github.com/noah-isme/exam-scheduler/internal/scheduling"
	appErrors "github.com/noah-isme/exam-scheduler/pkg/errors"
)

type allocationRepository interface {
	BeginAdmission(ctx context.Context, roomID string, startAt, endAt time.Time, excludeID string) (repository.Admission, error)
	List(ctx context.Context, filter models.AllocationFilter) ([]models.AllocationDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Allocation, error)
	Delete(ctx context.Context, id string) error
}

type examReader interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
}

type termReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

type calendarReader interface {
	ListBlackoutsForRoom(ctx context.Context, roomID string) ([]models.BlackoutWindow, error)
	ListHolidays(ctx context.Context) ([]models.Holiday, error)
}

type admissionObserver interface {
	ObserveAdmission(outcome string, lockWait time.Duration)
}

type timetableInvalidator interface {
	Invalidate(termID string)
}

// AdmitAllocationRequest describes a candidate allocation. The same payload
// serves creation and edit; edits re-run the full admission check against
// all allocations except the one being replaced.
type AdmitAllocationRequest struct {
	ExamID         string    `json:"exam_id" validate:"required"`
	RoomID         string    `json:"room_id" validate:"required"`
	StartAt        time.Time `json:"start_at" validate:"required"`
	EndAt          time.Time `json:"end_at" validate:"required"`
	AllocatedSeats int       `json:"allocated_seats" validate:"required,min=1"`
}

// AdmissionService coordinates one allocation admission: it snapshots the
// calendar state, opens the locked admission transaction, runs the calendar
// guard and then the capacity ledger over the locked overlap set, and either
// commits the candidate or rolls back with a typed rejection.
type AdmissionService struct {
	allocations allocationRepository
	exams       examReader
	terms       termReader
	calendar    calendarReader
	loc         *time.Location
	validator   *validator.Validate
	logger      *zap.Logger
	observer    admissionObserver
	timetables  timetableInvalidator
}

// NewAdmissionService creates a new admission service instance.
func NewAdmissionService(allocations allocationRepository, exams examReader, terms termReader, calendar calendarReader, loc *time.Location, validate *validator.Validate, logger *zap.Logger) *AdmissionService {
	if loc == nil {
		loc = time.UTC
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdmissionService{
		allocations: allocations,
		exams:       exams,
		terms:       terms,
		calendar:    calendar,
		loc:         loc,
		validator:   validate,
		logger:      logger,
	}
}

// SetObserver attaches an admission metrics observer.
func (s *AdmissionService) SetObserver(observer admissionObserver) {
	s.observer = observer
}

// SetTimetableInvalidator attaches the timetable cache invalidation hook.
func (s *AdmissionService) SetTimetableInvalidator(invalidator timetableInvalidator) {
	s.timetables = invalidator
}

// Admit validates and commits a new allocation.
func (s *AdmissionService) Admit(ctx context.Context, req AdmitAllocationRequest) (*models.Allocation, error) {
	return s.admit(ctx, req, "")
}

// Replace re-validates an edited allocation against all others and rewrites
// it wholesale on success.
func (s *AdmissionService) Replace(ctx context.Context, id string, req AdmitAllocationRequest) (*models.Allocation, error) {
	if _, err := s.allocations.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "allocation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load allocation")
	}
	return s.admit(ctx, req, id)
}

func (s *AdmissionService) admit(ctx context.Context, req AdmitAllocationRequest, excludeID string) (*models.Allocation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allocation payload")
	}
	if !req.StartAt.Before(req.EndAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_at must be before end_at")
	}

	exam, err := s.exams.FindByID(ctx, req.ExamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	term, err := s.terms.FindByID(ctx, exam.TermID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if term.IsArchived {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "term is archived")
	}

	// Blackouts and holidays are read-only snapshots; they change only
	// through their own CRUD, never concurrently with admissions.
	blackouts, err := s.calendar.ListBlackoutsForRoom(ctx, req.RoomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load blackout windows")
	}
	holidays, err := s.calendar.ListHolidays(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holidays")
	}

	lockStart := time.Now()
	admission, err := s.allocations.BeginAdmission(ctx, req.RoomID, req.StartAt, req.EndAt, excludeID)
	lockWait := time.Since(lockStart)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		if isLockTimeout(err) {
			s.observe("lock_timeout", lockWait)
			return nil, appErrors.Wrap(err, appErrors.ErrLockTimeout.Code, appErrors.ErrLockTimeout.Status, appErrors.ErrLockTimeout.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open admission transaction")
	}
	defer admission.Rollback() //nolint:errcheck

	window := scheduling.Window{Start: req.StartAt, End: req.EndAt}
	room := admission.Room()

	if rej := scheduling.ValidateCalendar(termWindow(term), req.RoomID, blackoutSnapshots(blackouts), holidaySnapshots(holidays), window, s.loc); rej != nil {
		s.observe(string(rej.Kind), lockWait)
		return nil, s.rejectionError(rej, room)
	}

	candidate := scheduling.Booking{ID: excludeID, Window: window, Seats: req.AllocatedSeats}
	if rej := scheduling.CheckCapacity(room.Capacity, bookings(admission.Overlapping()), candidate); rej != nil {
		s.observe(string(rej.Kind), lockWait)
		return nil, s.rejectionError(rej, room)
	}

	allocation := &models.Allocation{
		ExamID:         req.ExamID,
		RoomID:         req.RoomID,
		StartAt:        req.StartAt,
		EndAt:          req.EndAt,
		AllocatedSeats: req.AllocatedSeats,
	}
	if err := admission.Commit(ctx, allocation, excludeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "allocation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit allocation")
	}

	s.observe("admitted", lockWait)
	s.invalidateTimetable(term.ID)
	s.logger.Info("allocation admitted",
		zap.String("allocation_id", allocation.ID),
		zap.String("room_id", allocation.RoomID),
		zap.String("exam_id", allocation.ExamID),
		zap.Int("seats", allocation.AllocatedSeats),
	)
	return allocation, nil
}

// List returns paginated allocation details.
func (s *AdmissionService) List(ctx context.Context, filter models.AllocationFilter) ([]models.AllocationDetail, *models.Pagination, error) {
	allocations, total, err := s.allocations.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list allocations")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return allocations, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns an allocation by ID.
func (s *AdmissionService) Get(ctx context.Context, id string) (*models.Allocation, error) {
	allocation, err := s.allocations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "allocation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load allocation")
	}
	return allocation, nil
}

// Delete removes an allocation. Freeing seats cannot violate the capacity
// invariant, so no admission check runs.
func (s *AdmissionService) Delete(ctx context.Context, id string) error {
	allocation, err := s.allocations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "allocation not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load allocation")
	}
	if err := s.allocations.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete allocation")
	}

	if exam, err := s.exams.FindByID(ctx, allocation.ExamID); err == nil {
		s.invalidateTimetable(exam.TermID)
	}
	return nil
}

// isLockTimeout reports whether waiting on the room lock was cut short:
// either the caller's context expired, or the session lock_timeout fired
// server-side (55P03 lock_not_available, 57014 query_canceled).
func isLockTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "55P03" || pqErr.Code == "57014"
	}
	return false
}

func (s *AdmissionService) observe(outcome string, lockWait time.Duration) {
	if s.observer != nil {
		s.observer.ObserveAdmission(outcome, lockWait)
	}
}

func (s *AdmissionService) invalidateTimetable(termID string) {
	if s.timetables != nil {
		s.timetables.Invalidate(termID)
	}
}

func (s *AdmissionService) rejectionError(rej *scheduling.Rejection, room models.Room) error {
	switch rej.Kind {
	case scheduling.KindOutsideTermWindow:
		return appErrors.WithDetails(appErrors.ErrOutsideTermWindow, "", map[string]interface{}{
			"term_id": rej.ConflictID,
		})
	case scheduling.KindBlackoutConflict:
		return appErrors.WithDetails(appErrors.ErrBlackoutConflict, "", map[string]interface{}{
			"blackout_id": rej.ConflictID,
		})
	case scheduling.KindHolidayConflict:
		return appErrors.WithDetails(appErrors.ErrHolidayConflict, "", map[string]interface{}{
			"holiday_id": rej.ConflictID,
		})
	case scheduling.KindCapacityExceeded:
		return appErrors.WithDetails(appErrors.ErrCapacityExceeded,
			fmt.Sprintf("room %s would hold %d seats at %s, capacity is %d", room.Name, rej.Total, rej.At.Format(time.RFC3339), room.Capacity),
			map[string]interface{}{
				"timestamp":     rej.At.Format(time.RFC3339Nano),
				"running_total": rej.Total,
				"capacity":      room.Capacity,
			})
	default:
		return appErrors.Clone(appErrors.ErrInternal, "unknown rejection kind")
	}
}

func termWindow(term *models.Term) scheduling.TermWindow {
	return scheduling.TermWindow{ID: term.ID, FirstDay: term.StartDate, LastDay: term.EndDate}
}

func blackoutSnapshots(blackouts []models.BlackoutWindow) []scheduling.Blackout {
	out := make([]scheduling.Blackout, 0, len(blackouts))
	for _, b := range blackouts {
		roomID := ""
		if b.RoomID != nil {
			roomID = *b.RoomID
		}
		out = append(out, scheduling.Blackout{
			ID:     b.ID,
			RoomID: roomID,
			Window: scheduling.Window{Start: b.StartAt, End: b.EndAt},
		})
	}
	return out
}

func holidaySnapshots(holidays []models.Holiday) []scheduling.HolidayRange {
	out := make([]scheduling.HolidayRange, 0, len(holidays))
	for _, h := range holidays {
		out = append(out, scheduling.HolidayRange{ID: h.ID, FirstDay: h.StartDate, LastDay: h.EndDate})
	}
	return out
}

func bookings(allocations []models.Allocation) []scheduling.Booking {
	out := make([]scheduling.Booking, 0, len(allocations))
	for _, a := range allocations {
		out = append(out, scheduling.Booking{
			ID:     a.ID,
			Window: scheduling.Window{Start: a.StartAt, End: a.EndAt},
			Seats:  a.AllocatedSeats,
		})
	}
	return out
}

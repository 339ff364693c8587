package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-scheduler/internal/models"
	appErrors "github.com/noah-isme/exam-scheduler/pkg/errors"
)

type examRepository interface {
	List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error)
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	ExistsByCourseCode(ctx context.Context, termID, courseCode, excludeID string) (bool, error)
	Create(ctx context.Context, exam *models.Exam) error
	Update(ctx context.Context, exam *models.Exam) error
	Delete(ctx context.Context, id string) error
	CountAllocations(ctx context.Context, id string) (int, error)
}

// CreateExamRequest describes the payload for defining exam sittings.
type CreateExamRequest struct {
	Title            string `json:"title" validate:"required"`
	CourseCode       string `json:"course_code" validate:"required"`
	TermID           string `json:"term_id" validate:"required"`
	ExpectedStudents int    `json:"expected_students" validate:"required,min=1"`
	DurationMinutes  int    `json:"duration_minutes" validate:"required,min=15"`
}

// UpdateExamRequest updates mutable fields on an exam.
type UpdateExamRequest struct {
	Title            string `json:"title" validate:"required"`
	CourseCode       string `json:"course_code" validate:"required"`
	ExpectedStudents int    `json:"expected_students" validate:"required,min=1"`
	DurationMinutes  int    `json:"duration_minutes" validate:"required,min=15"`
}

// ExamService orchestrates exam definition workflows.
type ExamService struct {
	repo      examRepository
	terms     termReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamService creates a new exam service instance.
func NewExamService(repo examRepository, terms termReader, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{repo: repo, terms: terms, validator: validate, logger: logger}
}

// List returns paginated exams.
func (s *ExamService) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, *models.Pagination, error) {
	exams, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return exams, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns an exam by ID.
func (s *ExamService) Get(ctx context.Context, id string) (*models.Exam, error) {
	exam, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return exam, nil
}

// Create defines a new exam sitting in a term.
func (s *ExamService) Create(ctx context.Context, req CreateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}

	term, err := s.terms.FindByID(ctx, req.TermID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if term.IsArchived {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "term is archived")
	}

	exists, err := s.repo.ExistsByCourseCode(ctx, req.TermID, req.CourseCode, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course already has an exam in this term")
	}

	exam := &models.Exam{
		Title:            req.Title,
		CourseCode:       req.CourseCode,
		TermID:           req.TermID,
		ExpectedStudents: req.ExpectedStudents,
		DurationMinutes:  req.DurationMinutes,
	}

	if err := s.repo.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	return exam, nil
}

// Update modifies an exam definition. The term binding never changes; move
// an exam by deleting and recreating it.
func (s *ExamService) Update(ctx context.Context, id string, req UpdateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}

	exam, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	exists, err := s.repo.ExistsByCourseCode(ctx, exam.TermID, req.CourseCode, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course already has an exam in this term")
	}

	exam.Title = req.Title
	exam.CourseCode = req.CourseCode
	exam.ExpectedStudents = req.ExpectedStudents
	exam.DurationMinutes = req.DurationMinutes

	if err := s.repo.Update(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam")
	}
	return exam, nil
}

// Delete removes an exam without allocations.
func (s *ExamService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	count, err := s.repo.CountAllocations(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check exam allocations")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "exam has allocations associated")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exam")
	}
	return nil
}

package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-scheduler/internal/models"
	appErrors "github.com/noah-isme/exam-scheduler/pkg/errors"
	"github.com/noah-isme/exam-scheduler/pkg/export"
)

type timetableProvider interface {
	Get(ctx context.Context, termID string) (*models.Timetable, error)
}

// ExportResult carries a rendered document and its HTTP metadata.
type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ExportService renders term timetables as downloadable CSV or PDF files.
type ExportService struct {
	timetables timetableProvider
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	logger     *zap.Logger
}

// NewExportService creates a new export service instance.
func NewExportService(timetables timetableProvider, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		timetables: timetables,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		logger:     logger,
	}
}

// ExportTimetable renders the term timetable in the requested format.
// Supported formats are "csv" and "pdf".
func (s *ExportService) ExportTimetable(ctx context.Context, termID, format string) (*ExportResult, error) {
	timetable, err := s.timetables.Get(ctx, termID)
	if err != nil {
		return nil, err
	}

	dataset := timetableDataset(timetable)
	stamp := time.Now().UTC().Format("20060102")

	switch strings.ToLower(format) {
	case "csv":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render CSV timetable")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("timetable-%s-%s.csv", termID, stamp),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	case "pdf":
		content, err := s.pdf.Render(dataset, timetable.Label)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render PDF timetable")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("timetable-%s-%s.pdf", termID, stamp),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format, use csv or pdf")
	}
}

func timetableDataset(timetable *models.Timetable) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"Room", "Course", "Exam", "Start", "End", "Seats", "Capacity"},
	}
	for _, room := range timetable.Rooms {
		for _, entry := range room.Allocations {
			dataset.Rows = append(dataset.Rows, []string{
				room.RoomName,
				entry.CourseCode,
				entry.ExamTitle,
				entry.StartAt.UTC().Format(time.RFC3339),
				entry.EndAt.UTC().Format(time.RFC3339),
				strconv.Itoa(entry.AllocatedSeats),
				strconv.Itoa(room.Capacity),
			})
		}
	}
	return dataset
}

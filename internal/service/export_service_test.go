package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-scheduler/internal/models"
	appErrors "github.com/noah-isme/exam-scheduler/pkg/errors"
)

type staticTimetableProvider struct{ timetable *models.Timetable }

func (p *staticTimetableProvider) Get(context.Context, string) (*models.Timetable, error) {
	return p.timetable, nil
}

func exportFixture() *ExportService {
	day := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)
	timetable := &models.Timetable{
		TermID: "term-1",
		Label:  "Fall 2025 (2025-FALL)",
		Rooms: []models.TimetableRoom{{
			RoomID:   "room-1",
			RoomName: "Hall A",
			Capacity: 100,
			Allocations: []models.TimetableEntry{{
				ID:             "alloc-1",
				ExamTitle:      "Algorithms Final",
				CourseCode:     "CS301",
				StartAt:        day.Add(9 * time.Hour),
				EndAt:          day.Add(11 * time.Hour),
				AllocatedSeats: 60,
			}},
		}},
	}
	return NewExportService(&staticTimetableProvider{timetable: timetable}, zap.NewNop())
}

func TestExportTimetableCSV(t *testing.T) {
	svc := exportFixture()

	result, err := svc.ExportTimetable(context.Background(), "term-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasSuffix(result.FileName, ".csv"))

	body := string(result.Content)
	assert.Contains(t, body, "Room,Course,Exam,Start,End,Seats,Capacity")
	assert.Contains(t, body, "Hall A,CS301,Algorithms Final,2025-10-06T09:00:00Z,2025-10-06T11:00:00Z,60,100")
}

func TestExportTimetablePDF(t *testing.T) {
	svc := exportFixture()

	result, err := svc.ExportTimetable(context.Background(), "term-1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Content), "%PDF"))
}

func TestExportTimetableUnknownFormat(t *testing.T) {
	svc := exportFixture()

	_, err := svc.ExportTimetable(context.Background(), "term-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

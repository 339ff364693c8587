package service

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-scheduler/internal/models"
	"github.com/noah-isme/exam-scheduler/internal/repository"
	appErrors "github.com/noah-isme/exam-scheduler/pkg/errors"
)

// memAllocationStore emulates the allocation store's admission contract in
// memory. A single mutex stands in for the room row lock: it is acquired in
// BeginAdmission and held until Commit or Rollback, so concurrent admissions
// for the same store serialize exactly as they would against Postgres.
type memAllocationStore struct {
	mu          sync.Mutex
	room        models.Room
	allocations map[string]models.Allocation
	nextID      int

	beginErr error  // returned from BeginAdmission when set
	onLocked func() // runs under the lock, before the overlap read
}

func newMemAllocationStore(room models.Room) *memAllocationStore {
	return &memAllocationStore{room: room, allocations: make(map[string]models.Allocation)}
}

type memAdmission struct {
	store       *memAllocationStore
	overlapping []models.Allocation
	done        bool
}

func (s *memAllocationStore) BeginAdmission(ctx context.Context, roomID string, startAt, endAt time.Time, excludeID string) (repository.Admission, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}

	// Block on the lock the way a room-row FOR UPDATE would, giving up when
	// the caller's context expires.
	locked := make(chan struct{})
	go func() {
		s.mu.Lock()
		close(locked)
	}()
	select {
	case <-locked:
	case <-ctx.Done():
		go func() {
			<-locked
			s.mu.Unlock()
		}()
		return nil, ctx.Err()
	}

	if s.onLocked != nil {
		s.onLocked()
	}
	if roomID != s.room.ID {
		s.mu.Unlock()
		return nil, sql.ErrNoRows
	}
	var overlapping []models.Allocation
	for _, a := range s.allocations {
		if a.ID == excludeID {
			continue
		}
		if a.StartAt.Before(endAt) && startAt.Before(a.EndAt) {
			overlapping = append(overlapping, a)
		}
	}
	return &memAdmission{store: s, overlapping: overlapping}, nil
}

func (a *memAdmission) Room() models.Room                { return a.store.room }
func (a *memAdmission) Overlapping() []models.Allocation { return a.overlapping }

func (a *memAdmission) Commit(_ context.Context, allocation *models.Allocation, replaceID string) error {
	if a.done {
		return sql.ErrTxDone
	}
	a.done = true
	defer a.store.mu.Unlock()
	if replaceID != "" {
		if _, ok := a.store.allocations[replaceID]; !ok {
			return sql.ErrNoRows
		}
		allocation.ID = replaceID
	} else {
		a.store.nextID++
		allocation.ID = fmt.Sprintf("alloc-%d", a.store.nextID)
	}
	a.store.allocations[allocation.ID] = *allocation
	return nil
}

func (a *memAdmission) Rollback() error {
	if a.done {
		return nil
	}
	a.done = true
	a.store.mu.Unlock()
	return nil
}

func (s *memAllocationStore) List(context.Context, models.AllocationFilter) ([]models.AllocationDetail, int, error) {
	return nil, 0, nil
}

func (s *memAllocationStore) FindByID(_ context.Context, id string) (*models.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.allocations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (s *memAllocationStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.allocations, id)
	return nil
}

type memExamReader struct{ exams map[string]models.Exam }

func (r *memExamReader) FindByID(_ context.Context, id string) (*models.Exam, error) {
	e, ok := r.exams[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

type memTermReader struct{ terms map[string]models.Term }

func (r *memTermReader) FindByID(_ context.Context, id string) (*models.Term, error) {
	t, ok := r.terms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

type memCalendarReader struct {
	blackouts []models.BlackoutWindow
	holidays  []models.Holiday
}

func (r *memCalendarReader) ListBlackoutsForRoom(_ context.Context, roomID string) ([]models.BlackoutWindow, error) {
	var out []models.BlackoutWindow
	for _, b := range r.blackouts {
		if b.AppliesTo(roomID) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memCalendarReader) ListHolidays(context.Context) ([]models.Holiday, error) {
	return r.holidays, nil
}

type admissionFixture struct {
	service  *AdmissionService
	store    *memAllocationStore
	calendar *memCalendarReader
}

func newAdmissionFixture(t *testing.T, capacity int) *admissionFixture {
	t.Helper()
	store := newMemAllocationStore(models.Room{ID: "room-1", Name: "Hall A", Capacity: capacity})
	exams := &memExamReader{exams: map[string]models.Exam{
		"exam-1": {ID: "exam-1", Title: "Algorithms Final", TermID: "term-1"},
	}}
	terms := &memTermReader{terms: map[string]models.Term{
		"term-1": {
			ID:          "term-1",
			Name:        "Fall 2025",
			StartDate:   time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
			EndDate:     time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC),
			IsPublished: true,
		},
	}}
	calendar := &memCalendarReader{}
	svc := NewAdmissionService(store, exams, terms, calendar, time.UTC, nil, zap.NewNop())
	return &admissionFixture{service: svc, store: store, calendar: calendar}
}

func allocationRequest(start, end time.Time, seats int) AdmitAllocationRequest {
	return AdmitAllocationRequest{
		ExamID:         "exam-1",
		RoomID:         "room-1",
		StartAt:        start,
		EndAt:          end,
		AllocatedSeats: seats,
	}
}

func TestAdmitOverlappingWithinCapacity(t *testing.T) {
	fx := newAdmissionFixture(t, 100)
	ctx := context.Background()

	day := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)
	first, err := fx.service.Admit(ctx, allocationRequest(day.Add(9*time.Hour), day.Add(11*time.Hour), 50))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	second, err := fx.service.Admit(ctx, allocationRequest(day.Add(10*time.Hour), day.Add(12*time.Hour), 50))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAdmitCapacityExceededCarriesDiagnostics(t *testing.T) {
	fx := newAdmissionFixture(t, 100)
	ctx := context.Background()

	day := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)
	_, err := fx.service.Admit(ctx, allocationRequest(day.Add(9*time.Hour), day.Add(11*time.Hour), 60))
	require.NoError(t, err)
	_, err = fx.service.Admit(ctx, allocationRequest(day.Add(10*time.Hour), day.Add(12*time.Hour), 30))
	require.NoError(t, err)

	_, err = fx.service.Admit(ctx, allocationRequest(day.Add(10*time.Hour+30*time.Minute), day.Add(11*time.Hour+30*time.Minute), 20))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErr.Code)
	assert.Equal(t, day.Add(10*time.Hour+30*time.Minute).Format(time.RFC3339Nano), appErr.Details["timestamp"])
	assert.Equal(t, 110, appErr.Details["running_total"])
	assert.Equal(t, 100, appErr.Details["capacity"])
}

func TestAdmitBoundaryTouchDoesNotOverlap(t *testing.T) {
	fx := newAdmissionFixture(t, 100)
	ctx := context.Background()

	day := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)
	_, err := fx.service.Admit(ctx, allocationRequest(day.Add(9*time.Hour), day.Add(11*time.Hour), 100))
	require.NoError(t, err)

	_, err = fx.service.Admit(ctx, allocationRequest(day.Add(11*time.Hour), day.Add(13*time.Hour), 100))
	assert.NoError(t, err)
}

func TestAdmitCalendarChecksPrecedeCapacity(t *testing.T) {
	fx := newAdmissionFixture(t, 10)
	ctx := context.Background()

	day := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)
	fx.calendar.blackouts = []models.BlackoutWindow{{
		ID:      "blk-1",
		Name:    "Maintenance",
		StartAt: day.Add(8 * time.Hour),
		EndAt:   day.Add(18 * time.Hour),
	}}

	// The window both overlaps the blackout and would blow past capacity.
	// The blackout must win.
	_, err := fx.service.Admit(ctx, allocationRequest(day.Add(9*time.Hour), day.Add(11*time.Hour), 500))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrBlackoutConflict.Code, appErr.Code)
	assert.Equal(t, "blk-1", appErr.Details["blackout_id"])
}

func TestAdmitRejectedOutsideTermWindow(t *testing.T) {
	fx := newAdmissionFixture(t, 100)
	ctx := context.Background()

	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	_, err := fx.service.Admit(ctx, allocationRequest(day.Add(9*time.Hour), day.Add(11*time.Hour), 10))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrOutsideTermWindow.Code, appErr.Code)
	assert.Equal(t, "term-1", appErr.Details["term_id"])
}

func TestAdmitHolidayConflict(t *testing.T) {
	fx := newAdmissionFixture(t, 100)
	ctx := context.Background()

	fx.calendar.holidays = []models.Holiday{{
		ID:        "hol-1",
		Name:      "Midterm Break",
		StartDate: time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 10, 12, 0, 0, 0, 0, time.UTC),
	}}

	// Straddling the last holiday day into the next is still a conflict.
	start := time.Date(2025, 10, 12, 22, 0, 0, 0, time.UTC)
	_, err := fx.service.Admit(ctx, allocationRequest(start, start.Add(4*time.Hour), 10))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrHolidayConflict.Code, appErrors.FromError(err).Code)

	// Starting at midnight after the holiday ends is fine.
	start = time.Date(2025, 10, 13, 0, 0, 0, 0, time.UTC)
	_, err = fx.service.Admit(ctx, allocationRequest(start, start.Add(2*time.Hour), 10))
	assert.NoError(t, err)
}

func TestAdmitRejectionIsIdempotent(t *testing.T) {
	fx := newAdmissionFixture(t, 100)
	ctx := context.Background()

	day := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)
	_, err := fx.service.Admit(ctx, allocationRequest(day.Add(9*time.Hour), day.Add(11*time.Hour), 80))
	require.NoError(t, err)

	req := allocationRequest(day.Add(10*time.Hour), day.Add(12*time.Hour), 30)
	for i := 0; i < 3; i++ {
		_, err = fx.service.Admit(ctx, req)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErrors.FromError(err).Code)
	}
	assert.Len(t, fx.store.allocations, 1)
}

func TestReplaceExcludesOwnSeats(t *testing.T) {
	fx := newAdmissionFixture(t, 100)
	ctx := context.Background()

	day := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)
	original, err := fx.service.Admit(ctx, allocationRequest(day.Add(9*time.Hour), day.Add(11*time.Hour), 90))
	require.NoError(t, err)

	// Shifting the same allocation by 30 minutes must not double-count its
	// own 90 seats against the room.
	updated, err := fx.service.Replace(ctx, original.ID, allocationRequest(day.Add(9*time.Hour+30*time.Minute), day.Add(11*time.Hour+30*time.Minute), 90))
	require.NoError(t, err)
	assert.Equal(t, original.ID, updated.ID)
	assert.Len(t, fx.store.allocations, 1)
}

func TestAdmitArchivedTermRefused(t *testing.T) {
	fx := newAdmissionFixture(t, 100)
	ctx := context.Background()

	store := newMemAllocationStore(models.Room{ID: "room-1", Name: "Hall A", Capacity: 100})
	terms := &memTermReader{terms: map[string]models.Term{
		"term-1": {ID: "term-1", IsArchived: true,
			StartDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)},
	}}
	exams := &memExamReader{exams: map[string]models.Exam{"exam-1": {ID: "exam-1", TermID: "term-1"}}}
	svc := NewAdmissionService(store, exams, terms, fx.calendar, time.UTC, nil, zap.NewNop())

	day := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)
	_, err := svc.Admit(ctx, allocationRequest(day.Add(9*time.Hour), day.Add(11*time.Hour), 10))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestAdmitValidation(t *testing.T) {
	fx := newAdmissionFixture(t, 100)
	ctx := context.Background()

	day := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)

	_, err := fx.service.Admit(ctx, allocationRequest(day.Add(11*time.Hour), day.Add(9*time.Hour), 10))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req := allocationRequest(day.Add(9*time.Hour), day.Add(11*time.Hour), 10)
	req.RoomID = ""
	_, err = fx.service.Admit(ctx, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAdmitSessionLockTimeoutMapsToLockTimeout(t *testing.T) {
	fx := newAdmissionFixture(t, 100)
	fx.store.beginErr = fmt.Errorf("lock room room-1: %w", &pq.Error{Code: "55P03"})

	day := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)
	_, err := fx.service.Admit(context.Background(), allocationRequest(day.Add(9*time.Hour), day.Add(11*time.Hour), 10))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrLockTimeout.Code, appErr.Code)
	assert.Empty(t, fx.store.allocations)
}

func TestAdmitCancelledWhileWaitingForRoomLock(t *testing.T) {
	fx := newAdmissionFixture(t, 100)

	// Another writer holds the room lock for the whole attempt.
	fx.store.mu.Lock()
	defer fx.store.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	day := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)
	_, err := fx.service.Admit(ctx, allocationRequest(day.Add(9*time.Hour), day.Add(11*time.Hour), 10))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrLockTimeout.Code, appErrors.FromError(err).Code)
	assert.Empty(t, fx.store.allocations)
}

func TestReplaceVanishedAllocationNotReportedAdmitted(t *testing.T) {
	fx := newAdmissionFixture(t, 100)
	ctx := context.Background()

	day := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)
	original, err := fx.service.Admit(ctx, allocationRequest(day.Add(9*time.Hour), day.Add(11*time.Hour), 50))
	require.NoError(t, err)

	// A concurrent delete lands after the existence check but before the
	// admission transaction commits.
	fx.store.onLocked = func() {
		delete(fx.store.allocations, original.ID)
	}

	_, err = fx.service.Replace(ctx, original.ID, allocationRequest(day.Add(10*time.Hour), day.Add(12*time.Hour), 50))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, fx.store.allocations)
}

// TestAdmitConcurrentWritersNeverOverflow hammers one room from many
// goroutines and then sweeps the committed state: at no instant may the
// seat total exceed capacity, no matter how the admissions interleaved.
func TestAdmitConcurrentWritersNeverOverflow(t *testing.T) {
	const (
		capacity = 100
		writers  = 16
		attempts = 25
	)
	fx := newAdmissionFixture(t, capacity)
	day := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < attempts; i++ {
				startOffset := time.Duration(8+rng.Intn(8)) * time.Hour
				length := time.Duration(1+rng.Intn(3)) * time.Hour
				seats := 10 + rng.Intn(60)
				//nolint:errcheck // rejections are expected under contention
				fx.service.Admit(context.Background(), allocationRequest(day.Add(startOffset), day.Add(startOffset+length), seats))
			}
		}(int64(w + 1))
	}
	wg.Wait()

	committed := make([]models.Allocation, 0, len(fx.store.allocations))
	for _, a := range fx.store.allocations {
		committed = append(committed, a)
	}
	require.NotEmpty(t, committed)

	// Demand only changes at window starts, so checking each start instant
	// covers every point in time.
	for _, probe := range committed {
		total := 0
		for _, a := range committed {
			if !a.StartAt.After(probe.StartAt) && probe.StartAt.Before(a.EndAt) {
				total += a.AllocatedSeats
			}
		}
		assert.LessOrEqualf(t, total, capacity, "overflow of %d seats at %s", total-capacity, probe.StartAt)
	}
}

package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-scheduler/internal/models"
	appErrors "github.com/noah-isme/exam-scheduler/pkg/errors"
)

type memDetailReader struct {
	mu      sync.Mutex
	details []models.AllocationDetail
	calls   int
}

func (r *memDetailReader) ListDetailsByTerm(context.Context, string) ([]models.AllocationDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls += 1
	return r.details, nil
}

func (r *memDetailReader) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type memRoomReader struct{ rooms map[string]models.Room }

func (r *memRoomReader) FindByID(_ context.Context, id string) (*models.Room, error) {
	room, ok := r.rooms[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
	}
	return &room, nil
}

// memCache mimics the JSON round trip the Redis cache performs.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func timetableFixture() (*TimetableService, *memDetailReader, *memCache) {
	day := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)
	details := []models.AllocationDetail{
		{
			Allocation: models.Allocation{
				ID: "alloc-1", ExamID: "exam-1", RoomID: "room-1",
				StartAt: day.Add(13 * time.Hour), EndAt: day.Add(15 * time.Hour), AllocatedSeats: 40,
			},
			ExamTitle: "Linear Algebra Final", CourseCode: "MATH201", RoomName: "Hall A",
		},
		{
			Allocation: models.Allocation{
				ID: "alloc-2", ExamID: "exam-2", RoomID: "room-1",
				StartAt: day.Add(9 * time.Hour), EndAt: day.Add(11 * time.Hour), AllocatedSeats: 60,
			},
			ExamTitle: "Algorithms Final", CourseCode: "CS301", RoomName: "Hall A",
		},
	}
	reader := &memDetailReader{details: details}
	rooms := &memRoomReader{rooms: map[string]models.Room{
		"room-1": {ID: "room-1", Name: "Hall A", Capacity: 100},
	}}
	terms := &memTermReader{terms: map[string]models.Term{
		"term-1": {ID: "term-1", Name: "Fall 2025", Code: "2025-FALL", IsPublished: true},
		"term-2": {ID: "term-2", Name: "Spring 2026", Code: "2026-SPR"},
	}}
	cache := newMemCache()
	svc := NewTimetableService(reader, terms, rooms, cache, TimetableOptions{CacheTTL: time.Minute}, zap.NewNop())
	return svc, reader, cache
}

func TestTimetableGetOrdersEntriesByStart(t *testing.T) {
	svc, _, _ := timetableFixture()

	timetable, err := svc.Get(context.Background(), "term-1")
	require.NoError(t, err)
	require.Len(t, timetable.Rooms, 1)

	room := timetable.Rooms[0]
	assert.Equal(t, "Hall A", room.RoomName)
	assert.Equal(t, 100, room.Capacity)
	require.Len(t, room.Allocations, 2)
	assert.Equal(t, "CS301", room.Allocations[0].CourseCode)
	assert.Equal(t, "MATH201", room.Allocations[1].CourseCode)
	assert.Equal(t, "Fall 2025 (2025-FALL)", timetable.Label)
}

func TestTimetableGetServesFromCache(t *testing.T) {
	svc, reader, _ := timetableFixture()
	ctx := context.Background()

	_, err := svc.Get(ctx, "term-1")
	require.NoError(t, err)
	_, err = svc.Get(ctx, "term-1")
	require.NoError(t, err)

	assert.Equal(t, 1, reader.callCount())
}

func TestTimetableInvalidateDropsCacheAndRebuilds(t *testing.T) {
	svc, reader, cache := timetableFixture()
	ctx := context.Background()

	svc.StartWorkers(ctx)
	defer svc.StopWorkers()

	_, err := svc.Get(ctx, "term-1")
	require.NoError(t, err)

	svc.Invalidate("term-1")

	// The refresh worker repopulates the cache in the background.
	require.Eventually(t, func() bool {
		cache.mu.Lock()
		defer cache.mu.Unlock()
		_, ok := cache.entries[timetableKey("term-1")]
		return ok && reader.callCount() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTimetableUnknownTerm(t *testing.T) {
	svc, _, _ := timetableFixture()

	_, err := svc.Get(context.Background(), "term-missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableUnpublishedTermHidden(t *testing.T) {
	svc, reader, _ := timetableFixture()

	_, err := svc.Get(context.Background(), "term-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	// The draft schedule must not even be assembled.
	assert.Equal(t, 0, reader.callCount())
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-scheduler/internal/models"
	appErrors "github.com/noah-isme/exam-scheduler/pkg/errors"
	"github.com/noah-isme/exam-scheduler/pkg/jobs"
)

type allocationDetailReader interface {
	ListDetailsByTerm(ctx context.Context, termID string) ([]models.AllocationDetail, error)
}

type roomReader interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

type timetableCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type cacheObserver interface {
	RecordCacheOperation(hit bool, duration time.Duration)
}

// TimetableService assembles the published per-term timetable. Reads go
// through a cache-aside Redis layer; writes to allocations invalidate the
// cached view and a background worker rebuilds it off the request path.
type TimetableService struct {
	allocations allocationDetailReader
	terms       termReader
	rooms       roomReader
	cache       timetableCache
	ttl         time.Duration
	queue       *jobs.Queue
	logger      *zap.Logger
	observer    cacheObserver
}

// TimetableOptions tunes cache TTL and the refresh worker pool.
type TimetableOptions struct {
	CacheTTL       time.Duration
	RefreshWorkers int
	RefreshBuffer  int
	RefreshRetries int
	RefreshBackoff time.Duration
}

// NewTimetableService creates a new timetable service instance.
func NewTimetableService(allocations allocationDetailReader, terms termReader, rooms roomReader, cache timetableCache, opts TimetableOptions, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	s := &TimetableService{
		allocations: allocations,
		terms:       terms,
		rooms:       rooms,
		cache:       cache,
		ttl:         opts.CacheTTL,
		logger:      logger,
	}
	s.queue = jobs.NewQueue("timetable-refresh", s.handleRefresh, jobs.QueueConfig{
		Workers:    opts.RefreshWorkers,
		BufferSize: opts.RefreshBuffer,
		MaxRetries: opts.RefreshRetries,
		RetryDelay: opts.RefreshBackoff,
		Logger:     logger,
	})
	return s
}

// SetObserver attaches a cache hit/miss observer.
func (s *TimetableService) SetObserver(observer cacheObserver) {
	s.observer = observer
}

// StartWorkers launches the background refresh pool.
func (s *TimetableService) StartWorkers(ctx context.Context) {
	s.queue.Start(ctx)
}

// StopWorkers drains the refresh pool.
func (s *TimetableService) StopWorkers() {
	s.queue.Stop()
}

func timetableKey(termID string) string {
	return "timetable:" + termID
}

func (s *TimetableService) recordCache(hit bool, d time.Duration) {
	if s.observer != nil {
		s.observer.RecordCacheOperation(hit, d)
	}
}

// Get returns the timetable for a term, serving from cache when possible.
func (s *TimetableService) Get(ctx context.Context, termID string) (*models.Timetable, error) {
	if s.cache != nil {
		lookupStart := time.Now()
		var cached models.Timetable
		err := s.cache.Get(ctx, timetableKey(termID), &cached)
		if err == nil {
			s.recordCache(true, time.Since(lookupStart))
			return &cached, nil
		}
		s.recordCache(false, time.Since(lookupStart))
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("timetable cache read failed", zap.String("term_id", termID), zap.Error(err))
		}
	}

	timetable, err := s.build(ctx, termID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, timetableKey(termID), timetable, s.ttl); err != nil {
			s.logger.Warn("timetable cache write failed", zap.String("term_id", termID), zap.Error(err))
		}
	}
	return timetable, nil
}

// Invalidate drops the cached timetable for a term and schedules a rebuild so
// the next read is warm again. Called by the admission path after commits and
// deletes.
func (s *TimetableService) Invalidate(termID string) {
	if s.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.cache.Delete(ctx, timetableKey(termID)); err != nil {
			s.logger.Warn("timetable cache invalidation failed", zap.String("term_id", termID), zap.Error(err))
		}
	}

	job := jobs.Job{ID: uuid.NewString(), Type: "timetable-refresh", Payload: termID}
	if err := s.queue.Enqueue(job); err != nil {
		// Not fatal: the next uncached read rebuilds on demand.
		s.logger.Warn("timetable refresh enqueue failed", zap.String("term_id", termID), zap.Error(err))
	}
}

func (s *TimetableService) handleRefresh(ctx context.Context, job jobs.Job) error {
	termID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected refresh payload %T", job.Payload)
	}

	timetable, err := s.build(ctx, termID)
	if err != nil {
		return err
	}
	if s.cache == nil {
		return nil
	}
	return s.cache.Set(ctx, timetableKey(termID), timetable, s.ttl)
}

func (s *TimetableService) build(ctx context.Context, termID string) (*models.Timetable, error) {
	term, err := s.terms.FindByID(ctx, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	// Draft terms stay hidden from the public view until they are published.
	if !term.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no published timetable for this term")
	}

	details, err := s.allocations.ListDetailsByTerm(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term allocations")
	}

	byRoom := make(map[string]*models.TimetableRoom)
	var roomOrder []string
	for _, d := range details {
		group, ok := byRoom[d.RoomID]
		if !ok {
			capacity := 0
			if room, err := s.rooms.FindByID(ctx, d.RoomID); err == nil {
				capacity = room.Capacity
			}
			group = &models.TimetableRoom{
				RoomID:   d.RoomID,
				RoomName: d.RoomName,
				Capacity: capacity,
			}
			byRoom[d.RoomID] = group
			roomOrder = append(roomOrder, d.RoomID)
		}
		group.Allocations = append(group.Allocations, models.TimetableEntry{
			ID:             d.ID,
			ExamTitle:      d.ExamTitle,
			CourseCode:     d.CourseCode,
			StartAt:        d.StartAt,
			EndAt:          d.EndAt,
			AllocatedSeats: d.AllocatedSeats,
		})
	}

	rooms := make([]models.TimetableRoom, 0, len(roomOrder))
	for _, id := range roomOrder {
		group := byRoom[id]
		sort.Slice(group.Allocations, func(i, j int) bool {
			return group.Allocations[i].StartAt.Before(group.Allocations[j].StartAt)
		})
		rooms = append(rooms, *group)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].RoomName < rooms[j].RoomName })

	return &models.Timetable{
		TermID:      term.ID,
		Label:       fmt.Sprintf("%s (%s)", term.Name, term.Code),
		GeneratedAt: time.Now().UTC(),
		Rooms:       rooms,
	}, nil
}

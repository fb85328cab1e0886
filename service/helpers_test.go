package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BerniceZTT/welfare_end/models"
	"github.com/BerniceZTT/welfare_end/repository"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testInterval() Interval {
	return Interval{Months: 1, DueHour: 9, Location: time.UTC}
}

func newTestEngine(t *testing.T, start time.Time) (*LifecycleEngine, *repository.MemoryFollowUpStore, *fakeClock) {
	t.Helper()
	store := repository.NewMemoryFollowUpStore()
	clock := newFakeClock(start)
	engine := NewLifecycleEngine(store, WithClock(clock.Now), WithInterval(testInterval()))
	return engine, store, clock
}

func validInput(due time.Time) models.CreateFollowUpInput {
	return models.CreateFollowUpInput{
		RecordType:   models.RecordTypeElderly,
		RecordID:     "elderly-001",
		RecordName:   "Lakshmi Devi",
		Title:        "Pension verification visit",
		FollowUpDate: due,
		CreatedBy:    "user-1",
		Classification: models.Classification{
			WardNo:     "12",
			Habitation: "North Colony",
		},
	}
}

func mustCreate(t *testing.T, e *LifecycleEngine, input models.CreateFollowUpInput) *models.FollowUpRecord {
	t.Helper()
	rec, err := e.Create(context.Background(), input)
	require.NoError(t, err)
	return rec
}

func statusPtr(s models.FollowUpStatus) *models.FollowUpStatus {
	return &s
}

// insertFailStore 只让插入失败，用于模拟续建失败
type insertFailStore struct {
	*repository.MemoryFollowUpStore
	err error
}

func (s *insertFailStore) Insert(ctx context.Context, rec *models.FollowUpRecord) error {
	if s.err != nil {
		return s.err
	}
	return s.MemoryFollowUpStore.Insert(ctx, rec)
}

// conflictOnceStore 第一次替换时返回版本冲突
type conflictOnceStore struct {
	*repository.MemoryFollowUpStore
	mu        sync.Mutex
	conflicts int
	replaces  int
}

func (s *conflictOnceStore) Replace(ctx context.Context, rec *models.FollowUpRecord, expectedVersion int64) error {
	s.mu.Lock()
	s.replaces++
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return repository.ErrVersionConflict
	}
	s.mu.Unlock()
	return s.MemoryFollowUpStore.Replace(ctx, rec, expectedVersion)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/BerniceZTT/welfare_end/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRunAt(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC), nextRunAt(now, 1, 0, 0))

	now = time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 11, 1, 0, 0, 0, time.UTC), nextRunAt(now, 1, 0, 0))

	now = time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC), nextRunAt(now, 1, 0, 0))
}

func TestOverdueSyncTaskRefreshesFlags(t *testing.T) {
	engine, store, clock := newTestEngine(t, lifecycleStart)
	ctx := context.Background()
	rec := mustCreate(t, engine, validInput(lifecycleStart.Add(time.Hour)))

	clock.Advance(2 * time.Hour)
	OverdueSyncTask(store, clock.Now)(ctx)

	raw, err := store.FindByID(ctx, rec.ID.Hex())
	require.NoError(t, err)
	assert.True(t, raw.IsOverdue)

	changed, err := store.SyncOverdueFlags(ctx, clock.Now())
	require.NoError(t, err)
	assert.Zero(t, changed)

	overdue := true
	n, err := store.Count(ctx, models.FollowUpFilter{Overdue: &overdue, Now: clock.Now()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestScheduleDailyTaskStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{}, 1)
	ScheduleDailyTaskAt(ctx, 1, 0, 0, func(context.Context) { ran <- struct{}{} })
	cancel()

	select {
	case <-ran:
		t.Fatal("task ran before its scheduled time")
	case <-time.After(20 * time.Millisecond):
	}
}

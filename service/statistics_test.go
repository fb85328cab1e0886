package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BerniceZTT/welfare_end/models"
	"github.com/BerniceZTT/welfare_end/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var statsNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func chartValue(items []models.ChartDataItem, name string) int {
	for _, item := range items {
		if item.Name == name {
			return item.Value
		}
	}
	return -1
}

func chartNames(items []models.ChartDataItem) []string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return names
}

// seedStats 4 条待处理（1 条逾期）、2 条进行中、本月完成 1 条、上月完成 1 条
func seedStats(t *testing.T) (*LifecycleEngine, *repository.MemoryFollowUpStore) {
	t.Helper()
	engine, store, clock := newTestEngine(t, statsNow)
	ctx := context.Background()

	create := func(recordID string, due time.Time) *models.FollowUpRecord {
		in := validInput(due)
		in.RecordID = recordID
		return mustCreate(t, engine, in)
	}

	create("p-1", statsNow.AddDate(0, 0, 5))
	create("p-2", statsNow.AddDate(0, 0, 10))
	create("p-3", statsNow.AddDate(0, 1, 0))
	create("p-overdue", statsNow.AddDate(0, 0, -2))

	for _, id := range []string{"ip-1", "ip-2"} {
		rec := create(id, statsNow.AddDate(0, 0, 7))
		_, err := engine.AddMonthlyUpdate(ctx, rec.ID.Hex(), models.MonthlyUpdateInput{
			Notes: "started", Status: statusPtr(models.StatusInProgress),
		})
		require.NoError(t, err)
	}

	done := create("done-march", statsNow.AddDate(0, 0, 1))
	_, err := engine.Complete(ctx, done.ID.Hex(), "", "user-1")
	require.NoError(t, err)

	clock.Set(time.Date(2025, 2, 20, 10, 0, 0, 0, time.UTC))
	old := create("done-feb", time.Date(2025, 2, 25, 9, 0, 0, 0, time.UTC))
	_, err = engine.Complete(ctx, old.ID.Hex(), "", "user-1")
	require.NoError(t, err)
	clock.Set(statsNow)

	return engine, store
}

func TestStats(t *testing.T) {
	_, store := seedStats(t)
	agg := NewStatisticsAggregator(store, time.UTC, func() time.Time { return statsNow })

	stats, err := agg.Stats(context.Background(), models.StatsScope{})
	require.NoError(t, err)

	assert.Equal(t, int64(6), stats.Total)
	assert.Equal(t, int64(1), stats.Overdue)
	assert.Equal(t, int64(1), stats.CompletedThisMonth)
	assert.True(t, statsNow.Equal(stats.GeneratedAt))

	assert.Equal(t, []string{"Pending", "In Progress", "On Hold", "Completed", "Cancelled"}, chartNames(stats.ByStatus))
	assert.Equal(t, 4, chartValue(stats.ByStatus, "Pending"))
	assert.Equal(t, 2, chartValue(stats.ByStatus, "In Progress"))
	assert.Equal(t, 0, chartValue(stats.ByStatus, "On Hold"))
	assert.Equal(t, 0, chartValue(stats.ByStatus, "Completed"), "completed records are inactive")

	assert.Equal(t, []string{"Health", "Education", "Social Justice"}, chartNames(stats.ByModule))
	assert.Equal(t, 6, chartValue(stats.ByModule, "Health"))
	assert.Equal(t, 0, chartValue(stats.ByModule, "Education"))

	assert.Equal(t, []string{"Low", "Medium", "High", "Urgent"}, chartNames(stats.ByPriority))
	assert.Equal(t, 6, chartValue(stats.ByPriority, "Medium"))
}

func TestStatsScopeFilters(t *testing.T) {
	engine, store := seedStats(t)
	in := validInput(statsNow.AddDate(0, 0, -1))
	in.RecordType = models.RecordTypeStudents
	in.RecordID = "stu-1"
	in.AssignedTo = "teacher-2"
	mustCreate(t, engine, in)

	agg := NewStatisticsAggregator(store, time.UTC, func() time.Time { return statsNow })

	stats, err := agg.Stats(context.Background(), models.StatsScope{Module: models.ModuleEducation})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.Overdue)
	assert.Zero(t, stats.CompletedThisMonth)

	stats, err = agg.Stats(context.Background(), models.StatsScope{AssignedTo: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(6), stats.Total)
	assert.Equal(t, int64(1), stats.CompletedThisMonth)
}

func TestStatsEmptyStore(t *testing.T) {
	agg := NewStatisticsAggregator(repository.NewMemoryFollowUpStore(), time.UTC, func() time.Time { return statsNow })

	stats, err := agg.Stats(context.Background(), models.StatsScope{})
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.Overdue)
	assert.Zero(t, stats.CompletedThisMonth)
	require.Len(t, stats.ByStatus, 5)
	require.Len(t, stats.ByModule, 3)
	require.Len(t, stats.ByPriority, 4)
	for _, item := range append(append(stats.ByStatus, stats.ByModule...), stats.ByPriority...) {
		assert.Zero(t, item.Value, item.Name)
	}
}

// failingCountStore 统计查询失败
type failingCountStore struct {
	*repository.MemoryFollowUpStore
}

func (failingCountStore) Count(ctx context.Context, filter models.FollowUpFilter) (int64, error) {
	return 0, errors.New("count failed")
}

func TestStatsPropagatesStoreError(t *testing.T) {
	store := failingCountStore{repository.NewMemoryFollowUpStore()}
	agg := NewStatisticsAggregator(store, time.UTC, func() time.Time { return statsNow })

	_, err := agg.Stats(context.Background(), models.StatsScope{})
	assert.Error(t, err)
}

func TestMonthRange(t *testing.T) {
	start, end := MonthRange(time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), end)

	ist := time.FixedZone("IST", 5*3600+1800)
	start, _ = MonthRange(time.Date(2025, 2, 28, 20, 0, 0, 0, time.UTC), ist)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, ist), start)
}

func TestFillBucketsKeepsUnknownValues(t *testing.T) {
	out := fillBuckets([]models.ChartDataItem{{Name: "Medium", Value: 2}, {Name: "Legacy", Value: 1}}, priorityNames())
	assert.Equal(t, []string{"Low", "Medium", "High", "Urgent", "Legacy"}, chartNames(out))
	assert.Equal(t, 2, chartValue(out, "Medium"))
	assert.Equal(t, 1, chartValue(out, "Legacy"))
}

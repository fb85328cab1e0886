package service

import (
	"context"
	"time"

	"github.com/BerniceZTT/welfare_end/models"
	"github.com/BerniceZTT/welfare_end/repository"

	"golang.org/x/sync/errgroup"
)

// StatisticsAggregator 跟进统计，只读
type StatisticsAggregator struct {
	store repository.FollowUpStore
	now   func() time.Time
	loc   *time.Location
}

// NewStatisticsAggregator 创建统计器，loc 决定"本月"的边界
func NewStatisticsAggregator(store repository.FollowUpStore, loc *time.Location, now func() time.Time) *StatisticsAggregator {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &StatisticsAggregator{store: store, now: now, loc: loc}
}

// MonthRange 返回 t 所在自然月的 [开始, 下月开始)
func MonthRange(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// Stats 统计范围内的跟进。除本月完成数外只统计有效记录
func (s *StatisticsAggregator) Stats(ctx context.Context, scope models.StatsScope) (*models.FollowUpStats, error) {
	now := s.now()
	active := true
	overdue := true

	base := models.FollowUpFilter{
		Module:     scope.Module,
		AssignedTo: scope.AssignedTo,
		RecordType: scope.RecordType,
		Now:        now,
	}

	activeFilter := base
	activeFilter.IsActive = &active

	overdueFilter := activeFilter
	overdueFilter.Overdue = &overdue

	monthStart, monthEnd := MonthRange(now, s.loc)
	completedFilter := base
	completedFilter.Statuses = []models.FollowUpStatus{models.StatusCompleted}
	completedFilter.CompletedFrom = &monthStart
	completedFilter.CompletedTo = &monthEnd

	stats := &models.FollowUpStats{GeneratedAt: now}
	var byStatus, byModule, byPriority []models.ChartDataItem

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.store.Count(gctx, activeFilter)
		stats.Total = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.Count(gctx, overdueFilter)
		stats.Overdue = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.Count(gctx, completedFilter)
		stats.CompletedThisMonth = n
		return err
	})
	g.Go(func() error {
		items, err := s.store.GroupCount(gctx, activeFilter, "status")
		byStatus = items
		return err
	})
	g.Go(func() error {
		items, err := s.store.GroupCount(gctx, activeFilter, "module")
		byModule = items
		return err
	})
	g.Go(func() error {
		items, err := s.store.GroupCount(gctx, activeFilter, "priority")
		byPriority = items
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.ByStatus = fillBuckets(byStatus, statusNames())
	stats.ByModule = fillBuckets(byModule, moduleNames())
	stats.ByPriority = fillBuckets(byPriority, priorityNames())
	return stats, nil
}

// fillBuckets 按固定顺序输出，缺失的分组补0
func fillBuckets(items []models.ChartDataItem, names []string) []models.ChartDataItem {
	counts := make(map[string]int, len(items))
	for _, item := range items {
		counts[item.Name] += item.Value
	}
	out := make([]models.ChartDataItem, 0, len(names))
	for _, name := range names {
		out = append(out, models.ChartDataItem{Name: name, Value: counts[name]})
		delete(counts, name)
	}
	// 历史数据中的未知取值也保留
	for name, n := range counts {
		out = append(out, models.ChartDataItem{Name: name, Value: n})
	}
	return out
}

func statusNames() []string {
	out := make([]string, 0, len(models.AllStatuses))
	for _, s := range models.AllStatuses {
		out = append(out, string(s))
	}
	return out
}

func moduleNames() []string {
	out := make([]string, 0, len(models.AllModules))
	for _, m := range models.AllModules {
		out = append(out, string(m))
	}
	return out
}

func priorityNames() []string {
	out := make([]string, 0, len(models.AllPriorities))
	for _, p := range models.AllPriorities {
		out = append(out, string(p))
	}
	return out
}

package service

import (
	"context"
	"time"

	"github.com/BerniceZTT/welfare_end/metrics"
	"github.com/BerniceZTT/welfare_end/repository"
	"github.com/BerniceZTT/welfare_end/utils"
)

// nextRunAt 计算下一次在 hour:min:sec 执行的时间
func nextRunAt(now time.Time, hour, min, sec int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, min, sec, 0, now.Location())
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// 每天指定时间执行任务，ctx 结束后退出
func ScheduleDailyTaskAt(ctx context.Context, hour, min, sec int, task func(ctx context.Context)) {
	go func() {
		for {
			wait := time.Until(nextRunAt(time.Now(), hour, min, sec))
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				task(ctx)
			}
		}
	}()
}

// OverdueSyncTask 重算持久化的逾期标记，查询逻辑不依赖该标记
func OverdueSyncTask(store repository.FollowUpStore, now func() time.Time) func(ctx context.Context) {
	return func(ctx context.Context) {
		start := now()
		utils.LogInfo(map[string]interface{}{"time": start}, "开始执行每日逾期标记同步任务")

		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()

		changed, err := store.SyncOverdueFlags(runCtx, start)
		if err != nil {
			utils.LogError(err, nil, "逾期标记同步失败")
			return
		}
		metrics.OverdueSynced.Add(float64(changed))

		utils.LogInfo(map[string]interface{}{
			"changed":  changed,
			"duration": time.Since(start).String(),
		}, "每日逾期标记同步任务完成")
	}
}

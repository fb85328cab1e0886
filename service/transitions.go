package service

import (
	"time"

	"github.com/BerniceZTT/welfare_end/models"
)

// 状态流转表，终态没有出边
var allowedTransitions = map[models.FollowUpStatus][]models.FollowUpStatus{
	models.StatusPending: {
		models.StatusInProgress, models.StatusOnHold, models.StatusCompleted, models.StatusCancelled,
	},
	models.StatusInProgress: {
		models.StatusOnHold, models.StatusCompleted, models.StatusCancelled,
	},
	models.StatusOnHold: {
		models.StatusPending, models.StatusInProgress, models.StatusCompleted, models.StatusCancelled,
	},
}

// CanTransition 判断 from -> to 是否合法，状态不变不算流转
func CanTransition(from, to models.FollowUpStatus) bool {
	if from == to {
		return !from.IsTerminal()
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DeriveOverdue 未结束且跟进日期早于 now 即为逾期
func DeriveOverdue(rec *models.FollowUpRecord, now time.Time) bool {
	if rec == nil || rec.Status.IsTerminal() {
		return false
	}
	return rec.FollowUpDate.Before(now)
}

// Interval 跟进周期
type Interval struct {
	Months   int
	Days     int
	DueHour  int
	Location *time.Location
}

// DefaultInterval 一个月，上午9点
func DefaultInterval() Interval {
	return Interval{Months: 1, DueHour: 9, Location: time.Local}
}

func (iv Interval) location() *time.Location {
	if iv.Location == nil {
		return time.Local
	}
	return iv.Location
}

// Normalize 把时间对齐到当天的固定到期时刻
func (iv Interval) Normalize(t time.Time) time.Time {
	t = t.In(iv.location())
	y, m, d := t.Date()
	return time.Date(y, m, d, iv.DueHour, 0, 0, 0, iv.location())
}

// Next 返回 base 之后一个周期的到期时间，月末日期按目标月最后一天截断
func (iv Interval) Next(base time.Time) time.Time {
	t := addMonthsClamped(base.In(iv.location()), iv.Months)
	if iv.Days != 0 {
		t = t.AddDate(0, 0, iv.Days)
	}
	return iv.Normalize(t)
}

// addMonthsClamped 1月31日加一个月得到2月28日（闰年29日），而不是3月3日
func addMonthsClamped(t time.Time, months int) time.Time {
	if months == 0 {
		return t
	}
	y, m, d := t.Date()
	lastDay := time.Date(y, m+time.Month(months)+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(y, m+time.Month(months), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

package models

import "time"

// 图表数据项
type ChartDataItem struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// FollowUpFilter 跟进记录查询条件，零值字段不参与筛选
type FollowUpFilter struct {
	RecordType RecordType
	RecordID   string
	Module     Module
	Statuses   []FollowUpStatus
	Priority   FollowUpPriority
	AssignedTo string
	WardNo     string
	Habitation string

	// followUpDate 范围（含边界）
	DateFrom *time.Time
	DateTo   *time.Time

	// completedDate 范围，[CompletedFrom, CompletedTo)
	CompletedFrom *time.Time
	CompletedTo   *time.Time

	// Overdue 按 (status, followUpDate, Now) 推导，不读持久化的 isOverdue
	Overdue *bool
	Now     time.Time

	IsActive *bool
	Search   string
}

// Pagination 分页与排序
// MaxPage 页码上限，保证 (page-1)*limit 不溢出
const MaxPage int64 = 100000

type Pagination struct {
	Page      int64
	Limit     int64
	SortBy    string
	SortOrder int // 1 升序, -1 降序
}

// FollowUpPage 分页结果
type FollowUpPage struct {
	Records []FollowUpRecord `json:"records"`
	Total   int64            `json:"total"`
	Page    int64            `json:"page"`
	Limit   int64            `json:"limit"`
}

// StatsScope 统计范围
type StatsScope struct {
	Module     Module     `json:"module,omitempty"`
	AssignedTo string     `json:"assignedTo,omitempty"`
	RecordType RecordType `json:"recordType,omitempty"`
}

// FollowUpStats 跟进统计
type FollowUpStats struct {
	Total              int64           `json:"total"`
	ByStatus           []ChartDataItem `json:"byStatus"`
	Overdue            int64           `json:"overdue"`
	CompletedThisMonth int64           `json:"completedThisMonth"`
	ByModule           []ChartDataItem `json:"byModule"`
	ByPriority         []ChartDataItem `json:"byPriority"`
	GeneratedAt        time.Time       `json:"generatedAt"`
}

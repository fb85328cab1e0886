package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FollowUpPriority 跟进优先级
type FollowUpPriority string

const (
	PriorityLow    FollowUpPriority = "Low"
	PriorityMedium FollowUpPriority = "Medium"
	PriorityHigh   FollowUpPriority = "High"
	PriorityUrgent FollowUpPriority = "Urgent"
)

// AllPriorities 所有优先级，统计时按此顺序输出
var AllPriorities = []FollowUpPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// FollowUpStatus 跟进状态
type FollowUpStatus string

const (
	StatusPending    FollowUpStatus = "Pending"
	StatusInProgress FollowUpStatus = "In Progress"
	StatusCompleted  FollowUpStatus = "Completed"
	StatusCancelled  FollowUpStatus = "Cancelled"
	StatusOnHold     FollowUpStatus = "On Hold"
)

// AllStatuses 所有状态
var AllStatuses = []FollowUpStatus{StatusPending, StatusInProgress, StatusOnHold, StatusCompleted, StatusCancelled}

// IsTerminal 是否终态（完成或取消）
func (s FollowUpStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsValid 状态值是否合法
func (s FollowUpStatus) IsValid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Rank 优先级序号，Low 最小，非法值为 0
func (p FollowUpPriority) Rank() int {
	for i, v := range AllPriorities {
		if v == p {
			return i + 1
		}
	}
	return 0
}

// IsValid 优先级是否合法
func (p FollowUpPriority) IsValid() bool {
	for _, v := range AllPriorities {
		if v == p {
			return true
		}
	}
	return false
}

// Attachment 跟进附件
type Attachment struct {
	Name string `bson:"name" json:"name"`
	URL  string `bson:"url" json:"url"`
}

// MonthlyUpdate 月度跟进记录，只追加不修改
type MonthlyUpdate struct {
	ID          string         `bson:"id" json:"id"`
	Date        time.Time      `bson:"date" json:"date"`
	Notes       string         `bson:"notes" json:"notes"`
	Status      FollowUpStatus `bson:"status" json:"status"`
	UpdatedBy   string         `bson:"updatedBy" json:"updatedBy"`
	Attachments []Attachment   `bson:"attachments,omitempty" json:"attachments,omitempty"`
}

// FollowUpRecord 跟进记录
type FollowUpRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	RecordType RecordType         `bson:"recordType" json:"recordType"`
	RecordID   string             `bson:"recordId" json:"recordId"`
	RecordName string             `bson:"recordName" json:"recordName"`
	Module     Module             `bson:"module" json:"module"`

	Title       string           `bson:"title" json:"title"`
	Description string           `bson:"description" json:"description"`
	Priority    FollowUpPriority `bson:"priority" json:"priority"`
	Status      FollowUpStatus   `bson:"status" json:"status"`

	// PriorityRank 随 priority 写入，用于按严重程度排序
	PriorityRank int `bson:"priorityRank" json:"-"`

	FollowUpDate   time.Time       `bson:"followUpDate" json:"followUpDate"`
	MonthlyUpdates []MonthlyUpdate `bson:"monthlyUpdates" json:"monthlyUpdates"`

	CompletedDate   *time.Time `bson:"completedDate,omitempty" json:"completedDate,omitempty"`
	CompletionNotes string     `bson:"completionNotes,omitempty" json:"completionNotes,omitempty"`

	IsOverdue bool `bson:"isOverdue" json:"isOverdue"`
	IsActive  bool `bson:"isActive" json:"isActive"`

	AssignedTo string `bson:"assignedTo" json:"assignedTo"`
	CreatedBy  string `bson:"createdBy" json:"createdBy"`

	// 来源业务记录的分类信息，仅用于筛选
	WardNo             string   `bson:"wardNo,omitempty" json:"wardNo,omitempty"`
	Habitation         string   `bson:"habitation,omitempty" json:"habitation,omitempty"`
	ProjectResponsible string   `bson:"projectResponsible,omitempty" json:"projectResponsible,omitempty"`
	Tags               []string `bson:"tags,omitempty" json:"tags,omitempty"`
	Category           string   `bson:"category,omitempty" json:"category,omitempty"`

	// 周期续建时指向上一条跟进
	PreviousFollowUpID string `bson:"previousFollowUpId,omitempty" json:"previousFollowUpId,omitempty"`

	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Clone 深拷贝，引擎在副本上修改，写入成功后才替换
func (r *FollowUpRecord) Clone() *FollowUpRecord {
	cp := *r
	if r.MonthlyUpdates != nil {
		cp.MonthlyUpdates = make([]MonthlyUpdate, len(r.MonthlyUpdates))
		for i, u := range r.MonthlyUpdates {
			cp.MonthlyUpdates[i] = u
			if u.Attachments != nil {
				cp.MonthlyUpdates[i].Attachments = append([]Attachment(nil), u.Attachments...)
			}
		}
	}
	if r.Tags != nil {
		cp.Tags = append([]string(nil), r.Tags...)
	}
	if r.CompletedDate != nil {
		t := *r.CompletedDate
		cp.CompletedDate = &t
	}
	return &cp
}

// Classification 从业务记录复制过来的分类字段
type Classification struct {
	WardNo             string   `json:"wardNo"`
	Habitation         string   `json:"habitation"`
	ProjectResponsible string   `json:"projectResponsible"`
	Tags               []string `json:"tags"`
	Category           string   `json:"category"`
}

// CreateFollowUpInput 创建跟进记录的输入
type CreateFollowUpInput struct {
	RecordType         RecordType       `json:"recordType" validate:"required"`
	RecordID           string           `json:"recordId" validate:"required"`
	RecordName         string           `json:"recordName"`
	Module             Module           `json:"module"`
	Title              string           `json:"title" validate:"required,max=200"`
	Description        string           `json:"description" validate:"max=5000"`
	Priority           FollowUpPriority `json:"priority" validate:"omitempty,oneof=Low Medium High Urgent"`
	FollowUpDate       time.Time        `json:"followUpDate" validate:"required"`
	AssignedTo         string           `json:"assignedTo"`
	CreatedBy          string           `json:"createdBy"`
	PreviousFollowUpID string           `json:"previousFollowUpId"`
	Classification
}

// UpdateFollowUpInput 编辑跟进记录，nil 字段不修改
type UpdateFollowUpInput struct {
	Title              *string           `json:"title" validate:"omitempty,min=1,max=200"`
	Description        *string           `json:"description" validate:"omitempty,max=5000"`
	Priority           *FollowUpPriority `json:"priority" validate:"omitempty,oneof=Low Medium High Urgent"`
	Status             *FollowUpStatus   `json:"status"`
	FollowUpDate       *time.Time        `json:"followUpDate"`
	AssignedTo         *string           `json:"assignedTo"`
	WardNo             *string           `json:"wardNo"`
	Habitation         *string           `json:"habitation"`
	ProjectResponsible *string           `json:"projectResponsible"`
	Tags               []string          `json:"tags"`
	Category           *string           `json:"category"`
}

// MonthlyUpdateInput 追加月度跟进的输入
type MonthlyUpdateInput struct {
	Notes       string          `json:"notes" validate:"required"`
	Status      *FollowUpStatus `json:"status"`
	UpdatedBy   string          `json:"updatedBy"`
	Attachments []Attachment    `json:"attachments"`
}

// HistoryEntry 某条业务记录所有跟进的月度记录合并视图
type HistoryEntry struct {
	MonthlyUpdate `bson:",inline"`
	FollowUpID    string `json:"followUpId"`
	FollowUpTitle string `json:"followUpTitle"`
}

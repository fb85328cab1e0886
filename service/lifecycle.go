package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BerniceZTT/welfare_end/metrics"
	"github.com/BerniceZTT/welfare_end/models"
	"github.com/BerniceZTT/welfare_end/repository"
	"github.com/BerniceZTT/welfare_end/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// LifecycleEngine 跟进记录状态机，所有状态变更都经过这里
type LifecycleEngine struct {
	store    repository.FollowUpStore
	locker   RecordLocker
	validate *validator.Validate
	interval Interval
	now      func() time.Time
	// lockWait 等待记录锁的上限
	lockWait time.Duration
}

// EngineOption 引擎选项
type EngineOption func(*LifecycleEngine)

// WithClock 替换时钟，测试用
func WithClock(now func() time.Time) EngineOption {
	return func(e *LifecycleEngine) { e.now = now }
}

// WithLocker 替换记录锁，多实例部署时使用 Redis 锁
func WithLocker(locker RecordLocker) EngineOption {
	return func(e *LifecycleEngine) { e.locker = locker }
}

// WithInterval 设置跟进周期
func WithInterval(iv Interval) EngineOption {
	return func(e *LifecycleEngine) { e.interval = iv }
}

// WithLockWait 设置等待记录锁的上限
func WithLockWait(d time.Duration) EngineOption {
	return func(e *LifecycleEngine) { e.lockWait = d }
}

// NewLifecycleEngine 创建引擎
func NewLifecycleEngine(store repository.FollowUpStore, opts ...EngineOption) *LifecycleEngine {
	e := &LifecycleEngine{
		store:    store,
		locker:   NewKeyedMutex(),
		validate: validator.New(),
		interval: DefaultInterval(),
		now:      time.Now,
		lockWait: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now 当前时间
func (e *LifecycleEngine) Now() time.Time {
	return e.now()
}

// Interval 当前跟进周期
func (e *LifecycleEngine) Interval() Interval {
	return e.interval
}

// Create 创建跟进记录
func (e *LifecycleEngine) Create(ctx context.Context, input models.CreateFollowUpInput) (*models.FollowUpRecord, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.FollowUpDate.IsZero() {
		return nil, utils.CreateValidationError("followUpDate 不能为空")
	}
	if err := e.validate.Struct(input); err != nil {
		return nil, toValidationError(err)
	}

	module, ok := models.ModuleFor(input.RecordType)
	if !ok {
		return nil, utils.CreateValidationError("未知的记录类型: " + string(input.RecordType))
	}
	if input.Module != "" && input.Module != module {
		return nil, utils.CreateValidationError(fmt.Sprintf("记录类型 %s 属于模块 %s，而不是 %s", input.RecordType, module, input.Module))
	}

	priority := input.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	assignedTo := input.AssignedTo
	if assignedTo == "" {
		assignedTo = input.CreatedBy
	}

	now := e.now()
	rec := &models.FollowUpRecord{
		RecordType:         input.RecordType,
		RecordID:           input.RecordID,
		RecordName:         input.RecordName,
		Module:             module,
		Title:              input.Title,
		Description:        input.Description,
		Priority:           priority,
		Status:             models.StatusPending,
		FollowUpDate:       input.FollowUpDate,
		MonthlyUpdates:     []models.MonthlyUpdate{},
		IsActive:           true,
		AssignedTo:         assignedTo,
		CreatedBy:          input.CreatedBy,
		WardNo:             input.WardNo,
		Habitation:         input.Habitation,
		ProjectResponsible: input.ProjectResponsible,
		Tags:               input.Tags,
		Category:           input.Category,
		PreviousFollowUpID: input.PreviousFollowUpID,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	rec.IsOverdue = DeriveOverdue(rec, now)

	if err := e.store.Insert(ctx, rec); err != nil {
		return nil, err
	}

	utils.LogInfo(map[string]interface{}{
		"id":         rec.ID.Hex(),
		"recordType": rec.RecordType,
		"recordId":   rec.RecordID,
	}, "创建跟进记录")
	return rec, nil
}

// Get 根据ID获取跟进
func (e *LifecycleEngine) Get(ctx context.Context, id string) (*models.FollowUpRecord, error) {
	rec, err := e.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.withOverdue(rec), nil
}

// GetByRecord 获取业务记录当前有效的跟进
func (e *LifecycleEngine) GetByRecord(ctx context.Context, recordType models.RecordType, recordID string) (*models.FollowUpRecord, error) {
	if !recordType.IsValid() {
		return nil, utils.CreateValidationError("未知的记录类型: " + string(recordType))
	}
	rec, err := e.store.FindLatestByRecord(ctx, recordType, recordID)
	if err != nil {
		return nil, err
	}
	return e.withOverdue(rec), nil
}

// List 分页查询
func (e *LifecycleEngine) List(ctx context.Context, filter models.FollowUpFilter, page models.Pagination) (*models.FollowUpPage, error) {
	now := e.now()
	filter.Now = now
	page = repository.NormalizePagination(page)

	records, total, err := e.store.List(ctx, filter, page)
	if err != nil {
		return nil, err
	}

	result := &models.FollowUpPage{
		Records: make([]models.FollowUpRecord, 0, len(records)),
		Total:   total,
		Page:    page.Page,
		Limit:   page.Limit,
	}
	for _, rec := range records {
		rec.IsOverdue = DeriveOverdue(rec, now)
		result.Records = append(result.Records, *rec)
	}
	return result, nil
}

// ListOverdue 逾期列表，默认只查有效记录
func (e *LifecycleEngine) ListOverdue(ctx context.Context, filter models.FollowUpFilter, page models.Pagination) (*models.FollowUpPage, error) {
	overdue := true
	filter.Overdue = &overdue
	if filter.IsActive == nil {
		active := true
		filter.IsActive = &active
	}
	if page.SortBy == "" {
		page.SortBy = "followUpDate"
		page.SortOrder = 1
	}
	return e.List(ctx, filter, page)
}

// ListUpcoming 未来 days 天内到期的未结束跟进
func (e *LifecycleEngine) ListUpcoming(ctx context.Context, days int, filter models.FollowUpFilter, page models.Pagination) (*models.FollowUpPage, error) {
	if days <= 0 || days > 365 {
		return nil, utils.CreateValidationError("days 必须在 1-365 之间")
	}
	now := e.now()
	until := now.AddDate(0, 0, days)
	filter.DateFrom = &now
	filter.DateTo = &until
	filter.Statuses = []models.FollowUpStatus{models.StatusPending, models.StatusInProgress, models.StatusOnHold}
	if filter.IsActive == nil {
		active := true
		filter.IsActive = &active
	}
	if page.SortBy == "" {
		page.SortBy = "followUpDate"
		page.SortOrder = 1
	}
	return e.List(ctx, filter, page)
}

// History 业务记录所有跟进的月度记录，按时间倒序
func (e *LifecycleEngine) History(ctx context.Context, recordType models.RecordType, recordID string) ([]models.HistoryEntry, error) {
	if !recordType.IsValid() {
		return nil, utils.CreateValidationError("未知的记录类型: " + string(recordType))
	}
	records, err := e.store.FindAllByRecord(ctx, recordType, recordID)
	if err != nil {
		return nil, err
	}

	entries := make([]models.HistoryEntry, 0)
	for _, rec := range records {
		for _, u := range rec.MonthlyUpdates {
			entries = append(entries, models.HistoryEntry{
				MonthlyUpdate: u,
				FollowUpID:    rec.ID.Hex(),
				FollowUpTitle: rec.Title,
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.After(entries[j].Date)
	})
	return entries, nil
}

// AddMonthlyUpdate 追加月度跟进，可同时变更状态
func (e *LifecycleEngine) AddMonthlyUpdate(ctx context.Context, id string, input models.MonthlyUpdateInput) (*models.FollowUpRecord, error) {
	input.Notes = strings.TrimSpace(input.Notes)
	if err := e.validate.Struct(input); err != nil {
		return nil, toValidationError(err)
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, utils.CreateValidationError("无效的状态: " + string(*input.Status))
	}

	return e.mutate(ctx, id, func(rec *models.FollowUpRecord, now time.Time) error {
		if !rec.IsActive {
			return utils.CreateNotFoundError("有效的跟进记录")
		}
		next := rec.Status
		if input.Status != nil {
			next = *input.Status
		}
		if !CanTransition(rec.Status, next) {
			return invalidTransition(rec.Status, next)
		}

		appendUpdate(rec, now, input.Notes, next, input.UpdatedBy, input.Attachments)
		if next.IsTerminal() {
			applyTerminal(rec, next, now, input.Notes)
		} else {
			rec.Status = next
		}
		return nil
	})
}

// Complete 完成跟进
func (e *LifecycleEngine) Complete(ctx context.Context, id, notes, completedBy string) (*models.FollowUpRecord, error) {
	return e.finish(ctx, id, models.StatusCompleted, notes, completedBy)
}

// Cancel 取消跟进
func (e *LifecycleEngine) Cancel(ctx context.Context, id, reason, cancelledBy string) (*models.FollowUpRecord, error) {
	return e.finish(ctx, id, models.StatusCancelled, reason, cancelledBy)
}

func (e *LifecycleEngine) finish(ctx context.Context, id string, status models.FollowUpStatus, notes, userID string) (*models.FollowUpRecord, error) {
	notes = strings.TrimSpace(notes)
	return e.mutate(ctx, id, func(rec *models.FollowUpRecord, now time.Time) error {
		if rec.Status.IsTerminal() {
			return invalidTransition(rec.Status, status)
		}
		if !rec.IsActive {
			return utils.CreateNotFoundError("有效的跟进记录")
		}

		entryNotes := notes
		if entryNotes == "" {
			entryNotes = "跟进已" + terminalLabel(status)
		}
		appendUpdate(rec, now, entryNotes, status, userID, nil)
		applyTerminal(rec, status, now, notes)
		return nil
	})
}

// Update 编辑跟进，状态变更会追加一条系统记录
func (e *LifecycleEngine) Update(ctx context.Context, id string, patch models.UpdateFollowUpInput, userID string) (*models.FollowUpRecord, error) {
	if err := e.validate.Struct(patch); err != nil {
		return nil, toValidationError(err)
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, utils.CreateValidationError("标题不能为空")
	}
	if patch.FollowUpDate != nil && patch.FollowUpDate.IsZero() {
		return nil, utils.CreateValidationError("followUpDate 不能为空")
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return nil, utils.CreateValidationError("无效的状态: " + string(*patch.Status))
	}

	return e.mutate(ctx, id, func(rec *models.FollowUpRecord, now time.Time) error {
		if rec.Status.IsTerminal() {
			return utils.CreateInvalidTransitionError("跟进已" + terminalLabel(rec.Status) + "，不能再修改")
		}
		if !rec.IsActive {
			return utils.CreateNotFoundError("有效的跟进记录")
		}

		if patch.Title != nil {
			rec.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			rec.Description = *patch.Description
		}
		if patch.Priority != nil {
			rec.Priority = *patch.Priority
		}
		if patch.FollowUpDate != nil {
			rec.FollowUpDate = *patch.FollowUpDate
		}
		if patch.AssignedTo != nil {
			rec.AssignedTo = *patch.AssignedTo
		}
		if patch.WardNo != nil {
			rec.WardNo = *patch.WardNo
		}
		if patch.Habitation != nil {
			rec.Habitation = *patch.Habitation
		}
		if patch.ProjectResponsible != nil {
			rec.ProjectResponsible = *patch.ProjectResponsible
		}
		if patch.Tags != nil {
			rec.Tags = patch.Tags
		}
		if patch.Category != nil {
			rec.Category = *patch.Category
		}

		if patch.Status != nil && *patch.Status != rec.Status {
			next := *patch.Status
			if !CanTransition(rec.Status, next) {
				return invalidTransition(rec.Status, next)
			}
			appendUpdate(rec, now, fmt.Sprintf("状态由 %s 变更为 %s", rec.Status, next), next, userID, nil)
			if next.IsTerminal() {
				applyTerminal(rec, next, now, "")
			} else {
				rec.Status = next
			}
		}
		return nil
	})
}

// SoftDelete 软删除
func (e *LifecycleEngine) SoftDelete(ctx context.Context, id, userID string) (*models.FollowUpRecord, error) {
	rec, err := e.mutate(ctx, id, func(rec *models.FollowUpRecord, now time.Time) error {
		if !rec.IsActive {
			return utils.CreateNotFoundError("有效的跟进记录")
		}
		rec.IsActive = false
		return nil
	})
	if err != nil {
		return nil, err
	}
	utils.LogInfo(map[string]interface{}{"id": id, "userId": userID}, "删除跟进记录")
	return rec, nil
}

// ContinuationResult 完成并续建的结果
type ContinuationResult struct {
	Completed *models.FollowUpRecord `json:"completed"`
	Next      *models.FollowUpRecord `json:"next,omitempty"`
	// 续建失败时的错误码，完成本身不回滚
	ContinuationError string `json:"continuationError,omitempty"`
	Err               error  `json:"-"`
}

// CompleteAndContinue 完成当前跟进并按周期创建下一条
func (e *LifecycleEngine) CompleteAndContinue(ctx context.Context, id, notes, userID string) (*ContinuationResult, error) {
	completed, err := e.Complete(ctx, id, notes, userID)
	if err != nil {
		return nil, err
	}

	result := &ContinuationResult{Completed: completed}
	next, err := e.Create(ctx, models.CreateFollowUpInput{
		RecordType:         completed.RecordType,
		RecordID:           completed.RecordID,
		RecordName:         completed.RecordName,
		Module:             completed.Module,
		Title:              completed.Title,
		Description:        completed.Description,
		Priority:           completed.Priority,
		FollowUpDate:       e.interval.Next(completed.FollowUpDate),
		AssignedTo:         completed.AssignedTo,
		CreatedBy:          userID,
		PreviousFollowUpID: completed.ID.Hex(),
		Classification: models.Classification{
			WardNo:             completed.WardNo,
			Habitation:         completed.Habitation,
			ProjectResponsible: completed.ProjectResponsible,
			Tags:               completed.Tags,
			Category:           completed.Category,
		},
	})
	if err != nil {
		utils.LogError(err, map[string]interface{}{
			"id":         id,
			"recordType": completed.RecordType,
			"recordId":   completed.RecordID,
		}, "续建跟进失败，需要人工补建")
		result.ContinuationError = utils.ErrorKind(err)
		result.Err = err
		return result, nil
	}
	result.Next = next
	return result, nil
}

// mutate 在记录锁内读取、修改、带版本写回，版本冲突时退避重试
func (e *LifecycleEngine) mutate(ctx context.Context, id string, fn func(rec *models.FollowUpRecord, now time.Time) error) (*models.FollowUpRecord, error) {
	lockCtx, cancelLock := context.WithTimeout(ctx, e.lockWait)
	unlock, err := e.locker.Lock(lockCtx, id)
	cancelLock()
	if err != nil {
		var apiErr *utils.ApiError
		if errors.As(err, &apiErr) {
			return nil, err
		}
		return nil, utils.CreateDependencyUnavailableError(err)
	}
	defer unlock()

	var (
		result *models.FollowUpRecord
		from   models.FollowUpStatus
	)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 2 * time.Second

	err = backoff.Retry(func() error {
		current, err := e.store.FindByID(ctx, id)
		if err != nil {
			return backoff.Permanent(err)
		}

		now := e.now()
		next := current.Clone()
		if err := fn(next, now); err != nil {
			return backoff.Permanent(err)
		}
		next.Version = current.Version + 1
		next.UpdatedAt = now
		next.IsOverdue = DeriveOverdue(next, now)

		if err := e.store.Replace(ctx, next, current.Version); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = next
		from = current.Status
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 5), ctx))
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, utils.CreateDependencyUnavailableError(err)
		}
		return nil, err
	}

	if from != result.Status {
		metrics.TransitionsTotal.WithLabelValues(string(from), string(result.Status)).Inc()
	}
	return result, nil
}

func (e *LifecycleEngine) withOverdue(rec *models.FollowUpRecord) *models.FollowUpRecord {
	rec.IsOverdue = DeriveOverdue(rec, e.now())
	return rec
}

func appendUpdate(rec *models.FollowUpRecord, now time.Time, notes string, status models.FollowUpStatus, userID string, attachments []models.Attachment) {
	rec.MonthlyUpdates = append(rec.MonthlyUpdates, models.MonthlyUpdate{
		ID:          uuid.NewString(),
		Date:        now,
		Notes:       notes,
		Status:      status,
		UpdatedBy:   userID,
		Attachments: attachments,
	})
}

// applyTerminal 进入终态：结束有效期并清除逾期
func applyTerminal(rec *models.FollowUpRecord, status models.FollowUpStatus, now time.Time, notes string) {
	rec.Status = status
	rec.IsActive = false
	rec.IsOverdue = false
	if status == models.StatusCompleted {
		completedAt := now
		rec.CompletedDate = &completedAt
		rec.CompletionNotes = notes
	}
}

func terminalLabel(status models.FollowUpStatus) string {
	if status == models.StatusCancelled {
		return "取消"
	}
	return "完成"
}

func invalidTransition(from, to models.FollowUpStatus) error {
	return utils.CreateInvalidTransitionError(fmt.Sprintf("不允许的状态变更: %s -> %s", from, to))
}

func toValidationError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("%s 校验失败(%s)", fe.Field(), fe.Tag()))
		}
		return utils.CreateValidationError(strings.Join(msgs, "; "))
	}
	return utils.CreateValidationError(err.Error())
}

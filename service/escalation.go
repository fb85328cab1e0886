package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BerniceZTT/welfare_end/metrics"
	"github.com/BerniceZTT/welfare_end/models"
	"github.com/BerniceZTT/welfare_end/utils"
)

// FollowUpCreator 自动升级依赖的创建能力
type FollowUpCreator interface {
	Create(ctx context.Context, input models.CreateFollowUpInput) (*models.FollowUpRecord, error)
	Now() time.Time
	Interval() Interval
}

// EscalationFailure 一次失败的自动创建，只进入日志
type EscalationFailure struct {
	RecordType models.RecordType
	RecordID   string
	ActingUser string
	Err        error
	At         time.Time
}

// EscalationHook 业务记录创建成功后异步创建跟进
type EscalationHook struct {
	creator FollowUpCreator
	timeout time.Duration

	failures chan EscalationFailure
	sinkDone chan struct{}

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	dispatched atomic.Int64
	failed     atomic.Int64
}

// NewEscalationHook 创建自动升级钩子并启动失败日志协程
func NewEscalationHook(creator FollowUpCreator, timeout time.Duration) *EscalationHook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	h := &EscalationHook{
		creator:  creator,
		timeout:  timeout,
		failures: make(chan EscalationFailure, 128),
		sinkDone: make(chan struct{}),
	}
	go h.logSink()
	return h
}

func (h *EscalationHook) logSink() {
	defer close(h.sinkDone)
	for f := range h.failures {
		utils.LogError(f.Err, map[string]interface{}{
			"recordType": f.RecordType,
			"recordId":   f.RecordID,
			"actingUser": f.ActingUser,
			"at":         f.At,
		}, "自动创建跟进失败")
	}
}

// BoundHook 绑定到某个记录类型的钩子
type BoundHook struct {
	hook       *EscalationHook
	recordType models.RecordType
	module     models.Module
	naming     NamingRule
}

// Bind 绑定记录类型，类型未知或没有命名规则时返回错误，启动时调用
func (h *EscalationHook) Bind(rt models.RecordType) (*BoundHook, error) {
	module, ok := models.ModuleFor(rt)
	if !ok {
		return nil, fmt.Errorf("未知的记录类型: %s", rt)
	}
	rule, ok := NamingRuleFor(rt)
	if !ok {
		return nil, fmt.Errorf("记录类型 %s 没有命名规则", rt)
	}
	return &BoundHook{hook: h, recordType: rt, module: module, naming: rule}, nil
}

// BindAll 绑定全部记录类型
func (h *EscalationHook) BindAll(types []models.RecordType) (map[models.RecordType]*BoundHook, error) {
	bound := make(map[models.RecordType]*BoundHook, len(types))
	for _, rt := range types {
		b, err := h.Bind(rt)
		if err != nil {
			return nil, err
		}
		bound[rt] = b
	}
	return bound, nil
}

// RecordType 绑定的记录类型
func (b *BoundHook) RecordType() models.RecordType {
	return b.recordType
}

// NewTrigger 每个请求一个触发器
func (b *BoundHook) NewTrigger() *Trigger {
	return &Trigger{bound: b}
}

// Trigger 一次请求内最多触发一次
type Trigger struct {
	bound *BoundHook
	once  sync.Once
}

// Fire 派发自动创建，重复调用无效。返回本次是否派发
func (t *Trigger) Fire(doc models.DomainRecord, actingUser string) bool {
	fired := false
	t.once.Do(func() {
		fired = t.bound.dispatch(doc, actingUser)
	})
	return fired
}

// BuildInput 根据业务记录计算跟进创建参数
func (b *BoundHook) BuildInput(doc models.DomainRecord, actingUser string, now time.Time) (models.CreateFollowUpInput, error) {
	recordID := doc.ID()
	if recordID == "" {
		return models.CreateFollowUpInput{}, utils.CreateValidationError("业务记录缺少ID")
	}
	name := b.naming(doc)
	iv := b.hook.creator.Interval()

	return models.CreateFollowUpInput{
		RecordType:     b.recordType,
		RecordID:       recordID,
		RecordName:     name,
		Module:         b.module,
		Title:          fmt.Sprintf("%s 月度跟进", name),
		Description:    fmt.Sprintf("%s 记录创建后自动生成", b.recordType),
		Priority:       models.PriorityMedium,
		FollowUpDate:   iv.Next(now),
		AssignedTo:     actingUser,
		CreatedBy:      actingUser,
		Classification: doc.Classification(),
	}, nil
}

func (b *BoundHook) dispatch(doc models.DomainRecord, actingUser string) bool {
	h := b.hook

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		utils.LogWarn(map[string]interface{}{"recordType": b.recordType}, "自动升级已关闭，忽略")
		return false
	}
	h.wg.Add(1)
	h.mu.RUnlock()
	h.dispatched.Add(1)

	// 业务记录可能在响应后被修改，先深拷贝
	snapshot := doc.Clone()

	go func() {
		defer h.wg.Done()

		// 不继承请求上下文，响应结束后仍可完成
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		start := time.Now()
		rec, err := b.escalate(ctx, snapshot, actingUser)
		metrics.EscalationDuration.WithLabelValues(string(b.recordType)).Observe(time.Since(start).Seconds())

		if err != nil {
			metrics.EscalationsTotal.WithLabelValues(string(b.recordType), "failure").Inc()
			h.failed.Add(1)
			h.report(EscalationFailure{
				RecordType: b.recordType,
				RecordID:   snapshot.ID(),
				ActingUser: actingUser,
				Err:        err,
				At:         time.Now(),
			})
			return
		}

		metrics.EscalationsTotal.WithLabelValues(string(b.recordType), "success").Inc()
		utils.LogInfo(map[string]interface{}{
			"followUpId": rec.ID.Hex(),
			"recordType": b.recordType,
			"recordId":   rec.RecordID,
			"dueDate":    rec.FollowUpDate,
		}, "自动创建跟进成功")
	}()
	return true
}

func (b *BoundHook) escalate(ctx context.Context, doc models.DomainRecord, actingUser string) (*models.FollowUpRecord, error) {
	input, err := b.BuildInput(doc, actingUser, b.hook.creator.Now())
	if err != nil {
		return nil, err
	}
	return b.hook.creator.Create(ctx, input)
}

func (h *EscalationHook) report(f EscalationFailure) {
	select {
	case h.failures <- f:
	default:
		// 日志协程积压时直接记录
		utils.LogError(f.Err, map[string]interface{}{
			"recordType": f.RecordType,
			"recordId":   f.RecordID,
		}, "自动创建跟进失败")
	}
}

// Wait 等待已派发的任务结束
func (h *EscalationHook) Wait() {
	h.wg.Wait()
}

// Close 停止接收新任务，等待进行中的任务和日志协程结束
func (h *EscalationHook) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	h.wg.Wait()
	close(h.failures)
	<-h.sinkDone
}

// Stats 派发与失败次数
func (h *EscalationHook) Stats() (dispatched, failed int64) {
	return h.dispatched.Load(), h.failed.Load()
}

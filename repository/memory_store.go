package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BerniceZTT/welfare_end/models"
	"github.com/BerniceZTT/welfare_end/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryFollowUpStore 内存实现，用于测试和 memory 驱动
type MemoryFollowUpStore struct {
	mu      sync.RWMutex
	records map[primitive.ObjectID]*models.FollowUpRecord

	// FailWith 非空时所有写操作返回该错误，测试用
	FailWith error
}

// NewMemoryFollowUpStore 创建内存存储
func NewMemoryFollowUpStore() *MemoryFollowUpStore {
	return &MemoryFollowUpStore{records: make(map[primitive.ObjectID]*models.FollowUpRecord)}
}

func (s *MemoryFollowUpStore) Insert(ctx context.Context, rec *models.FollowUpRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWith != nil {
		return s.FailWith
	}
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *MemoryFollowUpStore) FindByID(ctx context.Context, id string) (*models.FollowUpRecord, error) {
	objID, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[objID]
	if !ok {
		return nil, utils.CreateNotFoundError("跟进记录")
	}
	return rec.Clone(), nil
}

func (s *MemoryFollowUpStore) FindLatestByRecord(ctx context.Context, recordType models.RecordType, recordID string) (*models.FollowUpRecord, error) {
	all, err := s.FindAllByRecord(ctx, recordType, recordID)
	if err != nil {
		return nil, err
	}
	for _, rec := range all {
		if rec.IsActive {
			return rec, nil
		}
	}
	return nil, utils.CreateNotFoundError("跟进记录")
}

func (s *MemoryFollowUpStore) FindAllByRecord(ctx context.Context, recordType models.RecordType, recordID string) ([]*models.FollowUpRecord, error) {
	records := s.snapshot(models.FollowUpFilter{RecordType: recordType, RecordID: recordID})
	sortRecords(records, "createdAt", -1)
	return records, nil
}

func (s *MemoryFollowUpStore) List(ctx context.Context, filter models.FollowUpFilter, page models.Pagination) ([]*models.FollowUpRecord, int64, error) {
	page = NormalizePagination(page)
	records := s.snapshot(filter)
	sortRecords(records, page.SortBy, page.SortOrder)

	total := int64(len(records))
	start := (page.Page - 1) * page.Limit
	if start >= total {
		return []*models.FollowUpRecord{}, total, nil
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return records[start:end], total, nil
}

func (s *MemoryFollowUpStore) Replace(ctx context.Context, rec *models.FollowUpRecord, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWith != nil {
		return s.FailWith
	}
	current, ok := s.records[rec.ID]
	if !ok {
		return utils.CreateNotFoundError("跟进记录")
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *MemoryFollowUpStore) Count(ctx context.Context, filter models.FollowUpFilter) (int64, error) {
	return int64(len(s.snapshot(filter))), nil
}

func (s *MemoryFollowUpStore) GroupCount(ctx context.Context, filter models.FollowUpFilter, field string) ([]models.ChartDataItem, error) {
	if !groupableFields[field] {
		return nil, utils.CreateValidationError("不支持的分组字段: " + field)
	}

	counts := make(map[string]int)
	for _, rec := range s.snapshot(filter) {
		counts[fieldValue(rec, field)]++
	}

	items := make([]models.ChartDataItem, 0, len(counts))
	for name, n := range counts {
		items = append(items, models.ChartDataItem{Name: name, Value: n})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (s *MemoryFollowUpStore) SyncOverdueFlags(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for _, rec := range s.records {
		overdue := !rec.Status.IsTerminal() && rec.FollowUpDate.Before(now)
		if rec.IsOverdue != overdue {
			rec.IsOverdue = overdue
			changed++
		}
	}
	return changed, nil
}

// snapshot 返回匹配记录的副本
func (s *MemoryFollowUpStore) snapshot(filter models.FollowUpFilter) []*models.FollowUpRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.FollowUpRecord, 0)
	for _, rec := range s.records {
		if MatchFollowUp(rec, filter) {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// MatchFollowUp 判断记录是否满足筛选条件，与 BuildFollowUpQuery 语义一致
func MatchFollowUp(rec *models.FollowUpRecord, f models.FollowUpFilter) bool {
	if f.RecordType != "" && rec.RecordType != f.RecordType {
		return false
	}
	if f.RecordID != "" && rec.RecordID != f.RecordID {
		return false
	}
	if f.Module != "" && rec.Module != f.Module {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if rec.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Priority != "" && rec.Priority != f.Priority {
		return false
	}
	if f.AssignedTo != "" && rec.AssignedTo != f.AssignedTo {
		return false
	}
	if f.WardNo != "" && rec.WardNo != f.WardNo {
		return false
	}
	if f.Habitation != "" && rec.Habitation != f.Habitation {
		return false
	}
	if f.IsActive != nil && rec.IsActive != *f.IsActive {
		return false
	}
	if f.DateFrom != nil && rec.FollowUpDate.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && rec.FollowUpDate.After(*f.DateTo) {
		return false
	}
	if f.CompletedFrom != nil || f.CompletedTo != nil {
		if rec.CompletedDate == nil {
			return false
		}
		if f.CompletedFrom != nil && rec.CompletedDate.Before(*f.CompletedFrom) {
			return false
		}
		if f.CompletedTo != nil && !rec.CompletedDate.Before(*f.CompletedTo) {
			return false
		}
	}
	if f.Overdue != nil {
		overdue := !rec.Status.IsTerminal() && rec.FollowUpDate.Before(f.Now)
		if overdue != *f.Overdue {
			return false
		}
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(rec.Title), needle) &&
			!strings.Contains(strings.ToLower(rec.RecordName), needle) &&
			!strings.Contains(strings.ToLower(rec.Description), needle) {
			return false
		}
	}
	return true
}

func fieldValue(rec *models.FollowUpRecord, field string) string {
	switch field {
	case "status":
		return string(rec.Status)
	case "module":
		return string(rec.Module)
	case "priority":
		return string(rec.Priority)
	case "recordType":
		return string(rec.RecordType)
	case "assignedTo":
		return rec.AssignedTo
	case "title":
		return rec.Title
	case "recordName":
		return rec.RecordName
	}
	return ""
}

func sortRecords(records []*models.FollowUpRecord, sortBy string, order int) {
	less := func(a, b *models.FollowUpRecord) bool {
		switch sortBy {
		case "followUpDate":
			if !a.FollowUpDate.Equal(b.FollowUpDate) {
				return a.FollowUpDate.Before(b.FollowUpDate)
			}
		case "updatedAt":
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
		case "createdAt":
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case "priority":
			if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
				return ra < rb
			}
		default:
			if va, vb := fieldValue(a, sortBy), fieldValue(b, sortBy); va != vb {
				return va < vb
			}
		}
		return a.ID.Hex() < b.ID.Hex()
	}
	sort.SliceStable(records, func(i, j int) bool {
		if order == 1 {
			return less(records[i], records[j])
		}
		return less(records[j], records[i])
	})
}

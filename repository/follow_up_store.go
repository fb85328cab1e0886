package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/BerniceZTT/welfare_end/models"
	"github.com/BerniceZTT/welfare_end/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrVersionConflict 乐观锁版本不一致，调用方应重新读取后重试
var ErrVersionConflict = errors.New("跟进记录已被并发修改")

// FollowUpStore 跟进记录存储
type FollowUpStore interface {
	Insert(ctx context.Context, rec *models.FollowUpRecord) error
	FindByID(ctx context.Context, id string) (*models.FollowUpRecord, error)
	// FindLatestByRecord 返回某业务记录最近创建的有效跟进
	FindLatestByRecord(ctx context.Context, recordType models.RecordType, recordID string) (*models.FollowUpRecord, error)
	FindAllByRecord(ctx context.Context, recordType models.RecordType, recordID string) ([]*models.FollowUpRecord, error)
	List(ctx context.Context, filter models.FollowUpFilter, page models.Pagination) ([]*models.FollowUpRecord, int64, error)
	// Replace 整条替换，仅当存储中的 version 等于 expectedVersion 时成功
	Replace(ctx context.Context, rec *models.FollowUpRecord, expectedVersion int64) error
	Count(ctx context.Context, filter models.FollowUpFilter) (int64, error)
	GroupCount(ctx context.Context, filter models.FollowUpFilter, field string) ([]models.ChartDataItem, error)
	// SyncOverdueFlags 按 now 重算持久化的 isOverdue，返回修改条数
	SyncOverdueFlags(ctx context.Context, now time.Time) (int64, error)
}

// 允许排序的字段
var sortableFields = map[string]bool{
	"followUpDate": true,
	"createdAt":    true,
	"updatedAt":    true,
	"priority":     true,
	"status":       true,
	"title":        true,
	"recordName":   true,
}

// 允许分组统计的字段
var groupableFields = map[string]bool{
	"status":     true,
	"module":     true,
	"priority":   true,
	"recordType": true,
	"assignedTo": true,
}

var terminalStatuses = []models.FollowUpStatus{models.StatusCompleted, models.StatusCancelled}

// NormalizePagination 补全分页默认值
func NormalizePagination(p models.Pagination) models.Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > models.MaxPage {
		p.Page = models.MaxPage
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if !sortableFields[p.SortBy] {
		p.SortBy = "createdAt"
	}
	if p.SortOrder != 1 {
		p.SortOrder = -1
	}
	return p
}

// sortKey 排序字段对应的存储字段，priority 按严重程度排序
func sortKey(field string) string {
	if field == "priority" {
		return "priorityRank"
	}
	return field
}

// MongoFollowUpStore MongoDB 实现
type MongoFollowUpStore struct {
	coll *mongo.Collection
}

// NewMongoFollowUpStore 创建 MongoDB 跟进存储
func NewMongoFollowUpStore(database *mongo.Database) *MongoFollowUpStore {
	return &MongoFollowUpStore{coll: database.Collection(FollowUpsCollection)}
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, utils.CreateNotFoundError("跟进记录")
	}
	return objID, nil
}

// Insert 插入跟进记录，ID 为空时生成
func (s *MongoFollowUpStore) Insert(ctx context.Context, rec *models.FollowUpRecord) error {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	rec.PriorityRank = rec.Priority.Rank()
	_, err := s.coll.InsertOne(ctx, rec)
	utils.LogDbOperation("insertOne", FollowUpsCollection, bson.M{"_id": rec.ID}, err)
	if err != nil {
		return wrapStoreError(fmt.Errorf("插入跟进记录失败: %w", err))
	}
	return nil
}

// FindByID 根据ID查询
func (s *MongoFollowUpStore) FindByID(ctx context.Context, id string) (*models.FollowUpRecord, error) {
	objID, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	var rec models.FollowUpRecord
	err = s.coll.FindOne(ctx, bson.M{"_id": objID}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.CreateNotFoundError("跟进记录")
		}
		return nil, wrapStoreError(err)
	}
	return &rec, nil
}

// FindLatestByRecord 查询业务记录最新的有效跟进
func (s *MongoFollowUpStore) FindLatestByRecord(ctx context.Context, recordType models.RecordType, recordID string) (*models.FollowUpRecord, error) {
	query := bson.M{"recordType": recordType, "recordId": recordID, "isActive": true}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var rec models.FollowUpRecord
	err := s.coll.FindOne(ctx, query, opts).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.CreateNotFoundError("跟进记录")
		}
		return nil, wrapStoreError(err)
	}
	return &rec, nil
}

// FindAllByRecord 查询业务记录的全部跟进（含已结束的）
func (s *MongoFollowUpStore) FindAllByRecord(ctx context.Context, recordType models.RecordType, recordID string) ([]*models.FollowUpRecord, error) {
	query := bson.M{"recordType": recordType, "recordId": recordID}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, wrapStoreError(err)
	}
	defer cursor.Close(ctx)

	var records []*models.FollowUpRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, wrapStoreError(err)
	}
	return records, nil
}

// List 分页查询
func (s *MongoFollowUpStore) List(ctx context.Context, filter models.FollowUpFilter, page models.Pagination) ([]*models.FollowUpRecord, int64, error) {
	page = NormalizePagination(page)
	query := BuildFollowUpQuery(filter)

	total, err := s.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, wrapStoreError(fmt.Errorf("统计跟进记录失败: %w", err))
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortKey(page.SortBy), Value: page.SortOrder}, {Key: "_id", Value: page.SortOrder}}).
		SetSkip((page.Page - 1) * page.Limit).
		SetLimit(page.Limit)

	cursor, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, wrapStoreError(fmt.Errorf("查询跟进记录失败: %w", err))
	}
	defer cursor.Close(ctx)

	records := make([]*models.FollowUpRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, 0, wrapStoreError(fmt.Errorf("解析跟进记录失败: %w", err))
	}
	utils.LogDbOperation("find", FollowUpsCollection, query, len(records))
	return records, total, nil
}

// Replace 带版本校验的整条替换
func (s *MongoFollowUpStore) Replace(ctx context.Context, rec *models.FollowUpRecord, expectedVersion int64) error {
	query := bson.M{"_id": rec.ID, "version": expectedVersion}
	rec.PriorityRank = rec.Priority.Rank()
	res, err := s.coll.ReplaceOne(ctx, query, rec)
	if err != nil {
		return wrapStoreError(fmt.Errorf("更新跟进记录失败: %w", err))
	}
	if res.MatchedCount == 0 {
		n, err := s.coll.CountDocuments(ctx, bson.M{"_id": rec.ID})
		if err != nil {
			return wrapStoreError(err)
		}
		if n == 0 {
			return utils.CreateNotFoundError("跟进记录")
		}
		return ErrVersionConflict
	}
	utils.LogDbOperation("replaceOne", FollowUpsCollection, query, res.ModifiedCount)
	return nil
}

// Count 计数
func (s *MongoFollowUpStore) Count(ctx context.Context, filter models.FollowUpFilter) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, BuildFollowUpQuery(filter))
	if err != nil {
		return 0, wrapStoreError(err)
	}
	return n, nil
}

// GroupCount 按字段分组计数
func (s *MongoFollowUpStore) GroupCount(ctx context.Context, filter models.FollowUpFilter, field string) ([]models.ChartDataItem, error) {
	if !groupableFields[field] {
		return nil, utils.CreateValidationError("不支持的分组字段: " + field)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: BuildFollowUpQuery(filter)}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$" + field,
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrapStoreError(fmt.Errorf("聚合查询失败: %w", err))
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID    string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, wrapStoreError(fmt.Errorf("解析聚合结果失败: %w", err))
	}

	items := make([]models.ChartDataItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, models.ChartDataItem{Name: row.ID, Value: row.Count})
	}
	return items, nil
}

// SyncOverdueFlags 同步持久化的 isOverdue 标记
func (s *MongoFollowUpStore) SyncOverdueFlags(ctx context.Context, now time.Time) (int64, error) {
	overdue := true
	notOverdue := false

	setTrue, err := s.coll.UpdateMany(ctx,
		bson.M{"$and": bson.A{BuildFollowUpQuery(models.FollowUpFilter{Overdue: &overdue, Now: now}), bson.M{"isOverdue": false}}},
		bson.M{"$set": bson.M{"isOverdue": true}},
	)
	if err != nil {
		return 0, wrapStoreError(fmt.Errorf("同步逾期标记失败: %w", err))
	}

	setFalse, err := s.coll.UpdateMany(ctx,
		bson.M{"$and": bson.A{BuildFollowUpQuery(models.FollowUpFilter{Overdue: &notOverdue, Now: now}), bson.M{"isOverdue": true}}},
		bson.M{"$set": bson.M{"isOverdue": false}},
	)
	if err != nil {
		return setTrue.ModifiedCount, wrapStoreError(fmt.Errorf("同步逾期标记失败: %w", err))
	}
	return setTrue.ModifiedCount + setFalse.ModifiedCount, nil
}

// BuildFollowUpQuery 把筛选条件转换为 MongoDB 查询
func BuildFollowUpQuery(f models.FollowUpFilter) bson.M {
	query := bson.M{}
	var and bson.A

	if f.RecordType != "" {
		query["recordType"] = f.RecordType
	}
	if f.RecordID != "" {
		query["recordId"] = f.RecordID
	}
	if f.Module != "" {
		query["module"] = f.Module
	}
	if len(f.Statuses) == 1 {
		query["status"] = f.Statuses[0]
	} else if len(f.Statuses) > 1 {
		query["status"] = bson.M{"$in": f.Statuses}
	}
	if f.Priority != "" {
		query["priority"] = f.Priority
	}
	if f.AssignedTo != "" {
		query["assignedTo"] = f.AssignedTo
	}
	if f.WardNo != "" {
		query["wardNo"] = f.WardNo
	}
	if f.Habitation != "" {
		query["habitation"] = f.Habitation
	}
	if f.IsActive != nil {
		query["isActive"] = *f.IsActive
	}

	if f.DateFrom != nil || f.DateTo != nil {
		dateQuery := bson.M{}
		if f.DateFrom != nil {
			dateQuery["$gte"] = *f.DateFrom
		}
		if f.DateTo != nil {
			dateQuery["$lte"] = *f.DateTo
		}
		and = append(and, bson.M{"followUpDate": dateQuery})
	}

	if f.CompletedFrom != nil || f.CompletedTo != nil {
		completedQuery := bson.M{}
		if f.CompletedFrom != nil {
			completedQuery["$gte"] = *f.CompletedFrom
		}
		if f.CompletedTo != nil {
			completedQuery["$lt"] = *f.CompletedTo
		}
		query["completedDate"] = completedQuery
	}

	// 逾期按状态和日期推导
	if f.Overdue != nil {
		if *f.Overdue {
			and = append(and,
				bson.M{"status": bson.M{"$nin": terminalStatuses}},
				bson.M{"followUpDate": bson.M{"$lt": f.Now}},
			)
		} else {
			and = append(and, bson.M{"$or": bson.A{
				bson.M{"status": bson.M{"$in": terminalStatuses}},
				bson.M{"followUpDate": bson.M{"$gte": f.Now}},
			}})
		}
	}

	if f.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"title": pattern},
			bson.M{"recordName": pattern},
			bson.M{"description": pattern},
		}})
	}

	if len(and) > 0 {
		query["$and"] = and
	}
	return query
}

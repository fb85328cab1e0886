package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BerniceZTT/welfare_end/models"
	"github.com/BerniceZTT/welfare_end/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// DomainRecordStore 业务记录存储，文档内容不做解释
type DomainRecordStore interface {
	InsertRecord(ctx context.Context, recordType models.RecordType, doc models.DomainRecord) (models.DomainRecord, error)
}

// MongoDomainRecordStore MongoDB 实现
type MongoDomainRecordStore struct {
	coll *mongo.Collection
}

// NewMongoDomainRecordStore 创建业务记录存储
func NewMongoDomainRecordStore(database *mongo.Database) *MongoDomainRecordStore {
	return &MongoDomainRecordStore{coll: database.Collection(DomainRecordsCollection)}
}

// InsertRecord 写入业务记录，返回带 _id 的文档
func (s *MongoDomainRecordStore) InsertRecord(ctx context.Context, recordType models.RecordType, doc models.DomainRecord) (models.DomainRecord, error) {
	stored := prepareDomainRecord(recordType, doc)
	if _, err := s.coll.InsertOne(ctx, stored); err != nil {
		return nil, wrapStoreError(fmt.Errorf("保存业务记录失败: %w", err))
	}
	utils.LogDbOperation("insertOne", DomainRecordsCollection, map[string]interface{}{"recordType": recordType}, stored["_id"])
	return stored, nil
}

// MemoryDomainRecordStore 内存实现
type MemoryDomainRecordStore struct {
	mu      sync.Mutex
	records []models.DomainRecord
}

// NewMemoryDomainRecordStore 创建内存业务记录存储
func NewMemoryDomainRecordStore() *MemoryDomainRecordStore {
	return &MemoryDomainRecordStore{}
}

func (s *MemoryDomainRecordStore) InsertRecord(ctx context.Context, recordType models.RecordType, doc models.DomainRecord) (models.DomainRecord, error) {
	stored := prepareDomainRecord(recordType, doc)
	s.mu.Lock()
	s.records = append(s.records, stored)
	s.mu.Unlock()
	return stored, nil
}

// Len 已保存的记录数
func (s *MemoryDomainRecordStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func prepareDomainRecord(recordType models.RecordType, doc models.DomainRecord) models.DomainRecord {
	stored := make(models.DomainRecord, len(doc)+4)
	for k, v := range doc {
		stored[k] = v
	}
	// 客户端传入的 id 不作为主键
	delete(stored, "id")
	stored["_id"] = primitive.NewObjectID()
	stored["recordType"] = string(recordType)
	now := time.Now()
	stored["createdAt"] = now
	stored["updatedAt"] = now
	return stored
}

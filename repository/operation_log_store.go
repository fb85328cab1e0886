package repository

import (
	"context"
	"sync"

	"github.com/BerniceZTT/welfare_end/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// OperationLogStore 审计日志存储
type OperationLogStore interface {
	SaveOperationLog(ctx context.Context, log *models.OperationLog) error
}

// MongoOperationLogStore MongoDB 实现
type MongoOperationLogStore struct {
	coll *mongo.Collection
}

// NewMongoOperationLogStore 创建审计日志存储
func NewMongoOperationLogStore(database *mongo.Database) *MongoOperationLogStore {
	return &MongoOperationLogStore{coll: database.Collection(ApiOperationLogsCollection)}
}

// SaveOperationLog 保存操作日志
func (s *MongoOperationLogStore) SaveOperationLog(ctx context.Context, log *models.OperationLog) error {
	_, err := s.coll.InsertOne(ctx, log)
	return wrapStoreError(err)
}

// MemoryOperationLogStore 内存实现
type MemoryOperationLogStore struct {
	mu   sync.Mutex
	logs []models.OperationLog
}

// NewMemoryOperationLogStore 创建内存审计日志存储
func NewMemoryOperationLogStore() *MemoryOperationLogStore {
	return &MemoryOperationLogStore{}
}

func (s *MemoryOperationLogStore) SaveOperationLog(ctx context.Context, log *models.OperationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if log.ID.IsZero() {
		log.ID = primitive.NewObjectID()
	}
	s.logs = append(s.logs, *log)
	return nil
}

// Logs 返回已保存日志的副本
func (s *MemoryOperationLogStore) Logs() []models.OperationLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OperationLog(nil), s.logs...)
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BerniceZTT/welfare_end/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// 集合名
	FollowUpsCollection        = "followUps"
	DomainRecordsCollection    = "domainRecords"
	ApiOperationLogsCollection = "apiOperationLogs"
)

var allCollections = []string{
	FollowUpsCollection,
	DomainRecordsCollection,
	ApiOperationLogsCollection,
}

var (
	client *mongo.Client
	db     *mongo.Database
)

// InitMongoDB 初始化MongoDB连接
func InitMongoDB(ctx context.Context, uri, dbName string) error {
	// 设置连接超时
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	clientOptions := options.Client().ApplyURI(uri)
	client, err = mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return fmt.Errorf("连接MongoDB失败: %w", err)
	}

	// 检查连接
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping MongoDB失败: %w", err)
	}

	db = client.Database(dbName)
	utils.Logger.Info().Str("database", dbName).Msg("已连接到MongoDB")

	return nil
}

// CloseMongoDB 关闭MongoDB连接
func CloseMongoDB(ctx context.Context) {
	if client == nil {
		return
	}
	if err := client.Disconnect(ctx); err != nil {
		utils.Logger.Error().Err(err).Msg("断开MongoDB连接失败")
		return
	}
	utils.Logger.Info().Msg("已断开MongoDB连接")
}

// GetDB 返回MongoDB数据库实例，未初始化时为 nil
func GetDB() *mongo.Database {
	return db
}

// isRetryableError 判断错误是否可重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	// MongoDB可重试错误代码
	retryableCodes := map[int32]bool{
		6:     true, // HostUnreachable
		7:     true, // HostNotFound
		89:    true, // NetworkTimeout
		91:    true, // ShutdownInProgress
		189:   true, // PrimarySteppedDown
		10107: true, // NotMaster
		13436: true, // NotMasterNoSlaveOk
		11600: true, // InterruptedAtShutdown
		11602: true, // InterruptedDueToReplStateChange
		10058: true, // ConnectionReset
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return retryableCodes[cmdErr.Code]
	}

	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	return isNetworkError(err)
}

// isNetworkError 按错误信息识别网络错误
func isNetworkError(err error) bool {
	errMsg := strings.ToLower(err.Error())
	networkErrors := []string{
		"connection refused",
		"connection reset",
		"connection closed",
		"no reachable servers",
		"timeout",
		"context deadline exceeded",
		"server selection error",
	}

	for _, ne := range networkErrors {
		if strings.Contains(errMsg, ne) {
			return true
		}
	}
	return false
}

// wrapStoreError 把不可达类错误转换为依赖不可用错误
func wrapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if isRetryableError(err) {
		return utils.CreateDependencyUnavailableError(err)
	}
	return err
}

// InitializeCollections 初始化数据库集合
func InitializeCollections(ctx context.Context) error {
	for _, collName := range allCollections {
		collExists, err := CollectionExists(ctx, collName)
		if err != nil {
			return fmt.Errorf("检查集合失败: %w", err)
		}

		if !collExists {
			if err := db.CreateCollection(ctx, collName); err != nil {
				return fmt.Errorf("创建集合失败: %w", err)
			}
			utils.Logger.Info().Str("collection", collName).Msg("创建集合成功")
		} else {
			utils.Logger.Info().Str("collection", collName).Msg("集合已存在")
		}
	}

	return EnsureIndexes(ctx)
}

// EnsureIndexes 创建跟进查询所需索引
func EnsureIndexes(ctx context.Context) error {
	followUps := []mongo.IndexModel{
		{Keys: bson.D{{Key: "recordType", Value: 1}, {Key: "recordId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "followUpDate", Value: 1}}},
		{Keys: bson.D{{Key: "assignedTo", Value: 1}}},
		{Keys: bson.D{{Key: "module", Value: 1}}},
		{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "isOverdue", Value: 1}}},
		{Keys: bson.D{{Key: "completedDate", Value: 1}}},
	}
	if _, err := db.Collection(FollowUpsCollection).Indexes().CreateMany(ctx, followUps); err != nil {
		return fmt.Errorf("创建跟进索引失败: %w", err)
	}

	records := []mongo.IndexModel{
		{Keys: bson.D{{Key: "recordType", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	if _, err := db.Collection(DomainRecordsCollection).Indexes().CreateMany(ctx, records); err != nil {
		return fmt.Errorf("创建业务记录索引失败: %w", err)
	}

	logs := []mongo.IndexModel{
		{Keys: bson.D{{Key: "operationTime", Value: -1}}},
		{Keys: bson.D{{Key: "resourceId", Value: 1}}},
	}
	if _, err := db.Collection(ApiOperationLogsCollection).Indexes().CreateMany(ctx, logs); err != nil {
		return fmt.Errorf("创建日志索引失败: %w", err)
	}
	return nil
}

// CollectionExists 检查集合是否存在
func CollectionExists(ctx context.Context, collName string) (bool, error) {
	collections, err := db.ListCollectionNames(ctx, bson.M{"name": collName})
	if err != nil {
		return false, err
	}

	for _, name := range collections {
		if name == collName {
			return true, nil
		}
	}
	return false, nil
}

// GetDatabaseStatus 获取数据库状态
func GetDatabaseStatus(ctx context.Context) (map[string]interface{}, error) {
	if db == nil {
		return nil, utils.CreateDependencyUnavailableError(errors.New("MongoDB未初始化"))
	}

	result := make(map[string]interface{})
	for _, collName := range allCollections {
		count, err := db.Collection(collName).CountDocuments(ctx, bson.M{})
		if err != nil {
			utils.Logger.Error().Err(err).Str("collection", collName).Msg("获取集合计数失败")
			result[collName] = map[string]interface{}{
				"count": 0,
				"error": err.Error(),
			}
			continue
		}
		result[collName] = map[string]interface{}{
			"count": count,
		}
	}
	return result, nil
}

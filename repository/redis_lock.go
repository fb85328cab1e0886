package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BerniceZTT/welfare_end/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

var errLockBusy = errors.New("锁被占用")

// RedisLocker 基于 Redis SET NX PX 的跨实例记录锁
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisClient 创建 Redis 客户端
func NewRedisClient(address, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         address,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

// NewRedisLocker 创建 Redis 锁，ttl 为锁的最长持有时间
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: client, prefix: "followup:lock:", ttl: ttl}
}

// Ping 检查 Redis 连接
func (l *RedisLocker) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping失败: %w", err)
	}
	return nil
}

// Lock 获取 key 对应的锁，阻塞直到成功或 ctx 结束
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := l.prefix + key
	token := uuid.NewString()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return backoff.Permanent(utils.CreateDependencyUnavailableError(err))
		}
		if !ok {
			return errLockBusy
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if errors.Is(err, errLockBusy) || ctx.Err() != nil {
			return nil, fmt.Errorf("获取记录锁超时: %w", ctx.Err())
		}
		return nil, err
	}

	return func() {
		// 请求可能已取消，释放锁不依赖请求上下文
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{lockKey}, token).Err(); err != nil {
			utils.LogError(err, map[string]interface{}{"key": lockKey}, "释放记录锁失败")
		}
	}, nil
}

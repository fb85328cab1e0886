package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/BerniceZTT/welfare_end/config"
	"github.com/BerniceZTT/welfare_end/models"
	"github.com/BerniceZTT/welfare_end/repository"
	"github.com/BerniceZTT/welfare_end/service"
	"github.com/BerniceZTT/welfare_end/utils"
)

// application 进程内共享的组件
type application struct {
	cfg *config.Config

	followUps repository.FollowUpStore
	records   repository.DomainRecordStore
	opLogs    repository.OperationLogStore

	engine   *service.LifecycleEngine
	stats    *service.StatisticsAggregator
	hook     *service.EscalationHook
	bindings map[models.RecordType]*service.BoundHook

	dbStatus func(ctx context.Context) (map[string]interface{}, error)
	closers  []func(ctx context.Context)
}

// intervalFromConfig 根据配置生成跟进周期
func intervalFromConfig(cfg config.FollowUpConfig) service.Interval {
	return service.Interval{
		Months:   cfg.IntervalMonths,
		Days:     cfg.IntervalDays,
		DueHour:  cfg.DueHour,
		Location: cfg.Location(),
	}
}

// buildApplication 初始化存储、锁和服务
func buildApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	app := &application{cfg: cfg}

	switch cfg.Storage.Driver {
	case "memory":
		utils.Logger.Warn().Msg("使用内存存储，重启后数据丢失")
		app.followUps = repository.NewMemoryFollowUpStore()
		app.records = repository.NewMemoryDomainRecordStore()
		app.opLogs = repository.NewMemoryOperationLogStore()
	default:
		if err := repository.InitMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.DB); err != nil {
			return nil, err
		}
		app.closers = append(app.closers, repository.CloseMongoDB)

		if err := repository.InitializeCollections(ctx); err != nil {
			utils.Logger.Error().Err(err).Msg("初始化数据库集合失败")
		}

		db := repository.GetDB()
		app.followUps = repository.NewMongoFollowUpStore(db)
		app.records = repository.NewMongoDomainRecordStore(db)
		app.opLogs = repository.NewMongoOperationLogStore(db)
		app.dbStatus = repository.GetDatabaseStatus
	}

	opts := []service.EngineOption{service.WithInterval(intervalFromConfig(cfg.FollowUp))}
	if cfg.Redis.Address != "" {
		client := repository.NewRedisClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		locker := repository.NewRedisLocker(client, 30*time.Second)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := locker.Ping(pingCtx)
		cancel()
		if err != nil {
			client.Close()
			return nil, err
		}
		opts = append(opts, service.WithLocker(locker))
		app.closers = append(app.closers, func(context.Context) { client.Close() })
		utils.Logger.Info().Str("address", cfg.Redis.Address).Msg("使用Redis记录锁")
	}

	app.engine = service.NewLifecycleEngine(app.followUps, opts...)
	app.stats = service.NewStatisticsAggregator(app.followUps, cfg.FollowUp.Location(), nil)
	app.hook = service.NewEscalationHook(app.engine, cfg.FollowUp.HookTimeout)

	bindings, err := app.hook.BindAll(models.AllRecordTypes())
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("绑定自动跟进失败: %w", err)
	}
	app.bindings = bindings

	return app, nil
}

// close 先等待自动跟进任务结束，再断开存储
func (a *application) close(ctx context.Context) {
	if a.hook != nil {
		a.hook.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"pockettrade.com/internal/config"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/event"
	"pockettrade.com/internal/infra"
	"pockettrade.com/internal/service"
	"pockettrade.com/internal/strategies"
	"pockettrade.com/internal/swap"
	"pockettrade.com/internal/venue"
)

// application 进程内共享的组件
type application struct {
	cfg    *config.Config
	logger *zap.Logger

	db  *gorm.DB
	rdb *redis.Client // 未配置 Redis 时为 nil

	venue   domain.Venue
	custody domain.Custody
	funder  domain.Funder

	bus      *event.Bus
	registry *service.RegistryServiceImpl
	pockets  *service.PocketServiceImpl
}

func newApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*application, error) {
	app := &application{cfg: cfg, logger: logger}

	// 1. Postgres
	pg, err := infra.NewPostgresClient(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	app.db = pg.DB

	// 2. Redis: redis 模式与分布式锁必需，paper 模式下可选 (用于多实例事件推送)
	needRedis := cfg.Venue.Mode == "redis" || cfg.Lock.Distributed
	rdb, err := infra.ConnectRedis(ctx, cfg.Redis, 3*time.Second)
	switch {
	case err == nil:
		app.rdb = rdb
	case needRedis:
		return nil, err
	default:
		logger.Warn("Redis unavailable, running single instance", zap.Error(err))
	}

	// 3. 交易场所与托管账户
	switch cfg.Venue.Mode {
	case "", "paper":
		paper, err := venue.NewPaperFromConfig(cfg.Venue.PaperMarkets)
		if err != nil {
			return nil, err
		}
		app.venue, app.custody, app.funder = paper, paper, paper
		logger.Info("Venue: paper mode", zap.Int("markets", len(cfg.Venue.PaperMarkets)))
	case "redis":
		ledger := venue.NewLedger(app.rdb)
		app.venue = venue.NewClient(app.rdb, cfg.Venue, logger)
		app.custody, app.funder = ledger, ledger
		logger.Info("Venue: redis gateway mode", zap.String("queue", cfg.Venue.CommandQueue))
	default:
		return nil, fmt.Errorf("unknown venue mode %q", cfg.Venue.Mode)
	}

	// 4. 执行器锁
	var locker domain.Locker
	if cfg.Lock.Distributed {
		locker = infra.NewRedsyncLocker(app.rdb, cfg.Lock)
	}

	// 5. 业务服务
	app.bus = event.NewBus(1024, logger)
	app.registry = service.NewRegistryService(app.db, app.bus, logger)
	app.pockets = service.NewPocketService(
		app.db,
		app.registry,
		swap.NewAdapter(app.venue, app.custody, logger),
		app.custody,
		strategies.NewExecutor(locker, logger),
		app.bus,
		logger,
	)
	return app, nil
}

func (a *application) close() {
	a.bus.Shutdown()
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}

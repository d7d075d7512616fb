// Package operator 定时扫描到期的 Pocket 并以 operator 身份执行定投周期
package operator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/model"
)

// Stats 一轮扫描的结果
type Stats struct {
	Due      int
	Executed int
	Skipped  int
	Failed   int
	// 处于退避期、本轮未执行
	Deferred int
}

type Operator struct {
	pockets   domain.PocketService
	identity  string
	batchSize int
	logger    *zap.Logger
	now       func() time.Time

	// 兑换已结算但被策略拒绝的 Pocket -> 退避截止时间 (unix)
	// 被拒绝的周期不推进 next_scheduled_execution_at
	mu      sync.Mutex
	backoff map[string]int64
}

func New(pockets domain.PocketService, identity string, batchSize int, logger *zap.Logger) *Operator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Operator{
		pockets:   pockets,
		identity:  identity,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
		backoff:   make(map[string]int64),
	}
}

// RunOnce 执行一轮: 获取到期 Pocket，逐个执行
// 单个 Pocket 失败不影响其他 Pocket
func (o *Operator) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats

	now := o.now().Unix()
	due, err := o.pockets.ListDuePockets(ctx, now, o.batchSize)
	if err != nil {
		return stats, err
	}
	stats.Due = len(due)
	o.pruneBackoff(now)

	for _, p := range due {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if until, ok := o.backedOff(p.ID, now); ok {
			stats.Deferred++
			o.logger.Debug("Operator: Pocket deferred", zap.String("pocket_id", p.ID), zap.Int64("until", until))
			continue
		}

		res, err := o.pockets.ExecuteCycle(ctx, o.identity, p.ID, model.VenueRefs{MarketID: p.MarketKey})
		if rejectedAfterSettle(err) {
			o.deferPocket(p.ID, now+int64(max(p.FrequencyHours, 1))*3600)
		}
		switch {
		case err == nil:
			stats.Executed++
			fields := []zap.Field{
				zap.String("pocket_id", p.ID),
				zap.Uint64("from_amount", res.Outcome.FromAmount),
				zap.Uint64("to_amount", res.Outcome.ToAmount),
			}
			if res.StopReached != nil {
				fields = append(fields, zap.String("stop", string(res.StopReached.Kind)))
			}
			o.logger.Info("Operator: Pocket executed", fields...)
		case skippable(err):
			stats.Skipped++
			o.logger.Debug("Operator: Pocket skipped", zap.String("pocket_id", p.ID), zap.Error(err))
		default:
			stats.Failed++
			o.logger.Warn("Operator: Pocket execution failed", zap.String("pocket_id", p.ID), zap.Error(err))
		}
	}
	return stats, nil
}

func (o *Operator) backedOff(pocketID string, now int64) (int64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	until, ok := o.backoff[pocketID]
	return until, ok && now < until
}

func (o *Operator) deferPocket(pocketID string, until int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.backoff[pocketID] = until
}

func (o *Operator) pruneBackoff(now int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, until := range o.backoff {
		if now >= until {
			delete(o.backoff, id)
		}
	}
}

// rejectedAfterSettle 交易已在场所成交，但结果被拒绝且未记账
func rejectedAfterSettle(err error) bool {
	return errors.Is(err, domain.ErrBuyConditionNotFulfilled) ||
		errors.Is(err, domain.ErrSlippageExceeded)
}

// skippable 预期内的跳过: 状态已变化、余额为零、买入条件未满足
func skippable(err error) bool {
	return errors.Is(err, domain.ErrNotReadyToSwap) ||
		errors.Is(err, domain.ErrZeroSwap) ||
		errors.Is(err, domain.ErrBuyConditionNotFulfilled) ||
		errors.Is(err, domain.ErrConcurrentUpdate)
}

// Scheduler 按 cron 表达式 (含秒) 周期性执行 RunOnce
type Scheduler struct {
	cron     *cron.Cron
	operator *Operator
	logger   *zap.Logger
	baseCtx  context.Context
}

func NewScheduler(baseCtx context.Context, op *Operator, logger *zap.Logger) *Scheduler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		// 上一轮未结束时跳过本轮
		cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		operator: op,
		logger:   logger,
		baseCtx:  baseCtx,
	}
}

// Schedule 注册扫描任务
func (s *Scheduler) Schedule(spec string) (cron.EntryID, error) {
	return s.cron.AddFunc(spec, func() {
		stats, err := s.operator.RunOnce(s.baseCtx)
		if err != nil {
			s.logger.Error("Operator: run failed", zap.Error(err))
			return
		}
		if stats.Due > 0 {
			s.logger.Info("Operator: run finished",
				zap.Int("due", stats.Due),
				zap.Int("executed", stats.Executed),
				zap.Int("skipped", stats.Skipped),
				zap.Int("failed", stats.Failed),
				zap.Int("deferred", stats.Deferred))
		}
	})
}

func (s *Scheduler) Start() {
	s.logger.Info("cron started")
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("cron stopped")
}

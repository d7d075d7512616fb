package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"pockettrade.com/internal/constants"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/event"
	"pockettrade.com/internal/model"
	"pockettrade.com/internal/strategies"
)

// ExecuteCycle 执行一次定投周期
//
// 流程: operator 校验 -> 加锁 -> 可执行检查 -> 兑换 -> 结果校验 -> 提交。
// 结果校验失败时不修改 Pocket 记录。
func (s *PocketServiceImpl) ExecuteCycle(ctx context.Context, caller, pocketID string, refs model.VenueRefs) (result *domain.CycleResult, err error) {
	defer func() {
		metricCycles.WithLabelValues(cycleOutcome(err)).Inc()
	}()

	ok, err := s.registry.IsOperator(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NewForbiddenError("only operator can execute pockets", domain.ErrNotOperator)
	}

	err = s.executor.Run(ctx, pocketID, func(ctx context.Context) error {
		var runErr error
		result, runErr = s.runCycle(ctx, pocketID, refs)
		return runErr
	})
	if err != nil {
		return nil, err
	}

	metricSwappedFrom.Add(float64(result.Outcome.FromAmount))
	metricSwappedTo.Add(float64(result.Outcome.ToAmount))

	outcome := result.Outcome
	s.publish(event.PocketEvent{Type: constants.EventPocketSwapped, Outcome: &outcome, Pocket: result.Pocket})
	if result.StopReached != nil {
		metricStopsReached.Inc()
		s.logger.Info("PocketService: Stop condition reached, pocket closed",
			zap.String("pocket_id", pocketID), zap.String("kind", string(result.StopReached.Kind)))
		s.publish(event.PocketEvent{
			Type:   constants.EventPocketUpdated,
			Reason: constants.ReasonStopConditionReached,
			Pocket: result.Pocket,
		})
		s.publish(event.PocketEvent{
			Type:          constants.EventPocketStopTriggered,
			StopCondition: result.StopReached,
			Pocket:        result.Pocket,
		})
	}
	return result, nil
}

func (s *PocketServiceImpl) runCycle(ctx context.Context, pocketID string, refs model.VenueRefs) (*domain.CycleResult, error) {
	p, err := s.load(s.db.WithContext(ctx), pocketID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !strategies.IsReadyToSwap(p, now) {
		return nil, domain.NewStateError("pocket is not ready to swap", domain.ErrNotReadyToSwap)
	}

	outcome, err := s.adapter.Swap(ctx, p, refs)
	if err != nil {
		if outcome != nil {
			s.logger.Warn("PocketService: Swap outcome rejected",
				zap.String("pocket_id", p.ID),
				zap.Uint64("from_amount", outcome.FromAmount),
				zap.Uint64("to_amount", outcome.ToAmount),
				zap.Error(err))
		}
		return nil, swapError(err)
	}

	applied, err := strategies.ApplyOutcome(p, *outcome, now)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBuyConditionNotFulfilled):
			// 兑换已在交易场所完成，但记录不更新
			s.logger.Warn("PocketService: Buy condition not fulfilled after swap",
				zap.String("pocket_id", p.ID), zap.Uint64("to_amount", outcome.ToAmount))
			return nil, domain.NewSettlementError("buy condition not fulfilled", err)
		case errors.Is(err, domain.ErrNotReadyToSwap):
			return nil, domain.NewStateError("pocket is not ready to swap", err)
		}
		return nil, domain.NewInternalError("failed to apply swap outcome", err)
	}

	if err := s.commitCycle(ctx, p, applied.Pocket); err != nil {
		s.logger.Error("PocketService: failed to commit cycle",
			zap.String("pocket_id", p.ID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("PocketService: Cycle executed",
		zap.String("pocket_id", p.ID),
		zap.Uint64("batch", applied.Pocket.ExecutedBatchAmount),
		zap.Uint64("from_amount", outcome.FromAmount),
		zap.Uint64("to_amount", outcome.ToAmount),
		zap.Int64("next_at", applied.Pocket.NextScheduledExecutionAt))

	return &domain.CycleResult{
		Pocket:      applied.Pocket,
		Outcome:     *outcome,
		StopReached: applied.StopReached,
	}, nil
}

// commitCycle 以旧的批次数与状态为条件更新，防止并发提交
func (s *PocketServiceImpl) commitCycle(ctx context.Context, before, after *model.Pocket) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Pocket{}).
			Where("id = ? AND executed_batch_amount = ? AND status = ?",
				before.ID, before.ExecutedBatchAmount, before.Status).
			Updates(map[string]interface{}{
				"base_balance":                after.BaseBalance,
				"quote_balance":               after.QuoteBalance,
				"executed_batch_amount":       after.ExecutedBatchAmount,
				"next_scheduled_execution_at": after.NextScheduledExecutionAt,
				"status":                      after.Status,
				"updated_at":                  time.Now(),
			})
		if res.Error != nil {
			return domain.NewInternalError("failed to commit cycle", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.NewStateError("pocket was modified concurrently", domain.ErrConcurrentUpdate)
		}
		return nil
	})
}

func swapError(err error) error {
	switch {
	case errors.Is(err, domain.ErrZeroSwap):
		return domain.NewSettlementError("nothing to swap", err)
	case errors.Is(err, domain.ErrSlippageExceeded), errors.Is(err, domain.ErrSwapTokensCannotMatch),
		errors.Is(err, domain.ErrInsufficientFunds):
		return domain.NewSettlementError("swap rejected", err)
	}
	return domain.NewUpstreamError("swap failed", err)
}

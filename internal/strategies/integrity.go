package strategies

import (
	"fmt"
	"math/bits"
	"time"

	"pockettrade.com/internal/condition"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/model"
)

// Applied 兑换结果应用到 Pocket 之后的状态
type Applied struct {
	Pocket *model.Pocket
	// 本周期触发关闭的停止条件
	StopReached *condition.StopCondition
}

// ApplyOutcome 在兑换完成后校验结果并更新 Pocket
//
// 顺序固定:
//  1. 再次检查是否可执行
//  2. 校验买入条件 (用实际得到的数量)
//  3. 更新余额、下一次执行时间、已执行批次
//  4. 检查停止条件，满足任一则关闭
//
// 所有修改都作用在副本上，返回错误时传入的 p 保持不变。
func ApplyOutcome(p *model.Pocket, outcome model.SwapOutcome, now time.Time) (*Applied, error) {
	if !IsReadyToSwap(p, now) {
		return nil, domain.ErrNotReadyToSwap
	}

	if buy := p.Buy(); buy != nil && !condition.EvaluatePrice(*buy, outcome.ToAmount) {
		return nil, domain.ErrBuyConditionNotFulfilled
	}

	next := p.Clone()
	if err := applyBalances(next, outcome); err != nil {
		return nil, err
	}
	next.NextScheduledExecutionAt = NextExecutionAt(p, now)
	next.ExecutedBatchAmount++

	applied := &Applied{Pocket: next}
	if stop, ok := condition.FirstReached(next.StopConditions, next.Progress(now)); ok {
		next.Status = model.PocketStatusClosed
		applied.StopReached = &stop
	}
	return applied, nil
}

func applyBalances(p *model.Pocket, outcome model.SwapOutcome) error {
	var err error
	switch p.Side {
	case model.TradeSideBuy:
		if p.QuoteBalance, err = sub(p.QuoteBalance, outcome.FromAmount, "quote"); err != nil {
			return err
		}
		p.BaseBalance, err = add(p.BaseBalance, outcome.ToAmount, "base")
	case model.TradeSideSell:
		if p.BaseBalance, err = sub(p.BaseBalance, outcome.FromAmount, "base"); err != nil {
			return err
		}
		p.QuoteBalance, err = add(p.QuoteBalance, outcome.ToAmount, "quote")
	default:
		err = fmt.Errorf("unknown trade side %q", p.Side)
	}
	return err
}

func sub(balance, amount uint64, asset string) (uint64, error) {
	if amount > balance {
		return 0, fmt.Errorf("%s balance %d < %d: %w", asset, balance, amount, domain.ErrBalanceUnderflow)
	}
	return balance - amount, nil
}

func add(balance, amount uint64, asset string) (uint64, error) {
	sum, carry := bits.Add64(balance, amount, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%s balance overflow: %w", asset, domain.ErrInternalError)
	}
	return sum, nil
}

// Package swap 把一次定投周期转换成交易场所的下单与结算调用
// 实际成交数量通过调用前后托管账户余额差得到，不依赖交易场所的返回值
package swap

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/model"
)

type Adapter struct {
	venue   domain.Venue
	custody domain.Custody
	logger  *zap.Logger
}

func NewAdapter(venue domain.Venue, custody domain.Custody, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{venue: venue, custody: custody, logger: logger}
}

// leg 一次兑换涉及的两个托管账户
type leg struct {
	fromAccount, toAccount string
	fromMint, toMint       string
}

// SizeTrade 计算订单方向与数量
// 数量不超过卖出方当前余额: min(batch_volume, balance)
func SizeTrade(p *model.Pocket) (model.OrderSide, uint64) {
	if p.Side == model.TradeSideSell {
		return model.OrderSideAsk, min(p.BatchVolume, p.BaseBalance)
	}
	return model.OrderSideBid, min(p.BatchVolume, p.QuoteBalance)
}

func legOf(p *model.Pocket) leg {
	if p.Side == model.TradeSideSell {
		return leg{fromAccount: p.BaseVault, toAccount: p.QuoteVault, fromMint: p.BaseMint, toMint: p.QuoteMint}
	}
	return leg{fromAccount: p.QuoteVault, toAccount: p.BaseVault, fromMint: p.QuoteMint, toMint: p.BaseMint}
}

// Swap 执行一次兑换并返回实际结果
// 风控检查失败时同时返回结果与错误，结果仅用于记录
func (a *Adapter) Swap(ctx context.Context, p *model.Pocket, refs model.VenueRefs) (*model.SwapOutcome, error) {
	l := legOf(p)
	if l.fromMint == l.toMint {
		return nil, domain.ErrSwapTokensCannotMatch
	}

	side, size := SizeTrade(p)
	if size == 0 {
		return nil, domain.ErrZeroSwap
	}
	// 记录余额与托管账户不一致时，以较小者为准
	vault, err := a.custody.Balance(ctx, l.fromAccount)
	if err != nil {
		return nil, fmt.Errorf("read balance of %s: %w", l.fromAccount, err)
	}
	if size = min(size, vault); size == 0 {
		return nil, domain.ErrZeroSwap
	}
	if refs.MarketID == "" {
		refs.MarketID = p.MarketKey
	}

	var outcome *model.SwapOutcome
	if refs.IsTransitive() {
		outcome, err = a.swapTransitive(ctx, p, l, size, refs)
	} else {
		outcome, err = a.swapDirect(ctx, p, l, side, size, refs)
	}
	if err != nil {
		return nil, err
	}

	a.logger.Info("Swap: settled",
		zap.String("pocket_id", p.ID),
		zap.Uint64("given", outcome.GivenAmount),
		zap.Uint64("from_amount", outcome.FromAmount),
		zap.Uint64("to_amount", outcome.ToAmount),
		zap.Uint64("spill", outcome.SpillAmount))

	if err := CheckOutcome(*outcome); err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (a *Adapter) swapDirect(ctx context.Context, p *model.Pocket, l leg, side model.OrderSide, size uint64, refs model.VenueRefs) (*model.SwapOutcome, error) {
	fromBefore, toBefore, err := a.sample(ctx, l.fromAccount, l.toAccount)
	if err != nil {
		return nil, err
	}

	order := model.Order{
		MarketID:     refs.MarketID,
		Side:         side,
		Size:         size,
		TimeInForce:  model.TimeInForceIOC,
		SelfTrade:    model.SelfTradeDecrementTake,
		PayerAccount: l.fromAccount,
		Owner:        p.ID,
	}
	if err := a.venue.PlaceAndMatch(ctx, order); err != nil {
		return nil, fmt.Errorf("place order on %s: %w", refs.MarketID, err)
	}
	if err := a.venue.Settle(ctx, model.SettleRequest{
		MarketID:    refs.MarketID,
		Owner:       p.ID,
		BaseWallet:  p.BaseVault,
		QuoteWallet: p.QuoteVault,
	}); err != nil {
		return nil, fmt.Errorf("settle on %s: %w", refs.MarketID, err)
	}

	fromAfter, toAfter, err := a.sample(ctx, l.fromAccount, l.toAccount)
	if err != nil {
		return nil, err
	}
	fromAmount, err := decreased(fromBefore, fromAfter, l.fromAccount)
	if err != nil {
		return nil, err
	}
	toAmount, err := increased(toBefore, toAfter, l.toAccount)
	if err != nil {
		return nil, err
	}

	var rate *model.ExchangeRate
	if refs.MinExchangeRate != nil {
		r := *refs.MinExchangeRate
		r.QuoteDecimals = 0 // 直接兑换没有中间资产
		rate = &r
	}

	return &model.SwapOutcome{
		GivenAmount:     size,
		FromAmount:      fromAmount,
		ToAmount:        toAmount,
		FromMint:        l.fromMint,
		ToMint:          l.toMint,
		QuoteMint:       p.QuoteMint,
		MinExchangeRate: rate,
	}, nil
}

// swapTransitive 两段式兑换: MarketID 卖出 from 换中间资产，ViaMarketID 用所得买入 to
// 第二段未用完的中间资产 (spill) 留在中间账户，只在结果中报告
func (a *Adapter) swapTransitive(ctx context.Context, p *model.Pocket, l leg, size uint64, refs model.VenueRefs) (*model.SwapOutcome, error) {
	if refs.IntermediateMint == "" {
		return nil, fmt.Errorf("transitive swap requires intermediate mint: %w", domain.ErrInvalidInput)
	}
	if refs.IntermediateMint == l.fromMint || refs.IntermediateMint == l.toMint {
		return nil, domain.ErrSwapTokensCannotMatch
	}
	mid := refs.IntermediateAccount
	if mid == "" {
		mid = model.VaultAccount(p.ID, refs.IntermediateMint)
	}

	// 第一段: 卖出
	fromBefore, midBefore, err := a.sample(ctx, l.fromAccount, mid)
	if err != nil {
		return nil, err
	}
	if err := a.venue.PlaceAndMatch(ctx, model.Order{
		MarketID:     refs.MarketID,
		Side:         model.OrderSideAsk,
		Size:         size,
		TimeInForce:  model.TimeInForceIOC,
		SelfTrade:    model.SelfTradeDecrementTake,
		PayerAccount: l.fromAccount,
		Owner:        p.ID,
	}); err != nil {
		return nil, fmt.Errorf("place sell order on %s: %w", refs.MarketID, err)
	}
	if err := a.venue.Settle(ctx, model.SettleRequest{
		MarketID: refs.MarketID, Owner: p.ID, BaseWallet: l.fromAccount, QuoteWallet: mid,
	}); err != nil {
		return nil, fmt.Errorf("settle on %s: %w", refs.MarketID, err)
	}
	fromAfter, midAfterSell, err := a.sample(ctx, l.fromAccount, mid)
	if err != nil {
		return nil, err
	}
	fromAmount, err := decreased(fromBefore, fromAfter, l.fromAccount)
	if err != nil {
		return nil, err
	}
	sellProceeds, err := increased(midBefore, midAfterSell, mid)
	if err != nil {
		return nil, err
	}
	if sellProceeds == 0 {
		return nil, domain.ErrZeroSwap
	}

	// 第二段: 买入
	toBefore, err := a.custody.Balance(ctx, l.toAccount)
	if err != nil {
		return nil, fmt.Errorf("read balance of %s: %w", l.toAccount, err)
	}
	if err := a.venue.PlaceAndMatch(ctx, model.Order{
		MarketID:     refs.ViaMarketID,
		Side:         model.OrderSideBid,
		Size:         sellProceeds,
		TimeInForce:  model.TimeInForceIOC,
		SelfTrade:    model.SelfTradeDecrementTake,
		PayerAccount: mid,
		Owner:        p.ID,
	}); err != nil {
		return nil, fmt.Errorf("place buy order on %s: %w", refs.ViaMarketID, err)
	}
	if err := a.venue.Settle(ctx, model.SettleRequest{
		MarketID: refs.ViaMarketID, Owner: p.ID, BaseWallet: l.toAccount, QuoteWallet: mid,
	}); err != nil {
		return nil, fmt.Errorf("settle on %s: %w", refs.ViaMarketID, err)
	}
	toAfter, midAfterBuy, err := a.sample(ctx, l.toAccount, mid)
	if err != nil {
		return nil, err
	}
	toAmount, err := increased(toBefore, toAfter, l.toAccount)
	if err != nil {
		return nil, err
	}
	buySpent, err := decreased(midAfterSell, midAfterBuy, mid)
	if err != nil {
		return nil, err
	}
	if buySpent > sellProceeds {
		return nil, fmt.Errorf("intermediate spent %d > proceeds %d: %w", buySpent, sellProceeds, domain.ErrBalanceUnderflow)
	}

	return &model.SwapOutcome{
		GivenAmount:     size,
		FromAmount:      fromAmount,
		ToAmount:        toAmount,
		QuoteAmount:     sellProceeds,
		SpillAmount:     sellProceeds - buySpent,
		FromMint:        l.fromMint,
		ToMint:          l.toMint,
		QuoteMint:       refs.IntermediateMint,
		MinExchangeRate: refs.MinExchangeRate,
	}, nil
}

func (a *Adapter) sample(ctx context.Context, x, y string) (uint64, uint64, error) {
	bx, err := a.custody.Balance(ctx, x)
	if err != nil {
		return 0, 0, fmt.Errorf("read balance of %s: %w", x, err)
	}
	by, err := a.custody.Balance(ctx, y)
	if err != nil {
		return 0, 0, fmt.Errorf("read balance of %s: %w", y, err)
	}
	return bx, by, nil
}

func decreased(before, after uint64, account string) (uint64, error) {
	if after > before {
		return 0, fmt.Errorf("%s grew from %d to %d while paying: %w", account, before, after, domain.ErrInternalError)
	}
	return before - after, nil
}

func increased(before, after uint64, account string) (uint64, error) {
	if after < before {
		return 0, fmt.Errorf("%s shrank from %d to %d while receiving: %w", account, before, after, domain.ErrInternalError)
	}
	return after - before, nil
}

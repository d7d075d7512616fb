package venue

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/shopspring/decimal"
	"pockettrade.com/internal/config"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/model"
)

var (
	ErrUnknownMarket = errors.New("unknown market")
	ErrMarketHalted  = errors.New("market halted")
)

// Market paper 撮合的单个市场，以固定价格成交
type Market struct {
	ID        string
	BaseMint  string
	QuoteMint string
	// Price 每 1 个 base 最小单位对应的 quote 数量
	Price decimal.Decimal
	// MaxBase 单笔订单最多成交的 base 数量，0 表示不限
	MaxBase uint64
}

// Paper 内存撮合 + 内存托管账户
type Paper struct {
	mu        sync.Mutex
	markets   map[string]Market
	halted    map[string]bool
	balances  map[string]uint64
	unsettled map[string]map[string]uint64 // owner/market -> mint -> amount
}

var (
	_ domain.Venue   = (*Paper)(nil)
	_ domain.Custody = (*Paper)(nil)
)

func NewPaper(markets ...Market) *Paper {
	p := &Paper{
		markets:   make(map[string]Market),
		halted:    make(map[string]bool),
		balances:  make(map[string]uint64),
		unsettled: make(map[string]map[string]uint64),
	}
	for _, m := range markets {
		p.markets[m.ID] = m
	}
	return p
}

// NewPaperFromConfig 根据配置创建市场
func NewPaperFromConfig(cfgs []config.PaperMarketConfig) (*Paper, error) {
	markets := make([]Market, 0, len(cfgs))
	for _, c := range cfgs {
		price, err := decimal.NewFromString(c.Price)
		if err != nil {
			return nil, fmt.Errorf("paper market %s: invalid price %q: %w", c.ID, c.Price, err)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("paper market %s: price must be positive", c.ID)
		}
		markets = append(markets, Market{ID: c.ID, BaseMint: c.BaseMint, QuoteMint: c.QuoteMint, Price: price, MaxBase: c.MaxBase})
	}
	return NewPaper(markets...), nil
}

func (p *Paper) SetPrice(marketID string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.markets[marketID]; ok {
		m.Price = price
		p.markets[marketID] = m
	}
}

// Halt 暂停市场，之后的下单直接失败
func (p *Paper) Halt(marketID string, halted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.halted[marketID] = halted
}

// Fund 直接给账户加余额
func (p *Paper) Fund(account string, amount uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[account] += amount
}

// Credit 与 Ledger.Credit 一致的充值入口
func (p *Paper) Credit(_ context.Context, account string, amount uint64) error {
	p.Fund(account, amount)
	return nil
}

func (p *Paper) Balance(_ context.Context, account string) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[account], nil
}

func (p *Paper) Transfer(_ context.Context, from, to string, amount uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.balances[from] < amount {
		return fmt.Errorf("%s: %w", from, ErrInsufficientFunds)
	}
	p.balances[from] -= amount
	p.balances[to] += amount
	return nil
}

// PlaceAndMatch 以市场价格立即成交，未成交部分与成交所得都进入未结算余额
func (p *Paper) PlaceAndMatch(_ context.Context, order model.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.markets[order.MarketID]
	if !ok {
		return fmt.Errorf("%s: %w", order.MarketID, ErrUnknownMarket)
	}
	if p.halted[order.MarketID] {
		return fmt.Errorf("%s: %w", order.MarketID, ErrMarketHalted)
	}
	if order.TimeInForce != model.TimeInForceIOC {
		return fmt.Errorf("unsupported time in force %q: %w", order.TimeInForce, ErrRejected)
	}
	if p.balances[order.PayerAccount] < order.Size {
		return fmt.Errorf("%s: %w", order.PayerAccount, ErrInsufficientFunds)
	}
	p.balances[order.PayerAccount] -= order.Size

	var baseOut, quoteOut uint64
	switch order.Side {
	case model.OrderSideAsk:
		fill := order.Size
		if m.MaxBase > 0 {
			fill = min(fill, m.MaxBase)
		}
		quoteOut = toUint(fromUint(fill).Mul(m.Price).Floor())
		if quoteOut == 0 {
			fill = 0
		}
		baseOut = order.Size - fill
	case model.OrderSideBid:
		fill := toUint(fromUint(order.Size).Div(m.Price).Floor())
		if m.MaxBase > 0 {
			fill = min(fill, m.MaxBase)
		}
		spent := min(order.Size, toUint(fromUint(fill).Mul(m.Price).Ceil()))
		baseOut = fill
		quoteOut = order.Size - spent
	default:
		p.balances[order.PayerAccount] += order.Size
		return fmt.Errorf("unknown side %q: %w", order.Side, ErrRejected)
	}

	bucket := p.bucket(order.Owner, m.ID)
	bucket[m.BaseMint] += baseOut
	bucket[m.QuoteMint] += quoteOut
	return nil
}

// Settle 把未结算余额划入指定钱包
func (p *Paper) Settle(_ context.Context, req model.SettleRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.markets[req.MarketID]
	if !ok {
		return fmt.Errorf("%s: %w", req.MarketID, ErrUnknownMarket)
	}
	key := req.Owner + "/" + req.MarketID
	bucket := p.unsettled[key]
	p.balances[req.BaseWallet] += bucket[m.BaseMint]
	p.balances[req.QuoteWallet] += bucket[m.QuoteMint]
	delete(p.unsettled, key)
	return nil
}

func (p *Paper) bucket(owner, marketID string) map[string]uint64 {
	key := owner + "/" + marketID
	b, ok := p.unsettled[key]
	if !ok {
		b = make(map[string]uint64)
		p.unsettled[key] = b
	}
	return b
}

func fromUint(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func toUint(d decimal.Decimal) uint64 {
	if d.IsNegative() {
		return 0
	}
	b := d.BigInt()
	if !b.IsUint64() {
		return ^uint64(0)
	}
	return b.Uint64()
}

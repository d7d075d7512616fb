package model

// OrderSide 订单方向
type OrderSide string

const (
	OrderSideBid OrderSide = "bid"
	OrderSideAsk OrderSide = "ask"
)

const (
	TimeInForceIOC          = "ioc"
	SelfTradeDecrementTake = "decrement_take"
)

// Order 提交到交易场所的 IOC 订单
// Size 以卖出方资产计: bid 为 quote 数量，ask 为 base 数量
type Order struct {
	MarketID     string    `json:"market_id"`
	Side         OrderSide `json:"side"`
	Size         uint64    `json:"size"`
	LimitPrice   uint64    `json:"limit_price,omitempty"` // 0 表示不限价
	TimeInForce  string    `json:"time_in_force"`
	SelfTrade    string    `json:"self_trade"`
	PayerAccount string    `json:"payer_account"`
	Owner        string    `json:"owner"`
}

// SettleRequest 将已成交的资金结算到托管账户
type SettleRequest struct {
	MarketID    string `json:"market_id"`
	Owner       string `json:"owner"`
	BaseWallet  string `json:"base_wallet"`
	QuoteWallet string `json:"quote_wallet"`
}

// ExchangeRate 调用方给出的最低可接受汇率
// Rate 按 FromDecimals / QuoteDecimals 缩放后的整数表示
type ExchangeRate struct {
	Rate          uint64 `json:"rate"`
	FromDecimals  uint8  `json:"from_decimals"`
	QuoteDecimals uint8  `json:"quote_decimals"`
	Strict        bool   `json:"strict"`
}

// VenueRefs 执行一次周期所需的交易场所参数
// ViaMarketID 非空时走两段式 (transitive) 兑换:
// 先在 MarketID 卖出换成 IntermediateMint，再在 ViaMarketID 买入目标资产
type VenueRefs struct {
	MarketID            string        `json:"market_id"`
	ViaMarketID         string        `json:"via_market_id,omitempty"`
	IntermediateMint    string        `json:"intermediate_mint,omitempty"`
	IntermediateAccount string        `json:"intermediate_account,omitempty"`
	MinExchangeRate     *ExchangeRate `json:"min_exchange_rate,omitempty"`
}

func (r VenueRefs) IsTransitive() bool {
	return r.ViaMarketID != ""
}

// SwapOutcome 一次兑换的实际结果，只在当前周期内使用，不持久化
type SwapOutcome struct {
	GivenAmount     uint64        `json:"given_amount"`
	FromAmount      uint64        `json:"from_amount"`
	ToAmount        uint64        `json:"to_amount"`
	QuoteAmount     uint64        `json:"quote_amount"` // 两段式兑换第一段卖出得到的中间资产
	SpillAmount     uint64        `json:"spill_amount"` // 其中未被第二段用掉的部分
	FromMint        string        `json:"from_mint"`
	ToMint          string        `json:"to_mint"`
	QuoteMint       string        `json:"quote_mint"`
	MinExchangeRate *ExchangeRate `json:"min_exchange_rate,omitempty"`
}

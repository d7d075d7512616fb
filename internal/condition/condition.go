// Package condition 定义 Pocket 的买入条件与止损/停止条件
// 合法性校验与求值分别是独立的纯函数
package condition

import "errors"

// PriceOperator 买入条件的比较类型
type PriceOperator string

const (
	PriceGT  PriceOperator = "gt"
	PriceGTE PriceOperator = "gte"
	PriceLT  PriceOperator = "lt"
	PriceLTE PriceOperator = "lte"
	PriceEQ  PriceOperator = "eq"
	PriceNEQ PriceOperator = "neq"
	PriceBW  PriceOperator = "bw"  // 区间内 [from, to]
	PriceNBW PriceOperator = "nbw" // 区间外
)

// PriceCondition 可选的买入条件
// 单阈值比较使用 Value，区间比较使用 FromValue / ToValue
type PriceCondition struct {
	Operator  PriceOperator `json:"operator"`
	Value     uint64        `json:"value,omitempty"`
	FromValue uint64        `json:"from_value,omitempty"`
	ToValue   uint64        `json:"to_value,omitempty"`
}

// StopKind 停止条件类型
type StopKind string

const (
	StopEndTime              StopKind = "end_time"
	StopBaseTokenReach       StopKind = "base_token_reach"
	StopQuoteTokenReach      StopKind = "quote_token_reach"
	StopSpentBaseTokenReach  StopKind = "spent_base_token_reach"
	StopSpentQuoteTokenReach StopKind = "spent_quote_token_reach"
	StopBatchAmountReach     StopKind = "batch_amount_reach"
)

// StopCondition 任意一个满足即关闭 Pocket
// IsPrimary 仅用于前端展示主进度指标，求值时不区分
type StopCondition struct {
	Kind      StopKind `json:"kind"`
	Value     uint64   `json:"value"`
	IsPrimary bool     `json:"is_primary"`
}

// Progress 停止条件求值所需的 Pocket 状态快照
type Progress struct {
	Now                 int64
	BaseBalance         uint64
	QuoteBalance        uint64
	TotalBaseDeposit    uint64
	TotalQuoteDeposit   uint64
	ExecutedBatchAmount uint64
}

var (
	ErrInvalidBuyCondition  = errors.New("not valid buy condition")
	ErrInvalidStopCondition = errors.New("not valid stop condition")
	ErrMultiplePrimary      = errors.New("at most one primary stop condition is allowed")
)

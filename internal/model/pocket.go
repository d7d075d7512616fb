package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
	"pockettrade.com/internal/condition"
)

// PocketStatus Pocket 生命周期状态
type PocketStatus string

const (
	PocketStatusActive    PocketStatus = "active"
	PocketStatusPaused    PocketStatus = "paused"
	PocketStatusClosed    PocketStatus = "closed"
	PocketStatusWithdrawn PocketStatus = "withdrawn" // 终态，资金已全部取出
)

// TradeSide 每批次买入还是卖出 base 资产
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// AssetKind 指定 base 或 quote 余额
type AssetKind string

const (
	AssetBase  AssetKind = "base"
	AssetQuote AssetKind = "quote"
)

// Pocket 用户的定投 (DCA) 策略
type Pocket struct {
	ID      string `gorm:"primaryKey" json:"id"`
	OwnerID string `gorm:"index;not null" json:"owner_id"`
	Name    string `json:"name"`

	Status PocketStatus `gorm:"type:varchar(16);index" json:"status"`

	// 配置 (创建后不可变)
	BaseMint       string    `gorm:"not null" json:"base_mint"`
	QuoteMint      string    `gorm:"not null" json:"quote_mint"`
	MarketKey      string    `gorm:"index" json:"market_key"`
	Side           TradeSide `gorm:"type:varchar(8)" json:"side"`
	BatchVolume    uint64    `json:"batch_volume"`
	StartAt        int64     `json:"start_at"`
	FrequencyHours uint64    `json:"frequency_hours"`

	BuyCondition   datatypes.JSONType[*condition.PriceCondition] `json:"buy_condition"`
	StopConditions datatypes.JSONSlice[condition.StopCondition]  `json:"stop_conditions"`

	// 托管账户
	BaseVault  string `json:"base_vault"`
	QuoteVault string `json:"quote_vault"`

	// 运行时状态
	BaseBalance              uint64 `json:"base_token_balance"`
	QuoteBalance             uint64 `json:"quote_token_balance"`
	TotalBaseDeposit         uint64 `json:"total_base_deposit_amount"`
	TotalQuoteDeposit        uint64 `json:"total_quote_deposit_amount"`
	ExecutedBatchAmount      uint64 `json:"executed_batch_amount"`
	NextScheduledExecutionAt int64  `gorm:"index" json:"next_scheduled_execution_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VaultAccount 根据 pocket id 与资产生成托管账户名
func VaultAccount(pocketID, mint string) string {
	return fmt.Sprintf("pocket:%s:%s", pocketID, mint)
}

func (p *Pocket) IsAbleToDeposit() bool {
	return p.Status != PocketStatusClosed && p.Status != PocketStatusWithdrawn
}

func (p *Pocket) IsAbleToClose() bool {
	return p.Status != PocketStatusClosed && p.Status != PocketStatusWithdrawn
}

func (p *Pocket) IsAbleToWithdraw() bool {
	return p.Status == PocketStatusClosed
}

func (p *Pocket) IsAbleToRestart() bool {
	return p.Status == PocketStatusPaused
}

func (p *Pocket) IsAbleToPause() bool {
	return p.Status == PocketStatusActive
}

// Buy 返回买入条件，未配置时为 nil
func (p *Pocket) Buy() *condition.PriceCondition {
	return p.BuyCondition.Data()
}

// Progress 生成停止条件求值用的快照
func (p *Pocket) Progress(now time.Time) condition.Progress {
	return condition.Progress{
		Now:                 now.Unix(),
		BaseBalance:         p.BaseBalance,
		QuoteBalance:        p.QuoteBalance,
		TotalBaseDeposit:    p.TotalBaseDeposit,
		TotalQuoteDeposit:   p.TotalQuoteDeposit,
		ExecutedBatchAmount: p.ExecutedBatchAmount,
	}
}

// Clone 深拷贝，条件切片不与原对象共享
func (p *Pocket) Clone() *Pocket {
	c := *p
	if p.StopConditions != nil {
		c.StopConditions = append(datatypes.JSONSlice[condition.StopCondition](nil), p.StopConditions...)
	}
	if buy := p.Buy(); buy != nil {
		b := *buy
		c.BuyCondition = datatypes.NewJSONType(&b)
	}
	return &c
}

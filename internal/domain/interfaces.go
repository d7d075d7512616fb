package domain

import (
	"context"

	"pockettrade.com/internal/condition"
	"pockettrade.com/internal/model"
)

// ===========================
// Pocket 服务接口
// ===========================

// CreatePocketInput 创建 Pocket 所需的完整配置
type CreatePocketInput struct {
	ID             string                    `json:"id"`
	Name           string                    `json:"name"`
	BaseMint       string                    `json:"base_mint"`
	QuoteMint      string                    `json:"quote_mint"`
	MarketKey      string                    `json:"market_key"`
	Side           model.TradeSide           `json:"side"`
	BatchVolume    uint64                    `json:"batch_volume"`
	StartAt        int64                     `json:"start_at"`
	FrequencyHours uint64                    `json:"frequency_hours"`
	BuyCondition   *condition.PriceCondition `json:"buy_condition,omitempty"`
	StopConditions []condition.StopCondition `json:"stop_conditions"`
}

// PocketService 定义 Pocket 相关的业务操作
type PocketService interface {
	// 创建 Pocket (owner 为调用者)
	CreatePocket(ctx context.Context, owner string, in CreatePocketInput) (*model.Pocket, error)
	// 用户切换状态 (active / paused / closed)
	UpdateStatus(ctx context.Context, caller, pocketID string, target model.PocketStatus) (*model.Pocket, error)
	// 从用户钱包存入
	Deposit(ctx context.Context, caller, pocketID string, asset model.AssetKind, amount uint64) (*model.Pocket, error)
	// 关闭后取出全部资金，目标账户为空时退回用户钱包
	Withdraw(ctx context.Context, caller, pocketID, baseDest, quoteDest string) (*model.Pocket, error)
	// 获取 Pocket 详情
	GetPocket(ctx context.Context, pocketID string) (*model.Pocket, error)
	// 获取用户 Pocket 列表
	ListPockets(ctx context.Context, owner string, page, pageSize int) ([]model.Pocket, int64, error)
	// 获取当前可执行的 Pocket，now <= 0 表示使用服务时钟
	ListDuePockets(ctx context.Context, now int64, limit int) ([]model.Pocket, error)
	// 执行一次定投周期 (仅 operator)
	ExecuteCycle(ctx context.Context, caller, pocketID string, refs model.VenueRefs) (*CycleResult, error)
}

// CycleResult 一次成功周期的结果
type CycleResult struct {
	Pocket  *model.Pocket     `json:"pocket"`
	Outcome model.SwapOutcome `json:"outcome"`
	// 本周期因停止条件关闭时非空
	StopReached *condition.StopCondition `json:"stop_reached,omitempty"`
}

// ===========================
// Registry 服务接口
// ===========================

// RegistryService 平台授权配置，修改操作仅 registry owner 可调用
type RegistryService interface {
	Initialize(ctx context.Context, owner string, operators []string) (*model.Registry, error)
	UpdateOperators(ctx context.Context, caller string, operators []string) (*model.Registry, error)
	AddMint(ctx context.Context, caller, mint, custodyAccount string) (*model.Registry, error)
	SetMintEnabled(ctx context.Context, caller, mint string, enabled bool) (*model.Registry, error)
	GetRegistry(ctx context.Context) (*model.Registry, error)

	IsOperator(ctx context.Context, identity string) (bool, error)
	IsMintWhitelisted(ctx context.Context, mint string) (bool, error)
	GetMintInfo(ctx context.Context, mint string) (*model.MintInfo, error)
}

// ===========================
// 交易场所接口
// ===========================

// Venue 外部撮合场所，只提供下单撮合与结算两个操作
type Venue interface {
	PlaceAndMatch(ctx context.Context, order model.Order) error
	Settle(ctx context.Context, req model.SettleRequest) error
}

// Custody 托管账户
type Custody interface {
	Balance(ctx context.Context, account string) (uint64, error)
	Transfer(ctx context.Context, from, to string, amount uint64) error
}

// Funder 给账户充值 (管理员入口)
type Funder interface {
	Credit(ctx context.Context, account string, amount uint64) error
}

// Locker 分布式锁，返回的 release 必须调用
type Locker interface {
	Obtain(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// ===========================
// WebSocket 推送接口
// ===========================

// Notifier 定义推送通知的接口
type Notifier interface {
	// 推送给指定用户
	PushToUser(userID string, data interface{})
	// 广播消息给所有连接的客户端
	BroadcastToAll(data interface{})
}

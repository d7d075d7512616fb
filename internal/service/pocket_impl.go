package service

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"pockettrade.com/internal/condition"
	"pockettrade.com/internal/constants"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/event"
	"pockettrade.com/internal/model"
	"pockettrade.com/internal/strategies"
	"pockettrade.com/internal/swap"
)

// PocketServiceImpl 实现 domain.PocketService 接口
type PocketServiceImpl struct {
	db       *gorm.DB
	registry domain.RegistryService
	adapter  *swap.Adapter
	custody  domain.Custody
	executor *strategies.Executor
	bus      *event.Bus
	logger   *zap.Logger

	now func() time.Time
}

var _ domain.PocketService = (*PocketServiceImpl)(nil)

// NewPocketService 创建 Pocket 服务
func NewPocketService(
	db *gorm.DB,
	registry domain.RegistryService,
	adapter *swap.Adapter,
	custody domain.Custody,
	executor *strategies.Executor,
	bus *event.Bus,
	logger *zap.Logger,
) *PocketServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PocketServiceImpl{
		db:       db,
		registry: registry,
		adapter:  adapter,
		custody:  custody,
		executor: executor,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock 替换时间来源
func (s *PocketServiceImpl) WithClock(now func() time.Time) *PocketServiceImpl {
	s.now = now
	return s
}

// CreatePocket 创建 Pocket
func (s *PocketServiceImpl) CreatePocket(ctx context.Context, owner string, in domain.CreatePocketInput) (*model.Pocket, error) {
	if err := validatePocketInput(owner, in, s.now()); err != nil {
		return nil, err
	}

	for _, mint := range []string{in.BaseMint, in.QuoteMint} {
		ok, err := s.registry.IsMintWhitelisted(ctx, mint)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.NewValidationError("mint is not whitelisted", fmt.Errorf("%s: %w", mint, domain.ErrMintNotWhitelisted))
		}
	}

	pocket := &model.Pocket{
		ID:                       in.ID,
		OwnerID:                  owner,
		Name:                     in.Name,
		Status:                   model.PocketStatusActive,
		BaseMint:                 in.BaseMint,
		QuoteMint:                in.QuoteMint,
		MarketKey:                in.MarketKey,
		Side:                     in.Side,
		BatchVolume:              in.BatchVolume,
		StartAt:                  in.StartAt,
		FrequencyHours:           in.FrequencyHours,
		StopConditions:           in.StopConditions,
		BaseVault:                model.VaultAccount(in.ID, in.BaseMint),
		QuoteVault:               model.VaultAccount(in.ID, in.QuoteMint),
		NextScheduledExecutionAt: in.StartAt,
	}
	if pocket.StopConditions == nil {
		pocket.StopConditions = []condition.StopCondition{}
	}
	if in.BuyCondition != nil {
		buy := *in.BuyCondition
		pocket.BuyCondition = datatypes.NewJSONType(&buy)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Pocket{}).Where("id = ?", in.ID).Count(&count).Error; err != nil {
			return domain.NewInternalError("failed to check pocket", err)
		}
		if count > 0 {
			return domain.NewConflictError("pocket already exists")
		}
		if err := tx.Create(pocket).Error; err != nil {
			return domain.NewInternalError("failed to create pocket", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("PocketService: Pocket created", zap.String("pocket_id", pocket.ID), zap.String("owner", owner))
	s.publish(event.PocketEvent{Type: constants.EventPocketCreated, Pocket: pocket})
	return pocket, nil
}

// UpdateStatus 用户切换状态
// withdrawn 只能通过 Withdraw 达到，这里始终拒绝
func (s *PocketServiceImpl) UpdateStatus(ctx context.Context, caller, pocketID string, target model.PocketStatus) (*model.Pocket, error) {
	switch target {
	case model.PocketStatusWithdrawn:
		return nil, domain.NewStateError("withdrawn status can only be reached by withdrawing", domain.ErrInvalidTransition)
	case model.PocketStatusActive, model.PocketStatusPaused, model.PocketStatusClosed:
	default:
		return nil, domain.NewBadRequestError(fmt.Sprintf("unknown status %q", target))
	}

	var updated *model.Pocket
	err := s.executor.Run(ctx, pocketID, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			p, err := s.loadOwned(lockForUpdate(tx), pocketID, caller)
			if err != nil {
				return err
			}
			if !canTransition(p, target) {
				return domain.NewStateError(fmt.Sprintf("cannot change status from %s to %s", p.Status, target), domain.ErrInvalidTransition)
			}
			if err := tx.Model(p).Update("status", target).Error; err != nil {
				return domain.NewInternalError("failed to update pocket status", err)
			}
			p.Status = target
			updated = p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("PocketService: Pocket status updated",
		zap.String("pocket_id", pocketID), zap.String("status", string(target)))
	s.publish(event.PocketEvent{Type: constants.EventPocketUpdated, Reason: constants.ReasonUserUpdated, Pocket: updated})
	return updated, nil
}

func canTransition(p *model.Pocket, target model.PocketStatus) bool {
	switch target {
	case model.PocketStatusActive:
		return p.IsAbleToRestart()
	case model.PocketStatusPaused:
		return p.IsAbleToPause()
	case model.PocketStatusClosed:
		return p.IsAbleToClose()
	}
	return false
}

// Deposit 从用户钱包划转到 Pocket 托管账户，再记账
func (s *PocketServiceImpl) Deposit(ctx context.Context, caller, pocketID string, asset model.AssetKind, amount uint64) (*model.Pocket, error) {
	if amount == 0 {
		return nil, domain.NewBadRequestError("amount must be positive")
	}
	if asset != model.AssetBase && asset != model.AssetQuote {
		return nil, domain.NewBadRequestError(fmt.Sprintf("unknown asset %q", asset))
	}

	var updated *model.Pocket
	err := s.executor.Run(ctx, pocketID, func(ctx context.Context) error {
		p, err := s.loadOwned(s.db.WithContext(ctx), pocketID, caller)
		if err != nil {
			return err
		}
		if !p.IsAbleToDeposit() {
			return domain.NewStateError("pocket is not able to deposit", domain.ErrNotAbleToDeposit)
		}

		mint, vault := p.QuoteMint, p.QuoteVault
		balance, total := p.QuoteBalance, p.TotalQuoteDeposit
		balanceCol, totalCol := "quote_balance", "total_quote_deposit"
		if asset == model.AssetBase {
			mint, vault = p.BaseMint, p.BaseVault
			balance, total = p.BaseBalance, p.TotalBaseDeposit
			balanceCol, totalCol = "base_balance", "total_base_deposit"
		}
		newBalance, c1 := bits.Add64(balance, amount, 0)
		newTotal, c2 := bits.Add64(total, amount, 0)
		if c1 != 0 || c2 != 0 {
			return domain.NewBadRequestError("deposit amount overflows balance")
		}

		source := model.WalletAccount(caller, mint)
		if err := s.custody.Transfer(ctx, source, vault, amount); err != nil {
			return custodyError("custody transfer failed", err)
		}

		res := s.db.WithContext(ctx).Model(&model.Pocket{}).
			Where("id = ? AND "+balanceCol+" = ? AND "+totalCol+" = ?", p.ID, balance, total).
			Updates(map[string]interface{}{balanceCol: newBalance, totalCol: newTotal})
		if res.Error == nil && res.RowsAffected == 0 {
			res.Error = domain.ErrConcurrentUpdate
		}
		if res.Error != nil {
			// 记账失败，把资金退回
			if rerr := s.custody.Transfer(context.Background(), vault, source, amount); rerr != nil {
				s.logger.Error("PocketService: failed to refund deposit",
					zap.String("pocket_id", p.ID), zap.Uint64("amount", amount), zap.Error(rerr))
			}
			return domain.NewInternalError("failed to record deposit", res.Error)
		}

		if asset == model.AssetBase {
			p.BaseBalance, p.TotalBaseDeposit = newBalance, newTotal
		} else {
			p.QuoteBalance, p.TotalQuoteDeposit = newBalance, newTotal
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	metricDeposits.WithLabelValues(string(asset)).Inc()
	s.logger.Info("PocketService: Deposited",
		zap.String("pocket_id", pocketID), zap.String("asset", string(asset)), zap.Uint64("amount", amount))
	s.publish(event.PocketEvent{Type: constants.EventPocketDeposited, Asset: asset, Amount: amount, Pocket: updated})
	return updated, nil
}

// Withdraw 取出托管账户中的全部资金，要求 Pocket 已关闭
// 余额清零与状态变更在同一事务中，划转失败时事务回滚
func (s *PocketServiceImpl) Withdraw(ctx context.Context, caller, pocketID, baseDest, quoteDest string) (*model.Pocket, error) {
	var updated *model.Pocket
	err := s.executor.Run(ctx, pocketID, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			p, err := s.loadOwned(lockForUpdate(tx), pocketID, caller)
			if err != nil {
				return err
			}
			if !p.IsAbleToWithdraw() {
				return domain.NewStateError("pocket is not able to withdraw", domain.ErrNotAbleToWithdraw)
			}
			if baseDest == "" {
				baseDest = model.WalletAccount(caller, p.BaseMint)
			}
			if quoteDest == "" {
				quoteDest = model.WalletAccount(caller, p.QuoteMint)
			}

			res := tx.Model(&model.Pocket{}).
				Where("id = ? AND status = ?", p.ID, model.PocketStatusClosed).
				Updates(map[string]interface{}{
					"base_balance":  uint64(0),
					"quote_balance": uint64(0),
					"status":        model.PocketStatusWithdrawn,
				})
			if res.Error != nil {
				return domain.NewInternalError("failed to update pocket", res.Error)
			}
			if res.RowsAffected == 0 {
				return domain.NewStateError("pocket was modified concurrently", domain.ErrConcurrentUpdate)
			}

			// 以托管账户的实际余额为准，包含未记账的成交
			baseAmount, err := s.custody.Balance(ctx, p.BaseVault)
			if err != nil {
				return custodyError("failed to read base vault", err)
			}
			quoteAmount, err := s.custody.Balance(ctx, p.QuoteVault)
			if err != nil {
				return custodyError("failed to read quote vault", err)
			}
			if baseAmount != p.BaseBalance || quoteAmount != p.QuoteBalance {
				s.logger.Warn("PocketService: Vault balances differ from record",
					zap.String("pocket_id", p.ID),
					zap.Uint64("base_record", p.BaseBalance), zap.Uint64("base_vault", baseAmount),
					zap.Uint64("quote_record", p.QuoteBalance), zap.Uint64("quote_vault", quoteAmount))
			}

			if err := s.custody.Transfer(ctx, p.BaseVault, baseDest, baseAmount); err != nil {
				return custodyError("failed to withdraw base", err)
			}
			if err := s.custody.Transfer(ctx, p.QuoteVault, quoteDest, quoteAmount); err != nil {
				if rerr := s.custody.Transfer(context.Background(), baseDest, p.BaseVault, baseAmount); rerr != nil {
					s.logger.Error("PocketService: failed to revert base withdrawal",
						zap.String("pocket_id", p.ID), zap.Error(rerr))
				}
				return custodyError("failed to withdraw quote", err)
			}

			p.BaseBalance, p.QuoteBalance = 0, 0
			p.Status = model.PocketStatusWithdrawn
			updated = p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("PocketService: Pocket withdrawn", zap.String("pocket_id", pocketID))
	s.publish(event.PocketEvent{Type: constants.EventPocketWithdrawn, Reason: constants.ReasonWithdrawn, Pocket: updated})
	return updated, nil
}

// GetPocket 获取 Pocket 详情
func (s *PocketServiceImpl) GetPocket(ctx context.Context, pocketID string) (*model.Pocket, error) {
	return s.load(s.db.WithContext(ctx), pocketID)
}

// ListPockets 获取用户 Pocket 列表
func (s *PocketServiceImpl) ListPockets(ctx context.Context, owner string, page, pageSize int) ([]model.Pocket, int64, error) {
	var pockets []model.Pocket
	var total int64

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := s.db.WithContext(ctx).Model(&model.Pocket{}).Where("owner_id = ?", owner)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to count pockets", err)
	}

	if err := query.Order("created_at DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&pockets).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to fetch pockets", err)
	}

	return pockets, total, nil
}

// ListDuePockets 获取已到执行时间的 active Pocket，按下一次执行时间排序
// now <= 0 时使用服务时钟
func (s *PocketServiceImpl) ListDuePockets(ctx context.Context, now int64, limit int) ([]model.Pocket, error) {
	if now <= 0 {
		now = s.now().Unix()
	}
	if limit < 1 {
		limit = 100
	}
	var pockets []model.Pocket
	err := s.db.WithContext(ctx).
		Where("status = ? AND start_at <= ? AND next_scheduled_execution_at <= ?", model.PocketStatusActive, now, now).
		Order("next_scheduled_execution_at ASC").
		Limit(limit).
		Find(&pockets).Error
	if err != nil {
		return nil, domain.NewInternalError("failed to fetch due pockets", err)
	}
	return pockets, nil
}

func (s *PocketServiceImpl) load(db *gorm.DB, pocketID string) (*model.Pocket, error) {
	var p model.Pocket
	err := db.Where("id = ?", pocketID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("pocket not found")
	}
	if err != nil {
		return nil, domain.NewInternalError("failed to read pocket", err)
	}
	return &p, nil
}

func (s *PocketServiceImpl) loadOwned(db *gorm.DB, pocketID, caller string) (*model.Pocket, error) {
	p, err := s.load(db, pocketID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != caller {
		return nil, domain.NewForbiddenError("only pocket owner can perform this action", domain.ErrNotOwner)
	}
	return p, nil
}

func (s *PocketServiceImpl) publish(data event.PocketEvent) {
	if s.bus == nil || data.Pocket == nil {
		return
	}
	data.PocketID = data.Pocket.ID
	data.Owner = data.Pocket.OwnerID
	data.Status = data.Pocket.Status
	s.bus.Publish(event.NewPocketEvent("PocketService", data))
}

// custodyError 余额不足属于请求问题，其余视为托管服务故障
func custodyError(msg string, err error) error {
	if errors.Is(err, domain.ErrInsufficientFunds) {
		return domain.NewSettlementError(msg, err)
	}
	return domain.NewUpstreamError(msg, err)
}

package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"pockettrade.com/internal/constants"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/event"
	"pockettrade.com/internal/model"
)

// RegistryServiceImpl 实现 domain.RegistryService 接口
type RegistryServiceImpl struct {
	db     *gorm.DB
	bus    *event.Bus
	logger *zap.Logger
}

var _ domain.RegistryService = (*RegistryServiceImpl)(nil)

// NewRegistryService 创建 registry 服务，bus 可以为 nil
func NewRegistryService(db *gorm.DB, bus *event.Bus, logger *zap.Logger) *RegistryServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryServiceImpl{db: db, bus: bus, logger: logger}
}

// Initialize 初始化 registry，只能执行一次
func (s *RegistryServiceImpl) Initialize(ctx context.Context, owner string, operators []string) (*model.Registry, error) {
	if owner == "" {
		return nil, domain.NewBadRequestError("owner is required")
	}

	reg := &model.Registry{
		ID:             model.RegistryID,
		OwnerID:        owner,
		WasInitialized: true,
		Operators:      dedupe(operators),
		AllowedMints:   []model.MintInfo{},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Registry{}).Where("id = ? AND was_initialized = ?", model.RegistryID, true).Count(&count).Error; err != nil {
			return domain.NewInternalError("failed to read registry", err)
		}
		if count > 0 {
			return domain.NewStateError("registry already initialized", domain.ErrAlreadyInitialized)
		}
		if err := tx.Create(reg).Error; err != nil {
			return domain.NewInternalError("failed to create registry", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("RegistryService: Registry initialized", zap.String("owner", owner), zap.Int("operators", len(reg.Operators)))
	s.publish(reg)
	return reg, nil
}

// UpdateOperators 替换 operator 列表
func (s *RegistryServiceImpl) UpdateOperators(ctx context.Context, caller string, operators []string) (*model.Registry, error) {
	return s.mutate(ctx, caller, func(reg *model.Registry) error {
		reg.Operators = dedupe(operators)
		return nil
	})
}

// AddMint 加入资产白名单，默认启用
func (s *RegistryServiceImpl) AddMint(ctx context.Context, caller, mint, custodyAccount string) (*model.Registry, error) {
	if mint == "" {
		return nil, domain.NewBadRequestError("mint is required")
	}
	return s.mutate(ctx, caller, func(reg *model.Registry) error {
		if reg.IsMintExisted(mint) {
			return domain.NewStateError("mint already existed", domain.ErrMintExisted)
		}
		reg.AllowedMints = append(reg.AllowedMints, model.MintInfo{
			Mint:           mint,
			CustodyAccount: custodyAccount,
			Enabled:        true,
		})
		return nil
	})
}

// SetMintEnabled 启用或禁用白名单中的资产
func (s *RegistryServiceImpl) SetMintEnabled(ctx context.Context, caller, mint string, enabled bool) (*model.Registry, error) {
	return s.mutate(ctx, caller, func(reg *model.Registry) error {
		for i := range reg.AllowedMints {
			if reg.AllowedMints[i].Mint == mint {
				reg.AllowedMints[i].Enabled = enabled
				return nil
			}
		}
		return domain.NewNotFoundError("mint not found")
	})
}

// GetRegistry 获取 registry
func (s *RegistryServiceImpl) GetRegistry(ctx context.Context) (*model.Registry, error) {
	return s.load(s.db.WithContext(ctx))
}

func (s *RegistryServiceImpl) IsOperator(ctx context.Context, identity string) (bool, error) {
	reg, err := s.load(s.db.WithContext(ctx))
	if errors.Is(err, domain.ErrNotInitialized) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return reg.IsOperator(identity), nil
}

func (s *RegistryServiceImpl) IsMintWhitelisted(ctx context.Context, mint string) (bool, error) {
	reg, err := s.load(s.db.WithContext(ctx))
	if errors.Is(err, domain.ErrNotInitialized) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return reg.IsMintEnabled(mint), nil
}

func (s *RegistryServiceImpl) GetMintInfo(ctx context.Context, mint string) (*model.MintInfo, error) {
	reg, err := s.load(s.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	info, ok := reg.MintInfo(mint)
	if !ok {
		return nil, domain.NewNotFoundError("mint not found")
	}
	return &info, nil
}

// mutate 在事务中加载 registry，校验 owner 后执行修改并保存
func (s *RegistryServiceImpl) mutate(ctx context.Context, caller string, fn func(reg *model.Registry) error) (*model.Registry, error) {
	var reg *model.Registry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if reg, err = s.load(lockForUpdate(tx)); err != nil {
			return err
		}
		if reg.OwnerID != caller {
			return domain.NewForbiddenError("only registry owner can modify registry", domain.ErrNotAdministrator)
		}
		if err := fn(reg); err != nil {
			return err
		}
		if err := tx.Save(reg).Error; err != nil {
			return domain.NewInternalError("failed to save registry", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("RegistryService: Registry updated", zap.String("caller", caller))
	s.publish(reg)
	return reg, nil
}

func (s *RegistryServiceImpl) load(db *gorm.DB) (*model.Registry, error) {
	var reg model.Registry
	err := db.Where("id = ? AND was_initialized = ?", model.RegistryID, true).First(&reg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewStateError("registry not initialized", domain.ErrNotInitialized)
	}
	if err != nil {
		return nil, domain.NewInternalError("failed to read registry", err)
	}
	return &reg, nil
}

func (s *RegistryServiceImpl) publish(reg *model.Registry) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.Event{
		Type:   constants.EventRegistryUpdated,
		Source: "RegistryService",
		Data:   reg,
	})
}

// lockForUpdate 事务内读取时加行锁 (仅 Postgres 支持 SELECT ... FOR UPDATE)
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

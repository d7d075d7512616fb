package model

import (
	"time"

	"gorm.io/datatypes"
)

// RegistryID 全局唯一的 registry 记录主键
const RegistryID uint = 1

// MintInfo 白名单中的结算资产
type MintInfo struct {
	Mint           string `json:"mint"`
	CustodyAccount string `json:"custody_account"`
	Enabled        bool   `json:"enabled"`
}

// Registry 平台级授权信息: operator 列表与资产白名单
type Registry struct {
	ID             uint                          `gorm:"primaryKey" json:"id"`
	OwnerID        string                        `json:"owner_id"`
	WasInitialized bool                          `json:"was_initialized"`
	Operators      datatypes.JSONSlice[string]   `json:"operators"`
	AllowedMints   datatypes.JSONSlice[MintInfo] `json:"allowed_mints"`
	CreatedAt      time.Time                     `json:"created_at"`
	UpdatedAt      time.Time                     `json:"updated_at"`
}

func (r *Registry) IsOperator(identity string) bool {
	for _, op := range r.Operators {
		if op == identity {
			return true
		}
	}
	return false
}

// IsMintExisted 资产是否已加入白名单 (不论是否启用)
func (r *Registry) IsMintExisted(mint string) bool {
	_, ok := r.MintInfo(mint)
	return ok
}

func (r *Registry) IsMintEnabled(mint string) bool {
	info, ok := r.MintInfo(mint)
	return ok && info.Enabled
}

func (r *Registry) MintInfo(mint string) (MintInfo, bool) {
	for _, m := range r.AllowedMints {
		if m.Mint == mint {
			return m, true
		}
	}
	return MintInfo{}, false
}

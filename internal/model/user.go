package model

import "gorm.io/gorm"

const (
	RoleUser     = "user"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// User represents a user in the system
// Username 即 Pocket / Registry 中使用的身份标识
type User struct {
	gorm.Model
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`          // bcrypt hash
	Role     string `gorm:"default:'user'" json:"role"` // casbin 中的分组为准
	IsActive bool   `gorm:"default:true" json:"is_active"`
}

// WalletAccount 用户某个资产的托管账户，Deposit 从这里划转到 Pocket
func WalletAccount(identity, mint string) string {
	return "wallet:" + identity + ":" + mint
}

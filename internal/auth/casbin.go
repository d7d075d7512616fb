package auth

import (
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
	pmodel "pockettrade.com/internal/model"
)

// rbacModel
// r = request (who, what, how)
// p = policy (who, what, how)
// g = grouping (role hierarchy)
// keyMatch2 supports URL parameters like /pockets/:id/deposit
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// defaultPolicies 角色继承 admin -> operator -> user
var defaultPolicies = [][]string{
	{pmodel.RoleUser, "/api/auth/*", "(GET)|(POST)"},
	{pmodel.RoleUser, "/api/pockets", "(GET)|(POST)"},
	{pmodel.RoleUser, "/api/pockets/:id", "GET"},
	{pmodel.RoleUser, "/api/pockets/:id/*", "POST"},
	{pmodel.RoleUser, "/api/wallet/:mint", "GET"},
	{pmodel.RoleUser, "/api/registry", "GET"},

	{pmodel.RoleOperator, "/api/operator/*", "(GET)|(POST)"},

	{pmodel.RoleAdmin, "/api/*", "(GET)|(POST)|(PUT)|(DELETE)"},
}

var defaultGroupings = [][]string{
	{pmodel.RoleOperator, pmodel.RoleUser},
	{pmodel.RoleAdmin, pmodel.RoleOperator},
}

// InitCasbin defines the RBAC model and initializes the enforcer with GORM adapter
func InitCasbin(db *gorm.DB, logger *zap.Logger) (*casbin.Enforcer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// 1. Initialize GORM adapter (creates casbin_rule table)
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}

	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}

	// 2. Create Enforcer
	enforcer, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}

	// 3. Load policy from database
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}

	// 4. 补齐缺失的默认策略，已存在的不会重复写入
	added := 0
	for _, p := range defaultPolicies {
		ok, err := enforcer.AddPolicy(p[0], p[1], p[2])
		if err != nil {
			return nil, err
		}
		if ok {
			added++
		}
	}
	for _, g := range defaultGroupings {
		ok, err := enforcer.AddGroupingPolicy(g[0], g[1])
		if err != nil {
			return nil, err
		}
		if ok {
			added++
		}
	}
	if added > 0 {
		logger.Info("Casbin: Default policies initialized", zap.Int("added", added))
	}

	logger.Info("Casbin initialized successfully")
	return enforcer, nil
}

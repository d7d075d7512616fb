package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"pockettrade.com/internal/api/middleware"
	"pockettrade.com/internal/auth"
	"pockettrade.com/internal/config"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/infra"
)

// Deps HTTP 层依赖
type Deps struct {
	Config    config.ServerConfig
	DB        *gorm.DB
	Pockets   domain.PocketService
	Registry  domain.RegistryService
	Custody   domain.Custody
	Funder    domain.Funder
	WsManager *infra.WsManager
	Logger    *zap.Logger
}

// Router 负责注册所有路由
type Router struct {
	app    *fiber.App
	deps   Deps
	router fiber.Router // /api group
}

func NewRouter(app *fiber.App, deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Router{
		app:  app,
		deps: deps,
	}
}

// RegisterRoutes 注册所有业务路由
func (r *Router) RegisterRoutes() error {
	// 1. 初始化鉴权
	enforcer, err := auth.InitCasbin(r.deps.DB, r.deps.Logger)
	if err != nil {
		return err
	}

	// 2. 初始化各个 Handler
	authHandler := NewAuthHandler(r.deps.DB, r.deps.Config, r.deps.Logger)
	if err := authHandler.EnsureAdminUser(); err != nil {
		return err
	}
	pocketHandler := NewPocketHandler(r.deps.Pockets)
	operatorHandler := NewOperatorHandler(r.deps.Pockets)
	registryHandler := NewRegistryHandler(r.deps.Registry)
	custodyHandler := NewCustodyHandler(r.deps.Custody, r.deps.Funder, r.deps.Logger)

	// 3. 注册 WebSocket 路由 (token 通过 query 校验)
	if r.deps.WsManager != nil {
		InitWebsocket(r.app, r.deps.WsManager, r.deps.Config.JWTSecret, r.deps.Logger)
	}

	// 4. 注册公开路由 (Public)
	r.app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "Service is healthy",
		})
	})
	r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	r.app.Post("/auth/register", authHandler.Register)
	r.app.Post("/auth/login", authHandler.Login)

	// 5. 注册受保护的 API 路由 (Protected /api)
	r.router = r.app.Group("/api")
	r.router.Use(middleware.CasbinMiddleware(enforcer, r.deps.Config.JWTSecret))

	r.registerPocketRoutes(pocketHandler)
	r.registerOperatorRoutes(operatorHandler)
	r.registerRegistryRoutes(registryHandler)
	r.registerCustodyRoutes(custodyHandler)
	r.registerAuthRoutes(authHandler)
	return nil
}

func (r *Router) registerPocketRoutes(h *PocketHandler) {
	r.router.Post("/pockets", h.CreatePocket)
	r.router.Get("/pockets", h.ListPockets)
	r.router.Get("/pockets/:id", h.GetPocket)
	r.router.Post("/pockets/:id/status", h.UpdateStatus)
	r.router.Post("/pockets/:id/deposit", h.Deposit)
	r.router.Post("/pockets/:id/withdraw", h.Withdraw)
}

func (r *Router) registerOperatorRoutes(h *OperatorHandler) {
	operator := r.router.Group("/operator")
	operator.Get("/pockets/due", h.ListDue)
	operator.Post("/pockets/:id/execute", h.Execute)
}

func (r *Router) registerRegistryRoutes(h *RegistryHandler) {
	r.router.Get("/registry", h.GetRegistry)
	r.router.Post("/registry/initialize", h.Initialize)
	r.router.Put("/registry/operators", h.UpdateOperators)
	r.router.Post("/registry/mints", h.AddMint)
	r.router.Put("/registry/mints/:mint", h.SetMintEnabled)
}

func (r *Router) registerCustodyRoutes(h *CustodyHandler) {
	r.router.Get("/wallet/:mint", h.GetWalletBalance)
	r.router.Post("/custody/credit", h.Credit)
}

func (r *Router) registerAuthRoutes(h *AuthHandler) {
	r.router.Get("/auth/me", h.GetMe)
	r.router.Post("/auth/logout", h.Logout)
	r.router.Put("/users/:username/role", h.SetRole)
}

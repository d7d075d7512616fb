package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// NewServer 创建 HTTP 服务并注册路由
func NewServer(appName string, deps Deps) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		AppName: appName,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	if err := NewRouter(app, deps).RegisterRoutes(); err != nil {
		return nil, err
	}
	return app, nil
}

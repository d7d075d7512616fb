package api

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"pockettrade.com/internal/api/middleware"
	"pockettrade.com/internal/infra"
)

// InitWebsocket 注册 /ws，连接后推送当前用户的 Pocket 事件
// 浏览器无法设置 header，token 通过 query 传递: /ws?token=...
func InitWebsocket(app *fiber.App, wsManager *infra.WsManager, jwtSecret string, logger *zap.Logger) {
	// Middleware to force upgrade
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		claims, err := middleware.ParseToken(c.Query("token"), jwtSecret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"Error": "Invalid or expired token"})
		}
		c.Locals(middleware.LocalIdentity, claims.Username)
		return c.Next()
	})

	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		identity, _ := c.Locals(middleware.LocalIdentity).(string)
		logger.Debug("New WS connection", zap.String("identity", identity))

		wsManager.Register <- infra.UserConnection{UserID: identity, Conn: c}
		defer func() {
			wsManager.Unregister <- infra.UserConnection{UserID: identity, Conn: c}
		}()

		// 只读取以检测断开，客户端消息忽略
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Debug("ws read error", zap.Error(err))
				}
				return
			}
		}
	}))
}

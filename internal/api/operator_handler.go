package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"pockettrade.com/internal/api/middleware"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/model"
)

// OperatorHandler operator 手动触发执行周期
type OperatorHandler struct {
	pocketSvc domain.PocketService
}

func NewOperatorHandler(pocketSvc domain.PocketService) *OperatorHandler {
	return &OperatorHandler{pocketSvc: pocketSvc}
}

// ListDue 当前可执行的 Pocket
// GET /api/operator/pockets/due?limit=100
// 时间以服务时钟为准
func (h *OperatorHandler) ListDue(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	pockets, err := h.pocketSvc.ListDuePockets(c.UserContext(), 0, limit)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(fiber.Map{"Data": pockets})
}

// Execute 执行一次定投周期，body 可携带交易场所参数
// POST /api/operator/pockets/:id/execute
func (h *OperatorHandler) Execute(c *fiber.Ctx) error {
	var refs model.VenueRefs
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&refs); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	result, err := h.pocketSvc.ExecuteCycle(c.UserContext(), middleware.Identity(c), c.Params("id"), refs)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(result)
}

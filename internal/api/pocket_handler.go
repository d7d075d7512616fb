package api

import (
	"github.com/gofiber/fiber/v2"
	"pockettrade.com/internal/api/middleware"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/model"
)

// PocketHandler 处理 Pocket 相关的 HTTP 请求
type PocketHandler struct {
	pocketSvc domain.PocketService
}

// NewPocketHandler 创建 Pocket 处理器
func NewPocketHandler(pocketSvc domain.PocketService) *PocketHandler {
	return &PocketHandler{pocketSvc: pocketSvc}
}

// CreatePocket 创建 Pocket，owner 为当前用户
// POST /api/pockets
func (h *PocketHandler) CreatePocket(c *fiber.Ctx) error {
	var req domain.CreatePocketInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	pocket, err := h.pocketSvc.CreatePocket(c.UserContext(), middleware.Identity(c), req)
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(pocket)
}

// ListPockets 当前用户的 Pocket 列表
// GET /api/pockets
func (h *PocketHandler) ListPockets(c *fiber.Ctx) error {
	page, pageSize := pageParams(c)

	pockets, total, err := h.pocketSvc.ListPockets(c.UserContext(), middleware.Identity(c), page, pageSize)
	if err != nil {
		return handleError(c, err)
	}
	return SendPaginatedResponse(c, pockets, page, pageSize, total)
}

// GetPocket Pocket 详情，只有 owner 和管理员可以查看
// GET /api/pockets/:id
func (h *PocketHandler) GetPocket(c *fiber.Ctx) error {
	pocket, err := h.pocketSvc.GetPocket(c.UserContext(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}
	if pocket.OwnerID != middleware.Identity(c) && middleware.Role(c) != model.RoleAdmin {
		return handleError(c, domain.NewForbiddenError("only pocket owner can view this pocket", domain.ErrNotOwner))
	}
	return c.JSON(pocket)
}

// UpdateStatus 暂停 / 恢复 / 关闭
// POST /api/pockets/:id/status
func (h *PocketHandler) UpdateStatus(c *fiber.Ctx) error {
	var req struct {
		Status model.PocketStatus `json:"Status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	pocket, err := h.pocketSvc.UpdateStatus(c.UserContext(), middleware.Identity(c), c.Params("id"), req.Status)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(pocket)
}

// Deposit 从用户钱包存入
// POST /api/pockets/:id/deposit
func (h *PocketHandler) Deposit(c *fiber.Ctx) error {
	var req struct {
		Asset  model.AssetKind `json:"Asset"`
		Amount uint64          `json:"Amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	pocket, err := h.pocketSvc.Deposit(c.UserContext(), middleware.Identity(c), c.Params("id"), req.Asset, req.Amount)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(pocket)
}

// Withdraw 取出全部资金，目标账户为空时退回用户钱包
// POST /api/pockets/:id/withdraw
func (h *PocketHandler) Withdraw(c *fiber.Ctx) error {
	var req struct {
		BaseDestination  string `json:"BaseDestination"`
		QuoteDestination string `json:"QuoteDestination"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	pocket, err := h.pocketSvc.Withdraw(c.UserContext(), middleware.Identity(c), c.Params("id"), req.BaseDestination, req.QuoteDestination)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(pocket)
}

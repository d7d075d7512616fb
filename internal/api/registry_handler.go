package api

import (
	"github.com/gofiber/fiber/v2"
	"pockettrade.com/internal/api/middleware"
	"pockettrade.com/internal/domain"
)

// RegistryHandler 平台配置: operator 列表与资产白名单
type RegistryHandler struct {
	registrySvc domain.RegistryService
}

func NewRegistryHandler(registrySvc domain.RegistryService) *RegistryHandler {
	return &RegistryHandler{registrySvc: registrySvc}
}

// GetRegistry GET /api/registry
func (h *RegistryHandler) GetRegistry(c *fiber.Ctx) error {
	reg, err := h.registrySvc.GetRegistry(c.UserContext())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(reg)
}

// Initialize 当前管理员成为 registry owner
// POST /api/registry/initialize
func (h *RegistryHandler) Initialize(c *fiber.Ctx) error {
	var req struct {
		Operators []string `json:"Operators"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	reg, err := h.registrySvc.Initialize(c.UserContext(), middleware.Identity(c), req.Operators)
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reg)
}

// UpdateOperators PUT /api/registry/operators
func (h *RegistryHandler) UpdateOperators(c *fiber.Ctx) error {
	var req struct {
		Operators []string `json:"Operators"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	reg, err := h.registrySvc.UpdateOperators(c.UserContext(), middleware.Identity(c), req.Operators)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(reg)
}

// AddMint POST /api/registry/mints
func (h *RegistryHandler) AddMint(c *fiber.Ctx) error {
	var req struct {
		Mint           string `json:"Mint"`
		CustodyAccount string `json:"CustodyAccount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	reg, err := h.registrySvc.AddMint(c.UserContext(), middleware.Identity(c), req.Mint, req.CustodyAccount)
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reg)
}

// SetMintEnabled PUT /api/registry/mints/:mint
func (h *RegistryHandler) SetMintEnabled(c *fiber.Ctx) error {
	var req struct {
		Enabled bool `json:"Enabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	reg, err := h.registrySvc.SetMintEnabled(c.UserContext(), middleware.Identity(c), c.Params("mint"), req.Enabled)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(reg)
}

package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"pockettrade.com/internal/api/middleware"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/model"
)

// CustodyHandler 用户钱包余额查询与管理员充值
type CustodyHandler struct {
	custody domain.Custody
	funder  domain.Funder
	logger  *zap.Logger
}

func NewCustodyHandler(custody domain.Custody, funder domain.Funder, logger *zap.Logger) *CustodyHandler {
	return &CustodyHandler{custody: custody, funder: funder, logger: logger}
}

// GetWalletBalance 当前用户某个资产的钱包余额
// GET /api/wallet/:mint
func (h *CustodyHandler) GetWalletBalance(c *fiber.Ctx) error {
	account := model.WalletAccount(middleware.Identity(c), c.Params("mint"))
	balance, err := h.custody.Balance(c.UserContext(), account)
	if err != nil {
		return handleError(c, domain.NewUpstreamError("failed to read balance", err))
	}
	return c.JSON(fiber.Map{"Account": account, "Balance": balance})
}

// Credit 给账户充值，Account 为空时使用 Owner 与 Mint 生成钱包账户
// POST /api/custody/credit
func (h *CustodyHandler) Credit(c *fiber.Ctx) error {
	var req struct {
		Account string `json:"Account"`
		Owner   string `json:"Owner"`
		Mint    string `json:"Mint"`
		Amount  uint64 `json:"Amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Account == "" {
		if req.Owner == "" || req.Mint == "" {
			return badRequest(c, "Account or Owner and Mint are required")
		}
		req.Account = model.WalletAccount(req.Owner, req.Mint)
	}
	if req.Amount == 0 {
		return badRequest(c, "Amount must be positive")
	}

	if err := h.funder.Credit(c.UserContext(), req.Account, req.Amount); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return badRequest(c, err.Error())
		}
		return handleError(c, domain.NewUpstreamError("failed to credit account", err))
	}
	h.logger.Info("Custody: Account credited",
		zap.String("account", req.Account), zap.Uint64("amount", req.Amount), zap.String("by", middleware.Identity(c)))
	return c.JSON(fiber.Map{"Account": req.Account, "Amount": req.Amount})
}

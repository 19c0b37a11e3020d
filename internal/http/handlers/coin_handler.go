package handlers

import (
	"github.com/coin-arcade/backend/internal/http/dto"
	"github.com/coin-arcade/backend/internal/middleware"
	"github.com/coin-arcade/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type CoinHandler struct {
	coins *services.CoinService
	log   *zap.Logger
}

func NewCoinHandler(coins *services.CoinService, log *zap.Logger) *CoinHandler {
	return &CoinHandler{coins: coins, log: log}
}

// GET /coin/constants
func (h *CoinHandler) Constants(c *fiber.Ctx) error {
	return c.JSON(h.coins.Constants())
}

// GET /coin/balance
func (h *CoinHandler) Balance(c *fiber.Ctx) error {
	balance, err := h.coins.GetBalance(c.Context(), middleware.GetAddress(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(balance)
}

// POST /coin/earn
func (h *CoinHandler) Earn(c *fiber.Ctx) error {
	var req dto.EarnRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	res, err := h.coins.EarnCoins(c.Context(), middleware.GetAddress(c), req.Amount, req.Ref)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(res)
}

// POST /coin/purchase
func (h *CoinHandler) Purchase(c *fiber.Ctx) error {
	var req dto.PurchaseCoinsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	res, err := h.coins.PurchaseCoins(c.Context(), middleware.GetAddress(c), req.ETHAmount, req.TxHash)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(res)
}

// POST /coin/redeem/premium
func (h *CoinHandler) RedeemPremium(c *fiber.Ctx) error {
	res, err := h.coins.RedeemPremium(c.Context(), middleware.GetAddress(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(res)
}

// GET /coin/membership
func (h *CoinHandler) Membership(c *fiber.Ctx) error {
	status, err := h.coins.MembershipStatus(c.Context(), middleware.GetAddress(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(status)
}

// GET /coin/transactions?limit=
func (h *CoinHandler) Transactions(c *fiber.Ctx) error {
	txs, err := h.coins.RecentTransactions(c.Context(), middleware.GetAddress(c), c.QueryInt("limit"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"transactions": txs})
}

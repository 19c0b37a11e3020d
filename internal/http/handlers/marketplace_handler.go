package handlers

import (
	"strings"

	"github.com/coin-arcade/backend/internal/http/dto"
	"github.com/coin-arcade/backend/internal/middleware"
	"github.com/coin-arcade/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MarketplaceHandler struct {
	marketplace *services.MarketplaceService
	log         *zap.Logger
}

func NewMarketplaceHandler(marketplace *services.MarketplaceService, log *zap.Logger) *MarketplaceHandler {
	return &MarketplaceHandler{marketplace: marketplace, log: log}
}

// GET /marketplace/listings
func (h *MarketplaceHandler) Listings(c *fiber.Ctx) error {
	listings, err := h.marketplace.Listings(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"listings": listings})
}

// GET /marketplace/stats
func (h *MarketplaceHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.marketplace.Stats(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(stats)
}

// GET /marketplace/purchases
func (h *MarketplaceHandler) Purchases(c *fiber.Ctx) error {
	purchases, err := h.marketplace.PurchasesByBuyer(c.Context(), middleware.GetAddress(c), c.QueryInt("limit"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"purchases": purchases})
}

// POST /marketplace/purchase
func (h *MarketplaceHandler) Purchase(c *fiber.Ctx) error {
	var req dto.MarketplacePurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid listing id"})
	}

	// The buyer field must match the authenticated wallet: purchases are
	// validated against the session, not the request body.
	sessionAddr := middleware.GetAddress(c)
	if !strings.EqualFold(req.Buyer, sessionAddr) {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "buyer must match session address"})
	}

	purchase, err := h.marketplace.RecordPurchase(c.Context(), listingID, sessionAddr, req.AmountETH, req.TxHash)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(purchase)
}

// POST /marketplace/validate/:purchaseId
func (h *MarketplaceHandler) Validate(c *fiber.Ctx) error {
	purchaseID, err := uuid.Parse(c.Params("purchaseId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid purchase id"})
	}

	purchase, err := h.marketplace.ValidateAndCompletePurchase(c.Context(), purchaseID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(purchase)
}

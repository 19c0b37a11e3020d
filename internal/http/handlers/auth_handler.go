package handlers

import (
	"github.com/coin-arcade/backend/internal/auth"
	"github.com/coin-arcade/backend/internal/http/dto"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	sessions *auth.Service
	log      *zap.Logger
}

func NewAuthHandler(sessions *auth.Service, log *zap.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, log: log}
}

// RequestNonce issues the challenge the wallet must sign.
// POST /auth/nonce
func (h *AuthHandler) RequestNonce(c *fiber.Ctx) error {
	var req dto.NonceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.Address == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "address is required"})
	}

	nonce, err := h.sessions.RequestNonce(c.Context(), req.Address)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.NonceResponse{
		Address: req.Address,
		Nonce:   nonce,
		Message: auth.LoginMessage(nonce),
	})
}

// Verify checks the signature over the pending nonce and returns a
// session token.
// POST /auth/verify
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.Address == "" || req.Signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "address and signature are required"})
	}

	sess, err := h.sessions.VerifySignature(c.Context(), req.Address, req.Signature)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.AuthResponse{Token: sess.Token, Address: sess.Address})
}

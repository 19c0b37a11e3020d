package middleware

import (
	"github.com/coin-arcade/backend/internal/auth"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	// HeaderSessionToken carries the bearer credential on protected routes.
	HeaderSessionToken = "x-session-token"

	CtxAddress = "wallet_address"
)

func AuthMiddleware(sessions *auth.Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get(HeaderSessionToken)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing session token"})
		}

		sess, err := sessions.GetSession(c.Context(), token)
		if err != nil {
			log.Debug("session lookup failed", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid session"})
		}

		c.Locals(CtxAddress, sess.Address)
		return c.Next()
	}
}

// GetAddress returns the authenticated wallet address for the request.
func GetAddress(c *fiber.Ctx) string {
	addr, _ := c.Locals(CtxAddress).(string)
	return addr
}

package http

import (
	"time"

	"github.com/coin-arcade/backend/internal/auth"
	"github.com/coin-arcade/backend/internal/http/handlers"
	"github.com/coin-arcade/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	log *zap.Logger,
	rdb *redis.Client,
	rateLimitPerMin int,
	sessions *auth.Service,
	authHandler *handlers.AuthHandler,
	coinHandler *handlers.CoinHandler,
	gameHandler *handlers.GameHandler,
	marketplaceHandler *handlers.MarketplaceHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID, " + middleware.HeaderSessionToken,
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use(middleware.RateLimitMiddleware(rdb, rateLimitPerMin, time.Minute))

	// Auth (public)
	authGroup := app.Group("/auth")
	authGroup.Post("/nonce", authHandler.RequestNonce)
	authGroup.Post("/verify", authHandler.Verify)

	requireSession := middleware.AuthMiddleware(sessions, log)

	// Coin economy
	coin := app.Group("/coin")
	coin.Get("/constants", coinHandler.Constants)
	coin.Get("/balance", requireSession, coinHandler.Balance)
	coin.Post("/earn", requireSession, coinHandler.Earn)
	coin.Post("/purchase", requireSession, coinHandler.Purchase)
	coin.Post("/redeem/premium", requireSession, coinHandler.RedeemPremium)
	coin.Get("/membership", requireSession, coinHandler.Membership)
	coin.Get("/transactions", requireSession, coinHandler.Transactions)

	// Games
	games := app.Group("/games")
	games.Get("/stats", gameHandler.Stats)
	games.Get("/info", gameHandler.Info)
	games.Get("/leaderboard", gameHandler.Leaderboard)
	games.Post("/wheel", requireSession, gameHandler.PlayWheel)
	games.Post("/dice", requireSession, gameHandler.PlayDice)
	games.Post("/scratch", requireSession, gameHandler.PlayScratch)
	games.Post("/daily-bonus", requireSession, gameHandler.DailyBonus)
	games.Get("/history", requireSession, gameHandler.History)

	// Marketplace
	marketplace := app.Group("/marketplace")
	marketplace.Get("/listings", marketplaceHandler.Listings)
	marketplace.Get("/stats", marketplaceHandler.Stats)
	marketplace.Get("/purchases", requireSession, marketplaceHandler.Purchases)
	marketplace.Post("/purchase", requireSession, marketplaceHandler.Purchase)
	marketplace.Post("/validate/:purchaseId", requireSession, marketplaceHandler.Validate)

	// WebSocket event feed
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coin-arcade/backend/internal/auth"
	"github.com/coin-arcade/backend/internal/chain"
	"github.com/coin-arcade/backend/internal/config"
	"github.com/coin-arcade/backend/internal/db"
	"github.com/coin-arcade/backend/internal/events"
	apphttp "github.com/coin-arcade/backend/internal/http"
	"github.com/coin-arcade/backend/internal/http/handlers"
	"github.com/coin-arcade/backend/internal/repositories"
	"github.com/coin-arcade/backend/internal/services"
	"github.com/coin-arcade/backend/migrations"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PGMaxConns, cfg.PGMinConns, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Chain
	ethClient, err := chain.Dial(cfg.EthRPCURL)
	if err != nil {
		log.Fatal("failed to connect to ethereum rpc", zap.Error(err))
	}
	verifier := chain.NewVerifier(ethClient, log)

	// Repositories
	ledgerRepo := repositories.NewLedgerRepo(pool)
	gameRepo := repositories.NewGameRepo(pool)
	marketplaceRepo := repositories.NewMarketplaceRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	sessions := auth.NewService(auth.NewRedisStore(rdb), cfg.NonceTTL, cfg.SessionTTL, log)
	coinService := services.NewCoinService(ledgerRepo, verifier, publisher, cfg, log)
	gameService := services.NewGameService(gameRepo, publisher, nil, log)
	marketplaceService := services.NewMarketplaceService(marketplaceRepo, verifier, publisher, cfg, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(sessions, log)
	coinHandler := handlers.NewCoinHandler(coinService, log)
	gameHandler := handlers.NewGameHandler(gameService, coinService, log)
	marketplaceHandler := handlers.NewMarketplaceHandler(marketplaceService, log)
	wsHub := handlers.NewWSHub(sessions, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, log, rdb, cfg.RateLimitPerMin, sessions, authHandler, coinHandler, gameHandler, marketplaceHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

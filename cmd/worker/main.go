package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coin-arcade/backend/internal/chain"
	"github.com/coin-arcade/backend/internal/config"
	"github.com/coin-arcade/backend/internal/db"
	"github.com/coin-arcade/backend/internal/events"
	"github.com/coin-arcade/backend/internal/repositories"
	"github.com/coin-arcade/backend/internal/services"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	revalidateBatchSize = 50
	limitRetentionDays  = 30
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PGMaxConns, cfg.PGMinConns, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	ethClient, err := chain.Dial(cfg.EthRPCURL)
	if err != nil {
		log.Fatal("failed to connect to ethereum rpc", zap.Error(err))
	}
	verifier := chain.NewVerifier(ethClient, log)

	gameRepo := repositories.NewGameRepo(pool)
	marketplaceRepo := repositories.NewMarketplaceRepo(pool)
	publisher := events.NewRedisPublisher(rdb, log)

	marketplaceService := services.NewMarketplaceService(marketplaceRepo, verifier, publisher, cfg, log)

	c := cron.New()

	// Retry purchases whose on-chain validation has not settled yet.
	_, err = c.AddFunc("@every 2m", func() {
		jobCtx, jobCancel := context.WithTimeout(ctx, 90*time.Second)
		defer jobCancel()
		if n := marketplaceService.RevalidatePending(jobCtx, time.Minute, revalidateBatchSize); n > 0 {
			log.Info("revalidated pending purchases", zap.Int("count", n))
		}
	})
	if err != nil {
		log.Fatal("failed to schedule revalidation job", zap.Error(err))
	}

	// Prune daily play counters past the retention window.
	_, err = c.AddFunc("10 3 * * *", func() {
		jobCtx, jobCancel := context.WithTimeout(ctx, 30*time.Second)
		defer jobCancel()
		cutoff := time.Now().UTC().AddDate(0, 0, -limitRetentionDays).Format("2006-01-02")
		pruned, err := gameRepo.PruneDailyLimits(jobCtx, cutoff)
		if err != nil {
			log.Error("daily limit pruning failed", zap.Error(err))
			return
		}
		log.Info("pruned daily limits", zap.Int64("rows", pruned))
	})
	if err != nil {
		log.Fatal("failed to schedule pruning job", zap.Error(err))
	}

	c.Start()
	log.Info("worker started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down...")
	stopCtx := c.Stop()
	<-stopCtx.Done()
	cancel()
}

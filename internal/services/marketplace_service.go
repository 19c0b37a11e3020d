package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/coin-arcade/backend/internal/apperrors"
	"github.com/coin-arcade/backend/internal/chain"
	"github.com/coin-arcade/backend/internal/config"
	"github.com/coin-arcade/backend/internal/events"
	"github.com/coin-arcade/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MarketplaceStore is what MarketplaceService needs from its repository.
type MarketplaceStore interface {
	ListListings(ctx context.Context, activeOnly bool) ([]models.Listing, error)
	GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	CreatePurchase(ctx context.Context, p *models.Purchase) error
	GetPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	SettlePurchase(ctx context.Context, id uuid.UUID, status, escrowStatus string) (bool, error)
	PurchasesByBuyer(ctx context.Context, buyer string, limit int) ([]models.Purchase, error)
	PendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Purchase, error)
	Stats(ctx context.Context) (*models.MarketplaceStats, error)
}

type MarketplaceService struct {
	store     MarketplaceStore
	verifier  TxVerifier
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewMarketplaceService(store MarketplaceStore, verifier TxVerifier, publisher events.Publisher, cfg *config.Config, log *zap.Logger) *MarketplaceService {
	return &MarketplaceService{
		store:     store,
		verifier:  verifier,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

func (s *MarketplaceService) Listings(ctx context.Context) ([]models.Listing, error) {
	return s.store.ListListings(ctx, true)
}

func (s *MarketplaceService) Stats(ctx context.Context) (*models.MarketplaceStats, error) {
	return s.store.Stats(ctx)
}

func (s *MarketplaceService) PurchasesByBuyer(ctx context.Context, buyer string, limit int) ([]models.Purchase, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.PurchasesByBuyer(ctx, buyer, limit)
}

// RecordPurchase validates the request and inserts a pending purchase.
// The price check runs before any row exists, then a delayed
// revalidation is scheduled to let the chain index the payment.
func (s *MarketplaceService) RecordPurchase(ctx context.Context, listingID uuid.UUID, buyer string, amountETH float64, txHash string) (*models.Purchase, error) {
	if !chain.IsValidTxHash(txHash) {
		return nil, apperrors.Validation("txHash must be a 0x-prefixed 64-hex-char transaction hash")
	}

	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("load listing: %w", err)
	}
	if listing == nil || !listing.Active {
		return nil, apperrors.NotFound("active listing")
	}

	if math.Abs(amountETH-listing.PriceETH) > s.cfg.AmountTolerance {
		return nil, apperrors.Validation("amount %.6f ETH does not match listing price %.6f ETH", amountETH, listing.PriceETH)
	}

	purchase := &models.Purchase{
		ListingID:    listingID,
		Buyer:        buyer,
		TxHash:       txHash,
		AmountETH:    amountETH,
		Status:       models.PurchaseStatusPending,
		EscrowStatus: models.EscrowStatusHeld,
	}
	if err := s.store.CreatePurchase(ctx, purchase); err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}

	s.log.Info("purchase recorded",
		zap.String("purchase_id", purchase.ID.String()),
		zap.String("buyer", buyer),
		zap.String("tx_hash", txHash),
	)

	s.scheduleRevalidation(purchase.ID)
	return purchase, nil
}

// scheduleRevalidation fires one validation attempt after the configured
// delay. Fire-and-forget: failures are logged, the worker sweep retries.
func (s *MarketplaceService) scheduleRevalidation(purchaseID uuid.UUID) {
	go func() {
		time.Sleep(s.cfg.RevalidationDelay)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.ValidateAndCompletePurchase(ctx, purchaseID); err != nil {
			s.log.Warn("scheduled revalidation failed",
				zap.String("purchase_id", purchaseID.String()),
				zap.Error(err),
			)
		}
	}()
}

// ValidateAndCompletePurchase runs the on-chain checks for a pending
// purchase and moves it to its terminal status. Safe to retry: a
// purchase that already left pending comes back as already processed.
func (s *MarketplaceService) ValidateAndCompletePurchase(ctx context.Context, purchaseID uuid.UUID) (*models.Purchase, error) {
	purchase, err := s.store.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("load purchase: %w", err)
	}
	if purchase == nil {
		return nil, apperrors.NotFound("purchase")
	}
	if purchase.Status != models.PurchaseStatusPending {
		return nil, apperrors.Validation("purchase already processed (status %s)", purchase.Status)
	}

	res, err := s.verifier.Verify(ctx, purchase.TxHash, chain.Params{
		ExpectedRecipient: s.cfg.PaymentWallet,
		ExpectedSender:    purchase.Buyer,
		ExpectedAmountETH: purchase.AmountETH,
		ToleranceETH:      s.cfg.AmountTolerance,
		MinConfirmations:  s.cfg.MinConfirmations,
		MinAmountETH:      s.cfg.MinPaymentETH,
	})
	if err != nil {
		// Chain unreachable: leave the purchase pending for a retry.
		return nil, fmt.Errorf("verify purchase payment: %w", err)
	}

	status := models.PurchaseStatusCompleted
	escrow := models.EscrowStatusReleased
	if !res.Valid {
		status = models.PurchaseStatusFailed
		escrow = models.EscrowStatusHeld
		s.log.Info("purchase validation failed",
			zap.String("purchase_id", purchaseID.String()),
			zap.String("reason", res.Err),
		)
	}

	settled, err := s.store.SettlePurchase(ctx, purchaseID, status, escrow)
	if err != nil {
		return nil, fmt.Errorf("settle purchase: %w", err)
	}
	if !settled {
		// Lost a race with another validator; terminal state already set.
		return nil, apperrors.Validation("purchase already processed")
	}

	_ = s.publisher.Publish(ctx, events.StreamArcade, events.Event{
		Type: events.EventPurchaseStatusChanged,
		Payload: map[string]any{
			"purchase_id": purchaseID.String(),
			"status":      status,
		},
	})

	return s.store.GetPurchase(ctx, purchaseID)
}

// RevalidatePending sweeps pending purchases older than the given age.
// Used by the worker to pick up purchases whose scheduled validation was
// lost to a restart or a slow chain.
func (s *MarketplaceService) RevalidatePending(ctx context.Context, olderThan time.Duration, limit int) int {
	cutoff := time.Now().Add(-olderThan)
	pending, err := s.store.PendingOlderThan(ctx, cutoff, limit)
	if err != nil {
		s.log.Error("failed to list pending purchases", zap.Error(err))
		return 0
	}

	settled := 0
	for _, p := range pending {
		if _, err := s.ValidateAndCompletePurchase(ctx, p.ID); err != nil {
			s.log.Warn("pending purchase revalidation failed",
				zap.String("purchase_id", p.ID.String()),
				zap.Error(err),
			)
			continue
		}
		settled++
	}
	return settled
}

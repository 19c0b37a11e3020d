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
	"go.uber.org/zap"
)

// LedgerStore is what CoinService needs from the ledger repository.
type LedgerStore interface {
	GetBalance(ctx context.Context, address string) (*models.AccountBalance, error)
	ApplyDelta(ctx context.Context, address string, delta int64, txType string, ref *string) (int64, error)
	IsProcessed(ctx context.Context, txHash string) (bool, error)
	CreditPurchase(ctx context.Context, p *models.ProcessedTransaction) (int64, error)
	RedeemPremium(ctx context.Context, address string, cost int64, expiresAt time.Time) (int64, error)
	GetMembership(ctx context.Context, address string) (*models.PremiumMembership, error)
	RecentTransactions(ctx context.Context, address string, limit int) ([]models.CoinTransaction, error)
}

// TxVerifier abstracts the on-chain verifier for tests.
type TxVerifier interface {
	Verify(ctx context.Context, txHash string, params chain.Params) (*chain.Result, error)
}

type CoinService struct {
	ledger    LedgerStore
	verifier  TxVerifier
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewCoinService(ledger LedgerStore, verifier TxVerifier, publisher events.Publisher, cfg *config.Config, log *zap.Logger) *CoinService {
	return &CoinService{
		ledger:    ledger,
		verifier:  verifier,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

type EarnResult struct {
	Balance int64 `json:"balance"`
	Delta   int64 `json:"delta"`
}

type PurchaseResult struct {
	CoinsAdded        int64   `json:"coins_added"`
	Balance           int64   `json:"balance"`
	Verified          bool    `json:"verified"`
	ETHAmountVerified float64 `json:"eth_amount_verified"`
	BlockNumber       uint64  `json:"block_number"`
}

type RedeemResult struct {
	Premium   bool      `json:"premium"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *CoinService) GetBalance(ctx context.Context, address string) (*models.AccountBalance, error) {
	return s.ledger.GetBalance(ctx, address)
}

// EarnCoins applies a signed delta to the balance. Credits and debits
// have independent per-call caps; larger adjustments must be decomposed
// by the caller.
func (s *CoinService) EarnCoins(ctx context.Context, address string, amount int64, ref *string) (*EarnResult, error) {
	if amount == 0 {
		return nil, apperrors.Validation("amount must be a non-zero integer")
	}
	txType := models.CoinTxEarn
	if amount > 0 {
		if amount > s.cfg.CreditCapPerCall {
			return nil, apperrors.Validation("amount exceeds per-call credit cap of %d", s.cfg.CreditCapPerCall)
		}
	} else {
		txType = models.CoinTxSpend
		if -amount > s.cfg.DebitCapPerCall {
			return nil, apperrors.Validation("amount exceeds per-call debit cap of %d", s.cfg.DebitCapPerCall)
		}
	}

	balance, err := s.ledger.ApplyDelta(ctx, address, amount, txType, ref)
	if err != nil {
		return nil, err
	}
	return &EarnResult{Balance: balance, Delta: amount}, nil
}

// PurchaseCoins credits coins for a verified on-chain payment. A given tx
// hash is credited at most once.
func (s *CoinService) PurchaseCoins(ctx context.Context, address string, ethAmount float64, txHash string) (*PurchaseResult, error) {
	if txHash == "" {
		return nil, apperrors.Validation("txHash is required")
	}

	processed, err := s.ledger.IsProcessed(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("check processed transactions: %w", err)
	}
	if processed {
		return nil, apperrors.DuplicateTransaction(txHash)
	}

	res, err := s.verifier.Verify(ctx, txHash, chain.Params{
		ExpectedRecipient: s.cfg.PaymentWallet,
		MinAmountETH:      s.cfg.MinPaymentETH,
	})
	if err != nil {
		return nil, fmt.Errorf("verify transaction: %w", err)
	}
	if !res.Valid {
		return nil, apperrors.Verification(res.Err)
	}

	if math.Abs(ethAmount-res.ETHAmount) > s.cfg.AmountTolerance {
		return nil, apperrors.AmountMismatch(ethAmount, res.ETHAmount)
	}

	coins := int64(math.Floor(res.ETHAmount * float64(s.cfg.PurchaseRate)))
	balance, err := s.ledger.CreditPurchase(ctx, &models.ProcessedTransaction{
		TxHash:      txHash,
		Address:     address,
		ETHAmount:   res.ETHAmount,
		CoinsAdded:  coins,
		BlockNumber: res.BlockNumber,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("coins purchased",
		zap.String("address", address),
		zap.String("tx_hash", txHash),
		zap.Int64("coins", coins),
	)
	_ = s.publisher.Publish(ctx, events.StreamArcade, events.Event{
		Type: events.EventCoinsPurchased,
		Payload: map[string]any{
			"address":    address,
			"coins":      coins,
			"eth_amount": res.ETHAmount,
		},
	})

	return &PurchaseResult{
		CoinsAdded:        coins,
		Balance:           balance,
		Verified:          true,
		ETHAmountVerified: res.ETHAmount,
		BlockNumber:       res.BlockNumber,
	}, nil
}

// RedeemPremium debits the fixed cost and replaces any existing
// membership with a fresh window. An unexpired window is replaced, not
// extended.
func (s *CoinService) RedeemPremium(ctx context.Context, address string) (*RedeemResult, error) {
	expiresAt := time.Now().UTC().Add(s.cfg.PremiumDuration)
	if _, err := s.ledger.RedeemPremium(ctx, address, s.cfg.PremiumCostCoins, expiresAt); err != nil {
		return nil, err
	}
	return &RedeemResult{Premium: true, ExpiresAt: expiresAt}, nil
}

// MembershipStatus is computed from the stored window; nothing mutates.
func (s *CoinService) MembershipStatus(ctx context.Context, address string) (*models.MembershipStatus, error) {
	m, err := s.ledger.GetMembership(ctx, address)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return &models.MembershipStatus{Premium: false}, nil
	}
	if m.Expired(time.Now().UTC()) {
		return &models.MembershipStatus{Premium: false, Expired: true, ExpiresAt: &m.ExpiresAt}, nil
	}
	return &models.MembershipStatus{Premium: true, ExpiresAt: &m.ExpiresAt}, nil
}

func (s *CoinService) RecentTransactions(ctx context.Context, address string, limit int) ([]models.CoinTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.ledger.RecentTransactions(ctx, address, limit)
}

// Constants exposes the economy parameters clients need.
func (s *CoinService) Constants() map[string]any {
	return map[string]any{
		"purchase_rate":       s.cfg.PurchaseRate,
		"min_payment_eth":     s.cfg.MinPaymentETH,
		"credit_cap_per_call": s.cfg.CreditCapPerCall,
		"debit_cap_per_call":  s.cfg.DebitCapPerCall,
		"premium_cost_coins":  s.cfg.PremiumCostCoins,
		"premium_days":        int(s.cfg.PremiumDuration.Hours() / 24),
	}
}

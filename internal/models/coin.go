package models

import (
	"time"

	"github.com/google/uuid"
)

// Coin transaction types
const (
	CoinTxEarn     = "earn"
	CoinTxSpend    = "spend"
	CoinTxPurchase = "purchase"
	CoinTxRedeem   = "redeem"
)

type AccountBalance struct {
	Address   string    `json:"address"` // lowercased wallet address
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CoinTransaction is one row of the append-only audit trail.
// Amount is always stored positive; the sign is implied by Type.
type CoinTransaction struct {
	ID        uuid.UUID `json:"id"`
	Address   string    `json:"address"`
	Type      string    `json:"type"`
	Amount    int64     `json:"amount"`
	Ref       *string   `json:"ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ProcessedTransaction records an on-chain purchase that has already been
// credited. The tx hash primary key is the double-credit guard.
type ProcessedTransaction struct {
	TxHash      string    `json:"tx_hash"`
	Address     string    `json:"address"`
	ETHAmount   float64   `json:"eth_amount"`
	CoinsAdded  int64     `json:"coins_added"`
	BlockNumber uint64    `json:"block_number"`
	ProcessedAt time.Time `json:"processed_at"`
}

// PremiumMembership holds the single active window per address.
// Redemption replaces any prior row; expiry is computed at read time.
type PremiumMembership struct {
	Address   string    `json:"address"`
	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (m *PremiumMembership) Expired(now time.Time) bool {
	return now.After(m.ExpiresAt)
}

type MembershipStatus struct {
	Premium   bool       `json:"premium"`
	Expired   bool       `json:"expired,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

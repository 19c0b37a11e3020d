package models

import (
	"time"

	"github.com/google/uuid"
)

// Purchase statuses
const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusCompleted = "completed"
	PurchaseStatusFailed    = "failed"
)

// Escrow statuses
const (
	EscrowStatusHeld     = "held"
	EscrowStatusReleased = "released"
)

// Valid purchase transitions: from -> []to. Completed and failed are
// terminal; a purchase never reverts to pending.
var ValidPurchaseTransitions = map[string][]string{
	PurchaseStatusPending:   {PurchaseStatusCompleted, PurchaseStatusFailed},
	PurchaseStatusCompleted: {},
	PurchaseStatusFailed:    {},
}

func IsValidPurchaseTransition(from, to string) bool {
	allowed, ok := ValidPurchaseTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

type Listing struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PriceETH    float64   `json:"price_eth"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type Purchase struct {
	ID           uuid.UUID  `json:"id"`
	ListingID    uuid.UUID  `json:"listing_id"`
	Buyer        string     `json:"buyer"` // lowercased wallet address
	TxHash       string     `json:"tx_hash"`
	AmountETH    float64    `json:"amount_eth"`
	Status       string     `json:"status"`
	EscrowStatus string     `json:"escrow_status"`
	ValidatedAt  *time.Time `json:"validated_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type MarketplaceStats struct {
	ActiveListings     int64   `json:"active_listings"`
	TotalPurchases     int64   `json:"total_purchases"`
	CompletedPurchases int64   `json:"completed_purchases"`
	VolumeETH          float64 `json:"volume_eth"`
}

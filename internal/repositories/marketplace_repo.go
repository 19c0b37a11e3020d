package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/coin-arcade/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MarketplaceRepo owns listings and purchases.
type MarketplaceRepo struct {
	pool *pgxpool.Pool
}

func NewMarketplaceRepo(pool *pgxpool.Pool) *MarketplaceRepo {
	return &MarketplaceRepo{pool: pool}
}

func (r *MarketplaceRepo) ListListings(ctx context.Context, activeOnly bool) ([]models.Listing, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, description, price_eth, active, created_at
		FROM listings
		WHERE NOT $1 OR active
		ORDER BY price_eth
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(&l.ID, &l.Title, &l.Description, &l.PriceETH, &l.Active, &l.CreatedAt); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (r *MarketplaceRepo) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var l models.Listing
	err := r.pool.QueryRow(ctx, `
		SELECT id, title, description, price_eth, active, created_at
		FROM listings WHERE id = $1
	`, id).Scan(&l.ID, &l.Title, &l.Description, &l.PriceETH, &l.Active, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *MarketplaceRepo) CreatePurchase(ctx context.Context, p *models.Purchase) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO purchases (listing_id, buyer, tx_hash, amount_eth, status, escrow_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, p.ListingID, p.Buyer, p.TxHash, p.AmountETH, p.Status, p.EscrowStatus).Scan(&p.ID, &p.CreatedAt)
}

func (r *MarketplaceRepo) GetPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var p models.Purchase
	err := r.pool.QueryRow(ctx, `
		SELECT id, listing_id, buyer, tx_hash, amount_eth, status, escrow_status, validated_at, created_at
		FROM purchases WHERE id = $1
	`, id).Scan(&p.ID, &p.ListingID, &p.Buyer, &p.TxHash, &p.AmountETH, &p.Status, &p.EscrowStatus, &p.ValidatedAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SettlePurchase moves a pending purchase to its terminal status, stamping
// validated_at. Returns false when the purchase was not pending, which is
// how retries detect already-processed rows.
func (r *MarketplaceRepo) SettlePurchase(ctx context.Context, id uuid.UUID, status, escrowStatus string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE purchases
		SET status = $2, escrow_status = $3, validated_at = now()
		WHERE id = $1 AND status = $4
	`, id, status, escrowStatus, models.PurchaseStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *MarketplaceRepo) PurchasesByBuyer(ctx context.Context, buyer string, limit int) ([]models.Purchase, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, listing_id, buyer, tx_hash, amount_eth, status, escrow_status, validated_at, created_at
		FROM purchases
		WHERE buyer = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, buyer, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []models.Purchase
	for rows.Next() {
		var p models.Purchase
		if err := rows.Scan(&p.ID, &p.ListingID, &p.Buyer, &p.TxHash, &p.AmountETH, &p.Status, &p.EscrowStatus, &p.ValidatedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

// PendingOlderThan lists pending purchases created before the cutoff, for
// the worker's revalidation sweep.
func (r *MarketplaceRepo) PendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Purchase, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, listing_id, buyer, tx_hash, amount_eth, status, escrow_status, validated_at, created_at
		FROM purchases
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`, models.PurchaseStatusPending, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []models.Purchase
	for rows.Next() {
		var p models.Purchase
		if err := rows.Scan(&p.ID, &p.ListingID, &p.Buyer, &p.TxHash, &p.AmountETH, &p.Status, &p.EscrowStatus, &p.ValidatedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func (r *MarketplaceRepo) Stats(ctx context.Context) (*models.MarketplaceStats, error) {
	var s models.MarketplaceStats
	err := r.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM listings WHERE active),
		       (SELECT COUNT(*) FROM purchases),
		       (SELECT COUNT(*) FROM purchases WHERE status = 'completed'),
		       (SELECT COALESCE(SUM(amount_eth), 0) FROM purchases WHERE status = 'completed')
	`).Scan(&s.ActiveListings, &s.TotalPurchases, &s.CompletedPurchases, &s.VolumeETH)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

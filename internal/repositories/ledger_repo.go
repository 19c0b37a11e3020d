package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/coin-arcade/backend/internal/apperrors"
	"github.com/coin-arcade/backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepo owns account_balances, coin_transactions,
// processed_transactions and premium_memberships. Every balance mutation
// goes through one guarded read-modify-write inside a transaction, so the
// non-negativity and one-audit-row-per-mutation invariants hold for all
// callers.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// GetBalance returns a zero balance for unknown addresses without
// creating a row.
func (r *LedgerRepo) GetBalance(ctx context.Context, address string) (*models.AccountBalance, error) {
	b := &models.AccountBalance{Address: address}
	err := r.pool.QueryRow(ctx, `
		SELECT balance, updated_at FROM account_balances WHERE address = $1
	`, address).Scan(&b.Balance, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return b, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ApplyDelta mutates the balance by delta and appends the matching audit
// row. The row is created on first credit. Returns the new balance, or an
// InsufficientBalance error leaving nothing mutated.
func (r *LedgerRepo) ApplyDelta(ctx context.Context, address string, delta int64, txType string, ref *string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	balance, err := applyDeltaTx(ctx, tx, address, delta, txType, ref)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return balance, nil
}

// applyDeltaTx is the shared mutation core. The upsert locks the row for
// the rest of the transaction.
func applyDeltaTx(ctx context.Context, tx pgx.Tx, address string, delta int64, txType string, ref *string) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx, `
		INSERT INTO account_balances (address, balance) VALUES ($1, 0)
		ON CONFLICT (address) DO UPDATE SET address = EXCLUDED.address
		RETURNING balance
	`, address).Scan(&balance)
	if err != nil {
		return 0, err
	}

	if balance+delta < 0 {
		return 0, apperrors.InsufficientBalance(balance, -delta)
	}

	err = tx.QueryRow(ctx, `
		UPDATE account_balances SET balance = balance + $2, updated_at = now()
		WHERE address = $1
		RETURNING balance
	`, address, delta).Scan(&balance)
	if err != nil {
		return 0, err
	}

	amount := delta
	if amount < 0 {
		amount = -amount
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO coin_transactions (address, type, amount, ref) VALUES ($1, $2, $3, $4)
	`, address, txType, amount, ref)
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// IsProcessed reports whether the tx hash has already been credited.
func (r *LedgerRepo) IsProcessed(ctx context.Context, txHash string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM processed_transactions WHERE tx_hash = $1)
	`, txHash).Scan(&exists)
	return exists, err
}

// CreditPurchase records the processed on-chain transaction and credits
// the coins in one database transaction. The processed_transactions
// primary key makes the credit idempotent under races.
func (r *LedgerRepo) CreditPurchase(ctx context.Context, p *models.ProcessedTransaction) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO processed_transactions (tx_hash, address, eth_amount, coins_added, block_number)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tx_hash) DO NOTHING
	`, p.TxHash, p.Address, p.ETHAmount, p.CoinsAdded, p.BlockNumber)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, apperrors.DuplicateTransaction(p.TxHash)
	}

	ref := p.TxHash
	balance, err := applyDeltaTx(ctx, tx, p.Address, p.CoinsAdded, models.CoinTxPurchase, &ref)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return balance, nil
}

// RedeemPremium debits the cost and replaces the membership window
// atomically.
func (r *LedgerRepo) RedeemPremium(ctx context.Context, address string, cost int64, expiresAt time.Time) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	ref := "premium"
	balance, err := applyDeltaTx(ctx, tx, address, -cost, models.CoinTxRedeem, &ref)
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO premium_memberships (address, started_at, expires_at)
		VALUES ($1, now(), $2)
		ON CONFLICT (address) DO UPDATE SET started_at = now(), expires_at = EXCLUDED.expires_at
	`, address, expiresAt)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *LedgerRepo) GetMembership(ctx context.Context, address string) (*models.PremiumMembership, error) {
	var m models.PremiumMembership
	err := r.pool.QueryRow(ctx, `
		SELECT address, started_at, expires_at FROM premium_memberships WHERE address = $1
	`, address).Scan(&m.Address, &m.StartedAt, &m.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *LedgerRepo) RecentTransactions(ctx context.Context, address string, limit int) ([]models.CoinTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, address, type, amount, ref, created_at
		FROM coin_transactions
		WHERE address = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, address, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.CoinTransaction
	for rows.Next() {
		var t models.CoinTransaction
		if err := rows.Scan(&t.ID, &t.Address, &t.Type, &t.Amount, &t.Ref, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

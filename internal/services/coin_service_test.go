package services

import (
	"context"
	"testing"
	"time"

	"github.com/coin-arcade/backend/internal/apperrors"
	"github.com/coin-arcade/backend/internal/chain"
	"github.com/coin-arcade/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeLedger is an in-memory LedgerStore enforcing the same invariants
// as the SQL layer: balances never go negative, every mutation appends
// an audit row, a tx hash credits at most once.
type fakeLedger struct {
	balances    map[string]int64
	txs         []models.CoinTransaction
	processed   map[string]bool
	memberships map[string]*models.PremiumMembership
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances:    map[string]int64{},
		processed:   map[string]bool{},
		memberships: map[string]*models.PremiumMembership{},
	}
}

func (f *fakeLedger) GetBalance(_ context.Context, address string) (*models.AccountBalance, error) {
	return &models.AccountBalance{Address: address, Balance: f.balances[address]}, nil
}

func (f *fakeLedger) applyDelta(address string, delta int64, txType string, ref *string) (int64, error) {
	next := f.balances[address] + delta
	if next < 0 {
		return 0, apperrors.InsufficientBalance(f.balances[address], -delta)
	}
	f.balances[address] = next
	amount := delta
	if amount < 0 {
		amount = -amount
	}
	f.txs = append(f.txs, models.CoinTransaction{
		Address: address,
		Type:    txType,
		Amount:  amount,
		Ref:     ref,
	})
	return next, nil
}

func (f *fakeLedger) ApplyDelta(_ context.Context, address string, delta int64, txType string, ref *string) (int64, error) {
	return f.applyDelta(address, delta, txType, ref)
}

func (f *fakeLedger) IsProcessed(_ context.Context, txHash string) (bool, error) {
	return f.processed[txHash], nil
}

func (f *fakeLedger) CreditPurchase(_ context.Context, p *models.ProcessedTransaction) (int64, error) {
	if f.processed[p.TxHash] {
		return 0, apperrors.DuplicateTransaction(p.TxHash)
	}
	f.processed[p.TxHash] = true
	return f.applyDelta(p.Address, p.CoinsAdded, models.CoinTxPurchase, &p.TxHash)
}

func (f *fakeLedger) RedeemPremium(_ context.Context, address string, cost int64, expiresAt time.Time) (int64, error) {
	balance, err := f.applyDelta(address, -cost, models.CoinTxRedeem, nil)
	if err != nil {
		return 0, err
	}
	f.memberships[address] = &models.PremiumMembership{
		Address:   address,
		StartedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	return balance, nil
}

func (f *fakeLedger) GetMembership(_ context.Context, address string) (*models.PremiumMembership, error) {
	return f.memberships[address], nil
}

func (f *fakeLedger) RecentTransactions(_ context.Context, address string, limit int) ([]models.CoinTransaction, error) {
	var out []models.CoinTransaction
	for i := len(f.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if f.txs[i].Address == address {
			out = append(out, f.txs[i])
		}
	}
	return out, nil
}

const (
	testAddr = "0xab5801a7d398351b8be11c439e05c5b3259aec9b"
	testHash = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

func newCoinService(ledger *fakeLedger, verifier *stubVerifier) (*CoinService, *fakePublisher) {
	pub := &fakePublisher{}
	return NewCoinService(ledger, verifier, pub, testConfig(), zap.NewNop()), pub
}

func TestEarnCoinsValidation(t *testing.T) {
	svc, _ := newCoinService(newFakeLedger(), &stubVerifier{})
	ctx := context.Background()

	_, err := svc.EarnCoins(ctx, testAddr, 0, nil)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation), "zero amount")

	_, err = svc.EarnCoins(ctx, testAddr, 1001, nil)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation), "over credit cap")

	_, err = svc.EarnCoins(ctx, testAddr, -1001, nil)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation), "over debit cap")
}

func TestEarnCoinsBalanceNeverNegative(t *testing.T) {
	ledger := newFakeLedger()
	svc, _ := newCoinService(ledger, &stubVerifier{})
	ctx := context.Background()

	res, err := svc.EarnCoins(ctx, testAddr, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Balance)

	res, err = svc.EarnCoins(ctx, testAddr, -40, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(60), res.Balance)

	_, err = svc.EarnCoins(ctx, testAddr, -61, nil)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInsufficientBalance))
	assert.Equal(t, int64(60), ledger.balances[testAddr], "failed debit must not move the balance")
}

func TestEarnCoinsAuditTrail(t *testing.T) {
	ledger := newFakeLedger()
	svc, _ := newCoinService(ledger, &stubVerifier{})
	ctx := context.Background()

	ref := "game:123"
	_, err := svc.EarnCoins(ctx, testAddr, 100, nil)
	require.NoError(t, err)
	_, err = svc.EarnCoins(ctx, testAddr, -40, &ref)
	require.NoError(t, err)

	require.Len(t, ledger.txs, 2)
	assert.Equal(t, models.CoinTxEarn, ledger.txs[0].Type)
	assert.Equal(t, models.CoinTxSpend, ledger.txs[1].Type)
	assert.Equal(t, int64(40), ledger.txs[1].Amount, "audit amounts are stored positive")
	require.NotNil(t, ledger.txs[1].Ref)
	assert.Equal(t, ref, *ledger.txs[1].Ref)
}

func TestPurchaseCoins(t *testing.T) {
	ledger := newFakeLedger()
	verifier := &stubVerifier{result: &chain.Result{
		Valid:       true,
		ETHAmount:   0.25,
		BlockNumber: 42,
	}}
	svc, pub := newCoinService(ledger, verifier)
	ctx := context.Background()

	res, err := svc.PurchaseCoins(ctx, testAddr, 0.25, testHash)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), res.CoinsAdded, "0.25 ETH at 10000 coins per ETH")
	assert.Equal(t, int64(2500), res.Balance)
	assert.True(t, res.Verified)
	assert.Equal(t, uint64(42), res.BlockNumber)

	evs := pub.published()
	require.Len(t, evs, 1)
	assert.Equal(t, "coins_purchased", evs[0].Type)

	// Same hash again: rejected before the verifier is consulted twice.
	calls := verifier.calls
	_, err = svc.PurchaseCoins(ctx, testAddr, 0.25, testHash)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDuplicateTransaction))
	assert.Equal(t, calls, verifier.calls)
	assert.Equal(t, int64(2500), ledger.balances[testAddr], "duplicate must not credit again")
}

func TestPurchaseCoinsVerificationFailure(t *testing.T) {
	ledger := newFakeLedger()
	verifier := &stubVerifier{result: &chain.Result{Valid: false, Err: "Transaction not found"}}
	svc, _ := newCoinService(ledger, verifier)

	_, err := svc.PurchaseCoins(context.Background(), testAddr, 0.01, testHash)
	assert.True(t, apperrors.IsKind(err, apperrors.KindVerification))
	assert.Empty(t, ledger.txs, "failed verification must not touch the ledger")
	assert.False(t, ledger.processed[testHash], "failed verification must not burn the tx hash")
}

func TestPurchaseCoinsAmountMismatch(t *testing.T) {
	verifier := &stubVerifier{result: &chain.Result{Valid: true, ETHAmount: 0.02}}
	svc, _ := newCoinService(newFakeLedger(), verifier)

	_, err := svc.PurchaseCoins(context.Background(), testAddr, 0.01, testHash)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAmountMismatch))
}

func TestPurchaseCoinsRequiresHash(t *testing.T) {
	svc, _ := newCoinService(newFakeLedger(), &stubVerifier{})
	_, err := svc.PurchaseCoins(context.Background(), testAddr, 0.01, "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestRedeemPremium(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances[testAddr] = 600
	svc, _ := newCoinService(ledger, &stubVerifier{})
	ctx := context.Background()

	res, err := svc.RedeemPremium(ctx, testAddr)
	require.NoError(t, err)
	assert.True(t, res.Premium)
	assert.Equal(t, int64(100), ledger.balances[testAddr])

	status, err := svc.MembershipStatus(ctx, testAddr)
	require.NoError(t, err)
	assert.True(t, status.Premium)
	require.NotNil(t, status.ExpiresAt)
	assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), *status.ExpiresAt, time.Minute)
}

func TestRedeemPremiumInsufficientBalance(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances[testAddr] = 499
	svc, _ := newCoinService(ledger, &stubVerifier{})

	_, err := svc.RedeemPremium(context.Background(), testAddr)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInsufficientBalance))
	assert.Equal(t, int64(499), ledger.balances[testAddr])
}

func TestMembershipStatusExpired(t *testing.T) {
	ledger := newFakeLedger()
	ledger.memberships[testAddr] = &models.PremiumMembership{
		Address:   testAddr,
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	svc, _ := newCoinService(ledger, &stubVerifier{})

	status, err := svc.MembershipStatus(context.Background(), testAddr)
	require.NoError(t, err)
	assert.False(t, status.Premium)
	assert.True(t, status.Expired)
}

func TestMembershipStatusNone(t *testing.T) {
	svc, _ := newCoinService(newFakeLedger(), &stubVerifier{})
	status, err := svc.MembershipStatus(context.Background(), testAddr)
	require.NoError(t, err)
	assert.False(t, status.Premium)
	assert.Nil(t, status.ExpiresAt)
}

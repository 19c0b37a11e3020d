package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coin-arcade/backend/internal/apperrors"
	"github.com/coin-arcade/backend/internal/chain"
	"github.com/coin-arcade/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMarketStore struct {
	mu        sync.Mutex
	listings  map[uuid.UUID]*models.Listing
	purchases map[uuid.UUID]*models.Purchase
}

func newFakeMarketStore() *fakeMarketStore {
	return &fakeMarketStore{
		listings:  map[uuid.UUID]*models.Listing{},
		purchases: map[uuid.UUID]*models.Purchase{},
	}
}

func (f *fakeMarketStore) addListing(priceETH float64, active bool) uuid.UUID {
	id := uuid.New()
	f.listings[id] = &models.Listing{ID: id, Title: "item", PriceETH: priceETH, Active: active}
	return id
}

func (f *fakeMarketStore) ListListings(_ context.Context, activeOnly bool) ([]models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Listing
	for _, l := range f.listings {
		if !activeOnly || l.Active {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeMarketStore) GetListing(_ context.Context, id uuid.UUID) (*models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (f *fakeMarketStore) CreatePurchase(_ context.Context, p *models.Purchase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	cp := *p
	f.purchases[p.ID] = &cp
	return nil
}

func (f *fakeMarketStore) GetPurchase(_ context.Context, id uuid.UUID) (*models.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.purchases[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeMarketStore) SettlePurchase(_ context.Context, id uuid.UUID, status, escrowStatus string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.purchases[id]
	if !ok || p.Status != models.PurchaseStatusPending {
		return false, nil
	}
	p.Status = status
	p.EscrowStatus = escrowStatus
	now := time.Now().UTC()
	p.ValidatedAt = &now
	return true, nil
}

func (f *fakeMarketStore) PurchasesByBuyer(_ context.Context, buyer string, limit int) ([]models.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Purchase
	for _, p := range f.purchases {
		if p.Buyer == buyer && len(out) < limit {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeMarketStore) PendingOlderThan(_ context.Context, cutoff time.Time, limit int) ([]models.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Purchase
	for _, p := range f.purchases {
		if p.Status == models.PurchaseStatusPending && p.CreatedAt.Before(cutoff) && len(out) < limit {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeMarketStore) Stats(_ context.Context) (*models.MarketplaceStats, error) {
	return &models.MarketplaceStats{}, nil
}

func newMarketService(store *fakeMarketStore, verifier *stubVerifier) (*MarketplaceService, *fakePublisher) {
	cfg := testConfig()
	// Keep the scheduled revalidation goroutine asleep for the test's
	// lifetime so settlement happens only where the test drives it.
	cfg.RevalidationDelay = time.Hour
	pub := &fakePublisher{}
	return NewMarketplaceService(store, verifier, pub, cfg, zap.NewNop()), pub
}

func TestRecordPurchaseValidation(t *testing.T) {
	store := newFakeMarketStore()
	listingID := store.addListing(0.05, true)
	svc, _ := newMarketService(store, &stubVerifier{})
	ctx := context.Background()

	_, err := svc.RecordPurchase(ctx, listingID, testAddr, 0.05, "not-a-hash")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = svc.RecordPurchase(ctx, uuid.New(), testAddr, 0.05, testHash)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound), "unknown listing")

	inactive := store.addListing(0.05, false)
	_, err = svc.RecordPurchase(ctx, inactive, testAddr, 0.05, testHash)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound), "inactive listing")

	// Price off by 0.001 with a 0.0001 tolerance: rejected before any row
	// is written.
	_, err = svc.RecordPurchase(ctx, listingID, testAddr, 0.051, testHash)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.Empty(t, store.purchases, "rejected purchase must not leave a row")
}

func TestRecordPurchaseCreatesPendingRow(t *testing.T) {
	store := newFakeMarketStore()
	listingID := store.addListing(0.05, true)
	svc, _ := newMarketService(store, &stubVerifier{})

	p, err := svc.RecordPurchase(context.Background(), listingID, testAddr, 0.05, testHash)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusPending, p.Status)
	assert.Equal(t, models.EscrowStatusHeld, p.EscrowStatus)
	assert.Equal(t, listingID, p.ListingID)
}

func TestValidateAndCompletePurchase(t *testing.T) {
	store := newFakeMarketStore()
	listingID := store.addListing(0.05, true)
	verifier := &stubVerifier{result: &chain.Result{Valid: true, ETHAmount: 0.05}}
	svc, pub := newMarketService(store, verifier)
	ctx := context.Background()

	p, err := svc.RecordPurchase(ctx, listingID, testAddr, 0.05, testHash)
	require.NoError(t, err)

	done, err := svc.ValidateAndCompletePurchase(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusCompleted, done.Status)
	assert.Equal(t, models.EscrowStatusReleased, done.EscrowStatus)
	require.NotNil(t, done.ValidatedAt)

	// The verifier was asked to pin the buyer as sender.
	require.NotEmpty(t, verifier.params)
	assert.Equal(t, testAddr, verifier.params[0].ExpectedSender)
	assert.Equal(t, 0.05, verifier.params[0].ExpectedAmountETH)

	evs := pub.published()
	require.Len(t, evs, 1)
	assert.Equal(t, "purchase_status_changed", evs[0].Type)

	// Retrying a settled purchase is refused, not re-verified.
	calls := verifier.calls
	_, err = svc.ValidateAndCompletePurchase(ctx, p.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.Equal(t, calls, verifier.calls)
}

func TestValidateAndCompletePurchaseFailure(t *testing.T) {
	store := newFakeMarketStore()
	listingID := store.addListing(0.05, true)
	verifier := &stubVerifier{result: &chain.Result{Valid: false, Err: "recipient does not match payment wallet"}}
	svc, _ := newMarketService(store, verifier)
	ctx := context.Background()

	p, err := svc.RecordPurchase(ctx, listingID, testAddr, 0.05, testHash)
	require.NoError(t, err)

	done, err := svc.ValidateAndCompletePurchase(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusFailed, done.Status)
	assert.Equal(t, models.EscrowStatusHeld, done.EscrowStatus, "escrow stays held on a failed purchase")
}

func TestValidateAndCompletePurchaseChainError(t *testing.T) {
	store := newFakeMarketStore()
	listingID := store.addListing(0.05, true)
	verifier := &stubVerifier{err: errors.New("connection refused")}
	svc, _ := newMarketService(store, verifier)
	ctx := context.Background()

	p, err := svc.RecordPurchase(ctx, listingID, testAddr, 0.05, testHash)
	require.NoError(t, err)

	_, err = svc.ValidateAndCompletePurchase(ctx, p.ID)
	require.Error(t, err)

	// An unreachable chain leaves the purchase pending for a retry.
	got, err := store.GetPurchase(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusPending, got.Status)
}

func TestRevalidatePendingSweep(t *testing.T) {
	store := newFakeMarketStore()
	listingID := store.addListing(0.05, true)
	verifier := &stubVerifier{result: &chain.Result{Valid: true, ETHAmount: 0.05}}
	svc, _ := newMarketService(store, verifier)
	ctx := context.Background()

	p1, err := svc.RecordPurchase(ctx, listingID, testAddr, 0.05, testHash)
	require.NoError(t, err)
	p2, err := svc.RecordPurchase(ctx, listingID, testAddr, 0.05,
		"0x2222222222222222222222222222222222222222222222222222222222222222")
	require.NoError(t, err)

	// Backdate both so the sweep's age filter picks them up.
	store.mu.Lock()
	for _, p := range store.purchases {
		p.CreatedAt = p.CreatedAt.Add(-10 * time.Minute)
	}
	store.mu.Unlock()

	settled := svc.RevalidatePending(ctx, time.Minute, 50)
	assert.Equal(t, 2, settled)

	for _, id := range []uuid.UUID{p1.ID, p2.ID} {
		got, err := store.GetPurchase(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.PurchaseStatusCompleted, got.Status)
	}

	// A second sweep finds nothing pending.
	assert.Equal(t, 0, svc.RevalidatePending(ctx, time.Minute, 50))
}

package services

import (
	"context"
	"sync"
	"time"

	"github.com/coin-arcade/backend/internal/chain"
	"github.com/coin-arcade/backend/internal/config"
	"github.com/coin-arcade/backend/internal/events"
)

func testConfig() *config.Config {
	return &config.Config{
		PaymentWallet:     "0x000000000000000000000000000000000000dead",
		PurchaseRate:      10000,
		MinPaymentETH:     0.001,
		AmountTolerance:   0.0001,
		CreditCapPerCall:  1000,
		DebitCapPerCall:   1000,
		PremiumCostCoins:  500,
		PremiumDuration:   30 * 24 * time.Hour,
		MinConfirmations:  3,
		RevalidationDelay: time.Millisecond,
	}
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, _ string, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// stubVerifier returns a canned verification result.
type stubVerifier struct {
	mu     sync.Mutex
	result *chain.Result
	err    error
	calls  int
	params []chain.Params
}

func (v *stubVerifier) Verify(_ context.Context, _ string, params chain.Params) (*chain.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	v.params = append(v.params, params)
	return v.result, v.err
}

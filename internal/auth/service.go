package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/coin-arcade/backend/internal/apperrors"
	"go.uber.org/zap"
)

type Service struct {
	store      Store
	nonceTTL   time.Duration
	sessionTTL time.Duration
	log        *zap.Logger
}

func NewService(store Store, nonceTTL, sessionTTL time.Duration, log *zap.Logger) *Service {
	return &Service{
		store:      store,
		nonceTTL:   nonceTTL,
		sessionTTL: sessionTTL,
		log:        log,
	}
}

// RequestNonce issues a fresh single-use challenge for the address,
// overwriting any pending one.
func (s *Service) RequestNonce(ctx context.Context, address string) (string, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return "", apperrors.Validation("%v", err)
	}

	nonce := randomHex(16)
	if err := s.store.PutNonce(ctx, addr, nonce, s.nonceTTL); err != nil {
		return "", fmt.Errorf("store nonce: %w", err)
	}
	return nonce, nil
}

// VerifySignature checks the signature over the pending nonce and mints a
// session. The nonce is consumed only on success, so a failed attempt
// leaves it valid for a retry.
func (s *Service) VerifySignature(ctx context.Context, address, signature string) (*Session, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, apperrors.Validation("%v", err)
	}

	nonce, err := s.store.GetNonce(ctx, addr)
	if errors.Is(err, ErrNotFound) {
		return nil, apperrors.Auth("no pending nonce for address")
	}
	if err != nil {
		return nil, fmt.Errorf("load nonce: %w", err)
	}

	recovered, err := RecoverAddress(LoginMessage(nonce), signature)
	if err != nil {
		return nil, apperrors.Auth("signature could not be verified")
	}
	if recovered != addr {
		s.log.Debug("signature mismatch",
			zap.String("claimed", addr),
			zap.String("recovered", recovered),
		)
		return nil, apperrors.Auth("signature does not match address")
	}

	// Atomic remove-and-return: of two racing verifies over the same
	// nonce, exactly one gets it back and mints a session.
	consumed, err := s.store.ConsumeNonce(ctx, addr)
	if errors.Is(err, ErrNotFound) {
		return nil, apperrors.Auth("nonce already used")
	}
	if err != nil {
		return nil, fmt.Errorf("consume nonce: %w", err)
	}
	if consumed != nonce {
		return nil, apperrors.Auth("nonce already used")
	}

	sess := Session{
		Address:   addr,
		Token:     randomHex(32),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.PutSession(ctx, sess, s.sessionTTL); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	s.log.Info("session created", zap.String("address", addr))
	return &sess, nil
}

// GetSession resolves a bearer token. Sessions past their soft expiry are
// deleted on access rather than swept.
func (s *Service) GetSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, apperrors.Auth("missing session token")
	}

	sess, err := s.store.GetSession(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, apperrors.Auth("invalid session")
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if time.Since(sess.CreatedAt) > s.sessionTTL {
		_ = s.store.DeleteSession(ctx, token)
		return nil, apperrors.Auth("invalid session")
	}
	return sess, nil
}

func randomHex(bytes int) string {
	b := make([]byte, bytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

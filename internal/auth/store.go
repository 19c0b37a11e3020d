// Package auth implements the wallet-signature login handshake: a
// single-use nonce challenge, secp256k1 signature recovery, and opaque
// bearer session tokens.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Store lookups for missing or expired keys.
var ErrNotFound = errors.New("auth: not found")

type Session struct {
	Address   string    `json:"address"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// Store holds nonces and sessions. Keys expire server-side; both are
// single-instance-free so the API can scale horizontally.
type Store interface {
	PutNonce(ctx context.Context, address, nonce string, ttl time.Duration) error
	GetNonce(ctx context.Context, address string) (string, error)
	// ConsumeNonce removes and returns the pending nonce in one step, so
	// concurrent consumers cannot both succeed.
	ConsumeNonce(ctx context.Context, address string) (string, error)

	PutSession(ctx context.Context, s Session, ttl time.Duration) error
	GetSession(ctx context.Context, token string) (*Session, error)
	DeleteSession(ctx context.Context, token string) error
}

const (
	noncePrefix   = "auth:nonce:"
	sessionPrefix = "auth:session:"
)

// RedisStore backs Store with redis TTLs, which gives the lazy-expiry
// contract for free.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) PutNonce(ctx context.Context, address, nonce string, ttl time.Duration) error {
	return s.client.Set(ctx, noncePrefix+address, nonce, ttl).Err()
}

func (s *RedisStore) GetNonce(ctx context.Context, address string) (string, error) {
	v, err := s.client.Get(ctx, noncePrefix+address).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (s *RedisStore) ConsumeNonce(ctx context.Context, address string) (string, error) {
	v, err := s.client.GetDel(ctx, noncePrefix+address).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (s *RedisStore) PutSession(ctx context.Context, sess Session, ttl time.Duration) error {
	key := sessionPrefix + sess.Token
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"address", sess.Address,
		"created_at", sess.CreatedAt.UTC().Format(time.RFC3339),
	)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) GetSession(ctx context.Context, token string) (*Session, error) {
	vals, err := s.client.HGetAll(ctx, sessionPrefix+token).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, ErrNotFound
	}
	createdAt, _ := time.Parse(time.RFC3339, vals["created_at"])
	return &Session{
		Address:   vals["address"],
		Token:     token,
		CreatedAt: createdAt,
	}, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionPrefix+token).Err()
}

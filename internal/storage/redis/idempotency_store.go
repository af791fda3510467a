// Package redis provides a Redis-backed order idempotency ledger for
// deployments that share one ledger across engine replicas.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

// DefaultPrefix namespaces ledger keys.
const DefaultPrefix = "tradegate:idem"

// IdempotencyStore implements storage.IdempotencyStore on Redis.
// Insert uses SETNX so concurrent writers of one fingerprint race safely.
type IdempotencyStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration // 0 keeps records forever
}

// Compile-time interface check.
var _ storage.IdempotencyStore = (*IdempotencyStore)(nil)

// Option configures an IdempotencyStore.
type Option func(*IdempotencyStore)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *IdempotencyStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTTL expires records after ttl; zero or negative keeps them forever.
// A record must outlive its tick bucket or the intent could be resubmitted
// within that bucket, so ttl has to exceed the bucket interval. The config
// layer rejects shorter values.
func WithTTL(ttl time.Duration) Option {
	return func(s *IdempotencyStore) {
		if ttl < 0 {
			ttl = 0
		}
		s.ttl = ttl
	}
}

// NewIdempotencyStore connects using a redis:// URL and verifies the connection.
func NewIdempotencyStore(ctx context.Context, url string, opts ...Option) (*IdempotencyStore, error) {
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(ropts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewIdempotencyStoreWithClient(client, opts...), nil
}

// NewIdempotencyStoreWithClient wraps an existing client.
func NewIdempotencyStoreWithClient(client *redis.Client, opts ...Option) *IdempotencyStore {
	s := &IdempotencyStore{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the Redis connection.
func (s *IdempotencyStore) Close() error {
	return s.client.Close()
}

// Insert adds a new record. Returns ErrDuplicateKey if the fingerprint exists.
func (s *IdempotencyStore) Insert(ctx context.Context, r *domain.IdempotencyRecord) error {
	if r == nil || r.Fingerprint == "" {
		return storage.ErrInvalidInput
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(r.Fingerprint), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("setnx idempotency record: %w", err)
	}
	if !ok {
		return storage.ErrDuplicateKey
	}
	return nil
}

// GetByFingerprint retrieves a record. Returns ErrNotFound if not exists.
func (s *IdempotencyStore) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.IdempotencyRecord, error) {
	data, err := s.client.Get(ctx, s.key(fingerprint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}

	var r domain.IdempotencyRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: decode idempotency record %s: %v", storage.ErrCorruptState, fingerprint, err)
	}
	return &r, nil
}

func (s *IdempotencyStore) key(fingerprint string) string {
	return s.prefix + ":" + fingerprint
}

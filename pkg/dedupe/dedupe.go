// Package dedupe remembers which ids a process has already acted on, so Pub/Sub
// redeliveries and replayed provider redirects are handled once.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tinytales/storefront-backend/pkg/redis"
)

// Set is a scoped, expiring set of claimed ids backed by Redis SETNX.
type Set struct {
	store redis.IdempotencyStore
	scope string
	ttl   time.Duration
}

func New(store redis.IdempotencyStore, scope string, ttl time.Duration) (*Set, error) {
	switch {
	case store == nil:
		return nil, errors.New("dedupe store is required")
	case scope == "":
		return nil, errors.New("dedupe scope is required")
	case ttl <= 0:
		return nil, errors.New("dedupe ttl must be positive")
	}
	return &Set{store: store, scope: scope, ttl: ttl}, nil
}

// Claim reports whether the caller is the first to claim id within the TTL.
func (s *Set) Claim(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.New("dedupe id is required")
	}
	first, err := s.store.SetNX(ctx, s.store.IdempotencyKey(s.scope, id), time.Now().UTC().Format(time.RFC3339), s.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s/%s: %w", s.scope, id, err)
	}
	return first, nil
}

// Release gives id back so a retry can claim it after a failure.
func (s *Set) Release(ctx context.Context, id string) error {
	if err := s.store.Del(ctx, s.store.IdempotencyKey(s.scope, id)); err != nil {
		return fmt.Errorf("release %s/%s: %w", s.scope, id, err)
	}
	return nil
}

package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// DefaultTTL is the dedup window applied when none is configured.
const DefaultTTL = 1800 * time.Second

const keyPrefix = "webhook:dedup:"

var ErrStoreUnavailable = errors.New("idempotency: store unavailable")

// Store records keys with an expiry.
// SetIfAbsent must be atomic: of two concurrent callers with the same key,
// exactly one gets true.
type Store interface {
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Gate rejects repeated webhook bodies within a time window.
// It is best-effort dedup, not exactly-once delivery: a body seen again after
// the window is admitted again.
type Gate struct {
	store Store
	ttl   time.Duration
}

func NewGate(store Store, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Gate{store: store, ttl: ttl}
}

// Admit returns true the first time a body is seen inside the window.
// Store failures are returned wrapped in ErrStoreUnavailable; the caller
// decides whether to fail open or closed.
func (g *Gate) Admit(ctx context.Context, raw []byte) (bool, error) {
	if g.store == nil {
		return false, fmt.Errorf("%w: not configured", ErrStoreUnavailable)
	}
	ok, err := g.store.SetIfAbsent(ctx, Key(raw), g.ttl)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}

// Release forgets a body so its next delivery is admitted again. Used when
// an admitted body could not be handed to the workers.
func (g *Gate) Release(ctx context.Context, raw []byte) error {
	if g.store == nil {
		return fmt.Errorf("%w: not configured", ErrStoreUnavailable)
	}
	if err := g.store.Delete(ctx, Key(raw)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Key is the store key for a raw body: prefix + hex SHA-256.
func Key(raw []byte) string {
	sum := sha256.Sum256(raw)
	return keyPrefix + hex.EncodeToString(sum[:])
}

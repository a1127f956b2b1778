// Package blacklist records revoked token identifiers in Redis. Entries are
// keyed by jti and live no longer than the revoked token itself would have,
// so the set is self-bounding. ClaimOnce is the single atomic primitive the
// refresh state machine relies on for exactly-once consumption.
package blacklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps Redis transport failures, including bounded
// per-operation timeouts.
var ErrUnavailable = errors.New("blacklist store unavailable")

// Entries for tokens already past expiry still get a minimal TTL so the
// write is observable by concurrent claimers.
const minEntryTTL = time.Second

const scanPageSize = 1000

// Store is the Redis-backed revocation list.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	opTimeout time.Duration
}

// NewStore creates a blacklist store under the given key prefix.
func NewStore(client redis.UniversalClient, prefix string, opTimeout time.Duration) *Store {
	if prefix == "" {
		prefix = "ax"
	}
	return &Store{redis: client, prefix: prefix, opTimeout: opTimeout}
}

func (s *Store) key(tokenID string) string {
	return s.prefix + ":bl:" + tokenID
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func entryTTL(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt)
	if ttl < minEntryTTL {
		return minEntryTTL
	}
	return ttl
}

// Add records the token as revoked until its original expiry. Overwrites
// any prior entry for the same jti.
func (s *Store) Add(ctx context.Context, tokenID, reason string, expiresAt time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.redis.Set(ctx, s.key(tokenID), reason, entryTTL(expiresAt)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Contains reports whether the token is currently revoked.
func (s *Store) Contains(ctx context.Context, tokenID string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	n, err := s.redis.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// ClaimOnce atomically blacklists the token only if it is not already
// blacklisted and reports whether this caller won. One SETNX round-trip, not
// a read-then-write pair: among any number of concurrent claimers for the
// same jti exactly one wins, even across processes.
func (s *Store) ClaimOnce(ctx context.Context, tokenID, reason string, expiresAt time.Time) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	won, err := s.redis.SetNX(ctx, s.key(tokenID), reason, entryTTL(expiresAt)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return won, nil
}

// Estimate counts live blacklist entries with a key scan. Analytics use
// only.
func (s *Store) Estimate(ctx context.Context) (int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var (
		cursor uint64
		total  int
	)
	pattern := s.prefix + ":bl:*"

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, scanPageSize).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return total, nil
}

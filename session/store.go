package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps every Redis transport failure, including bounded
// per-operation timeouts. A missing key is redis.Nil, never this.
var ErrUnavailable = errors.New("session store unavailable")

const scanPageSize = 1000

// Compare-and-set on the record bytes. Writes only when the key still holds
// exactly the value the caller read, so a deleted session is never recreated
// and a concurrent refresh is never rolled back.
var touchScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "KEEPTTL")
	return 1
end
return 0
`)

// Store is the Redis-backed session store. All cross-process coordination
// for sessions goes through it; it holds no state of its own beyond the
// client, so it is safe for concurrent use.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	opTimeout time.Duration
}

// NewStore creates a session store under the given key prefix. opTimeout
// bounds every Redis round-trip; zero disables the bound.
func NewStore(client redis.UniversalClient, prefix string, opTimeout time.Duration) *Store {
	if prefix == "" {
		prefix = "ax"
	}
	return &Store{redis: client, prefix: prefix, opTimeout: opTimeout}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":sess:" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":user:" + userID
}

func (s *Store) anomalyKey(userID string) string {
	return s.prefix + ":anom:" + userID
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// Save writes the record and its user-index entry in one transaction with
// the given TTL. The index key's TTL is refreshed alongside so it outlives
// the newest session it tracks.
func (s *Store) Save(ctx context.Context, rec *Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(rec.SessionID), data, ttl)
		pipe.SAdd(ctx, s.userKey(rec.UserID), rec.SessionID)
		pipe.Expire(ctx, s.userKey(rec.UserID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get fetches a record. Missing or store-expired sessions surface as
// redis.Nil so callers can distinguish "gone" from "store down".
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &rec, nil
}

// TouchLastAccessed bumps LastAccessed without moving the TTL. Used as a
// best-effort side effect of validation; refresh goes through Save instead
// because it also advances RefreshCount and renews the TTL. The write is a
// compare-and-set against the bytes just read: if the record was deleted or
// rewritten in between, the touch silently loses and the store's newer
// decision stands.
func (s *Store) TouchLastAccessed(ctx context.Context, sessionID string, now time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	rec.LastAccessed = now

	updated, err := json.Marshal(&rec)
	if err != nil {
		return err
	}

	if err := touchScript.Run(ctx, s.redis, []string{s.key(sessionID)}, data, updated).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes a session and its index entry. Idempotent: deleting a
// session that is already gone reports existed=false with no error.
func (s *Store) Delete(ctx context.Context, sessionID string) (bool, error) {
	rec, err := s.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sessionID))
		pipe.SRem(ctx, s.userKey(rec.UserID), sessionID)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return true, nil
}

// DeleteAllForUser removes every live session for the user and returns how
// many actually existed. Index entries whose record already expired do not
// count. A session created between the index read and the delete burst is
// not captured; it expires naturally or falls to the next call.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	sessionIDs, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	pipe := s.redis.Pipeline()
	existsCmds := make([]*redis.IntCmd, len(sessionIDs))
	for i, sid := range sessionIDs {
		existsCmds[i] = pipe.Exists(ctx, s.key(sid))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	existing := 0
	for _, cmd := range existsCmds {
		n, cmdErr := cmd.Result()
		if cmdErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, cmdErr)
		}
		existing += int(n)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, sid := range sessionIDs {
			pipe.Del(ctx, s.key(sid))
		}
		pipe.Del(ctx, s.userKey(userID))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return existing, nil
}

// UserSessions returns every live record tracked for the user. Stale index
// entries (record expired, not yet cleaned) are skipped silently.
func (s *Store) UserSessions(ctx context.Context, userID string) ([]*Record, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	sessionIDs, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Record{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(sessionIDs) == 0 {
		return []*Record{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(sessionIDs))
	for i, sid := range sessionIDs {
		cmds[i] = pipe.Get(ctx, s.key(sid))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	records := make([]*Record, 0, len(sessionIDs))
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, cmdErr)
		}
		var rec Record
		if decErr := json.Unmarshal(data, &rec); decErr != nil {
			return nil, fmt.Errorf("decode session %s: %w", sessionIDs[i], decErr)
		}
		records = append(records, &rec)
	}
	return records, nil
}

// FlagAnomaly marks the user as recently anomalous for the given window.
// The policy layer reads the flag; it self-expires.
func (s *Store) FlagAnomaly(ctx context.Context, userID string, window time.Duration) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.redis.Set(ctx, s.anomalyKey(userID), "1", window).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// AnomalyFlagged reports whether an anomaly flag is live for the user.
func (s *Store) AnomalyFlagged(ctx context.Context, userID string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	n, err := s.redis.Exists(ctx, s.anomalyKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// CleanupExpired prunes user-index entries whose primary record expired via
// store TTL. Primary records need no sweep; Redis drops them itself. Returns
// the number of index entries removed.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var (
		cursor  uint64
		removed int
	)
	pattern := s.prefix + ":user:*"

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, scanPageSize).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		for _, userKey := range keys {
			sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			if len(sessionIDs) == 0 {
				continue
			}

			pipe := s.redis.Pipeline()
			existsCmds := make([]*redis.IntCmd, len(sessionIDs))
			for i, sid := range sessionIDs {
				existsCmds[i] = pipe.Exists(ctx, s.key(sid))
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}

			stale := make([]interface{}, 0)
			for i, cmd := range existsCmds {
				n, cmdErr := cmd.Result()
				if cmdErr != nil {
					return removed, fmt.Errorf("%w: %v", ErrUnavailable, cmdErr)
				}
				if n == 0 {
					stale = append(stale, sessionIDs[i])
				}
			}
			if len(stale) > 0 {
				if err := s.redis.SRem(ctx, userKey, stale...).Err(); err != nil {
					return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
				}
				removed += len(stale)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return removed, nil
}

// EstimateSessions counts live session records with a key scan. Admin/
// analytics use only; O(n) over the keyspace and never part of a validate
// or refresh decision.
func (s *Store) EstimateSessions(ctx context.Context) (int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var (
		cursor uint64
		total  int
	)
	pattern := s.prefix + ":sess:*"

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

// Ping returns a point-in-time availability check and its latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}

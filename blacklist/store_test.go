package blacklist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewStore(rdb, "ax", time.Second), mr
}

func TestStoreAddAndContains(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	found, err := store.Contains(ctx, "jti-1")
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if found {
		t.Fatal("unrevoked token must not be listed")
	}

	if err := store.Add(ctx, "jti-1", "logout", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	found, err = store.Contains(ctx, "jti-1")
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !found {
		t.Fatal("revoked token must be listed")
	}
}

func TestStoreEntryExpiresWithToken(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Add(ctx, "jti-1", "logout", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	found, err := store.Contains(ctx, "jti-1")
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if found {
		t.Fatal("entry must lapse once the token it covers is dead")
	}
}

func TestStoreExpiredTokenStillGetsMinimalTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Add(ctx, "jti-1", "logout", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if ttl := mr.TTL("ax:bl:jti-1"); ttl <= 0 {
		t.Fatalf("entry for an already-expired token must still get a TTL, got %s", ttl)
	}

	found, err := store.Contains(ctx, "jti-1")
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !found {
		t.Fatal("entry must be observable right after the write")
	}
}

func TestStoreClaimOnceSingleWinner(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	const claimers = 16
	var (
		wg   sync.WaitGroup
		wins int64
		mu   sync.Mutex
	)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := store.ClaimOnce(ctx, "jti-1", "refresh_consumed", expiry)
			if err != nil {
				t.Errorf("ClaimOnce failed: %v", err)
				return
			}
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}

	found, err := store.Contains(ctx, "jti-1")
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !found {
		t.Fatal("claimed token must be listed")
	}
}

func TestStoreClaimOnceLosesToPriorAdd(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	if err := store.Add(ctx, "jti-1", "logout", expiry); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	won, err := store.ClaimOnce(ctx, "jti-1", "refresh_consumed", expiry)
	if err != nil {
		t.Fatalf("ClaimOnce failed: %v", err)
	}
	if won {
		t.Fatal("claim must lose against an existing entry")
	}
}

func TestStoreEstimate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	for _, jti := range []string{"jti-1", "jti-2", "jti-3"} {
		if err := store.Add(ctx, jti, "logout", expiry); err != nil {
			t.Fatalf("Add %s failed: %v", jti, err)
		}
	}

	total, err := store.Estimate(ctx)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 entries, got %d", total)
	}
}

func TestStoreUnavailableWrapsTransportFailure(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	mr.Close()

	if err := store.Add(ctx, "jti-1", "logout", time.Now().Add(time.Hour)); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable with redis down, got %v", err)
	}
	if _, err := store.Contains(ctx, "jti-1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable with redis down, got %v", err)
	}
	if _, err := store.ClaimOnce(ctx, "jti-1", "x", time.Now().Add(time.Hour)); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable with redis down, got %v", err)
	}
}

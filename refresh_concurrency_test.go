package arenax

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// Concurrent presentations of the same refresh token must resolve to exactly
// one new pair; every loser sees the consumed-token error.
func TestConcurrentRefreshSingleWinner(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	pair, err := engine.GenerateTokenPair(ctx, "user-1", "", nil)
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	const attempts = 16

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		losers  int
	)

	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			_, err := engine.RefreshToken(ctx, pair.RefreshToken)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, ErrTokenBlacklisted):
				losers++
			default:
				t.Errorf("unexpected refresh error: %v", err)
			}
		}()
	}

	close(start)
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
	if losers != attempts-1 {
		t.Fatalf("expected %d losers, got %d", attempts-1, losers)
	}

	// The session advanced exactly once.
	claims, err := engine.ValidateToken(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	rec, err := engine.GetSession(ctx, claims.SessionID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if rec.RefreshCount != 1 {
		t.Fatalf("refresh count must be 1 after the race, got %d", rec.RefreshCount)
	}
}

// Rounds of sequential refreshes with a trailing reuse probe: after each
// rotation the previous token must be dead.
func TestRefreshChainInvalidatesEachPredecessor(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Security.MaxRefreshCount = 0
	})
	ctx := context.Background()

	pair, err := engine.GenerateTokenPair(ctx, "user-1", "", nil)
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	for round := 0; round < 5; round++ {
		prev := pair.RefreshToken
		pair, err = engine.RefreshToken(ctx, prev)
		if err != nil {
			t.Fatalf("round %d refresh failed: %v", round, err)
		}
		if _, err := engine.RefreshToken(ctx, prev); !errors.Is(err, ErrTokenBlacklisted) {
			t.Fatalf("round %d: predecessor must be dead, got %v", round, err)
		}
	}
}

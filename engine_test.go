package arenax

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, rdb
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Keys.KeyID = "test-key-1"
	cfg.Keys.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, mr
}

func TestBuilderRejectsMissingRedis(t *testing.T) {
	_, err := New().WithConfig(testConfig()).Build()
	if err == nil {
		t.Fatal("expected error without a redis client")
	}
}

func TestBuilderRejectsMissingKeyID(t *testing.T) {
	_, rdb := newTestRedis(t)

	cfg := testConfig()
	cfg.Keys.KeyID = ""
	if _, err := New().WithConfig(cfg).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error without a key id")
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)

	b := New().WithConfig(testConfig()).WithRedis(rdb)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on second Build")
	}
}

func TestNilEngineReturnsNotReady(t *testing.T) {
	var engine *Engine
	ctx := context.Background()

	if _, err := engine.GenerateTokenPair(ctx, "u1", "", nil); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := engine.ValidateToken(ctx, "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := engine.RefreshToken(ctx, "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := engine.Ping(ctx); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}

	// Non-erroring surfaces must be safe too.
	engine.Close()
	if engine.ShouldRotateKeys() {
		t.Fatal("nil engine must not request rotation")
	}
	if got := engine.Analytics(); got.TotalIssued != 0 {
		t.Fatalf("nil engine analytics must be zero, got %+v", got)
	}
}

func TestEnginePing(t *testing.T) {
	engine, mr := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	mr.Close()
	if _, err := engine.Ping(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable with redis down, got %v", err)
	}
}

func TestEngineCloseIsIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Audit.Enabled = true
	})

	engine.Close()
	engine.Close()

	// Store operations stay usable after Close.
	if _, err := engine.GenerateTokenPair(context.Background(), "u1", "", nil); err != nil {
		t.Fatalf("GenerateTokenPair after Close failed: %v", err)
	}
}

package arenax

import (
	"context"
	"sync"
	"testing"
)

// captureSink records every event it receives.
type captureSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *captureSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *captureSink) byType(eventType string) []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []AuditEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newAuditTestEngine(t *testing.T, sink AuditSink) *Engine {
	t.Helper()

	_, rdb := newTestRedis(t)

	cfg := testConfig()
	cfg.Audit.Enabled = true

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}
	return engine
}

func TestAuditLifecycleEvents(t *testing.T) {
	sink := &captureSink{}
	engine := newAuditTestEngine(t, sink)
	ctx := context.Background()

	pair, err := engine.GenerateTokenPair(ctx, "user-1", "device-1", nil)
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}
	next, err := engine.RefreshToken(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	if err := engine.BlacklistToken(ctx, next.AccessToken, "logout"); err != nil {
		t.Fatalf("BlacklistToken failed: %v", err)
	}

	// Close drains the dispatcher, so every emitted event has reached the
	// sink by the time it returns.
	engine.Close()

	issued := sink.byType("token_issued")
	if len(issued) != 1 {
		t.Fatalf("expected 1 token_issued event, got %d", len(issued))
	}
	if issued[0].UserID != "user-1" || issued[0].DeviceID != "device-1" || !issued[0].Success {
		t.Fatalf("token_issued event mismatch: %+v", issued[0])
	}
	if issued[0].SessionID == "" || issued[0].TokenID == "" {
		t.Fatalf("token_issued must carry session and token ids: %+v", issued[0])
	}

	refreshed := sink.byType("token_refreshed")
	if len(refreshed) != 1 {
		t.Fatalf("expected 1 token_refreshed event, got %d", len(refreshed))
	}
	if refreshed[0].SessionID != issued[0].SessionID {
		t.Fatal("refresh must report the same session")
	}

	blacklisted := sink.byType("token_blacklisted")
	if len(blacklisted) != 1 {
		t.Fatalf("expected 1 token_blacklisted event, got %d", len(blacklisted))
	}
	if blacklisted[0].Metadata["reason"] != "logout" {
		t.Fatalf("blacklist event must carry the reason: %+v", blacklisted[0])
	}
}

func TestAuditRefreshReuseEvent(t *testing.T) {
	sink := &captureSink{}
	engine := newAuditTestEngine(t, sink)
	ctx := context.Background()

	pair, err := engine.GenerateTokenPair(ctx, "user-1", "", nil)
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}
	if _, err := engine.RefreshToken(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	if _, err := engine.RefreshToken(ctx, pair.RefreshToken); err == nil {
		t.Fatal("reuse must fail")
	}

	engine.Close()

	reuse := sink.byType("refresh_reuse")
	if len(reuse) != 1 {
		t.Fatalf("expected 1 refresh_reuse event, got %d", len(reuse))
	}
	if reuse[0].Success {
		t.Fatal("reuse event must not be marked successful")
	}
}

func TestAuditCarriesClientIP(t *testing.T) {
	sink := &captureSink{}
	engine := newAuditTestEngine(t, sink)

	ctx := WithClientIP(context.Background(), "203.0.113.9")
	if _, err := engine.GenerateTokenPair(ctx, "user-1", "", nil); err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	engine.Close()

	issued := sink.byType("token_issued")
	if len(issued) != 1 {
		t.Fatalf("expected 1 token_issued event, got %d", len(issued))
	}
	if issued[0].Metadata["client_ip"] != "203.0.113.9" {
		t.Fatalf("event must carry the request's client ip: %+v", issued[0].Metadata)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	sink := &captureSink{}
	_, rdb := newTestRedis(t)

	cfg := testConfig()
	cfg.Audit.Enabled = false

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}

	if _, err := engine.GenerateTokenPair(context.Background(), "user-1", "", nil); err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}
	engine.Close()

	if len(sink.byType("token_issued")) != 0 {
		t.Fatal("disabled audit must not emit")
	}
	if engine.AuditDropped() != 0 {
		t.Fatal("disabled audit must not count drops")
	}
}

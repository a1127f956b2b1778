package arenax

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sandijigs/ArenaX/internal"
	internalaudit "github.com/Sandijigs/ArenaX/internal/audit"
	"github.com/Sandijigs/ArenaX/session"
)

// CreateSession persists a new session record without minting tokens.
// Transport layers that stage a session before issuance use it; normal
// callers go through [Engine.GenerateTokenPair], which does both.
func (e *Engine) CreateSession(ctx context.Context, userID, deviceID string) (*session.Record, error) {
	if e == nil || e.sessions == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrSessionCreateFailed)
	}

	now := time.Now()
	rec := &session.Record{
		SessionID:    internal.NewSessionID(),
		UserID:       userID,
		DeviceID:     deviceID,
		CreatedAt:    now,
		LastAccessed: now,
		IsActive:     true,
	}

	if err := e.sessions.Save(ctx, rec, e.codec.RefreshTTL()); err != nil {
		e.metricInc(MetricStoreUnavailable)
		return nil, fmt.Errorf("%w: %v", ErrSessionCreateFailed, err)
	}

	e.metricInc(MetricSessionCreated)
	return rec, nil
}

// GetSession fetches one session record. Missing or expired sessions
// return [ErrSessionNotFound].
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*session.Record, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	rec, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, e.storeErr(err)
	}
	return rec, nil
}

// GetUserSessions lists every live session for the user.
func (e *Engine) GetUserSessions(ctx context.Context, userID string) ([]*session.Record, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	records, err := e.sessions.UserSessions(ctx, userID)
	if err != nil {
		return nil, e.storeErr(err)
	}
	return records, nil
}

// InvalidateSession removes one session. Tokens bound to it fail
// validation from the next call onward. Idempotent: invalidating a session
// that is already gone succeeds without counting a second invalidation.
func (e *Engine) InvalidateSession(ctx context.Context, sessionID string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}

	existed, err := e.sessions.Delete(ctx, sessionID)
	if err != nil {
		return e.storeErr(err)
	}
	if !existed {
		return nil
	}

	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, internalaudit.EventSessionInvalidated, true, "", sessionID, "", "", nil, nil)
	return nil
}

// InvalidateAllUserSessions removes every live session for the user and
// returns how many were removed. Zero with a nil error means the user had
// none.
func (e *Engine) InvalidateAllUserSessions(ctx context.Context, userID string) (int, error) {
	if e == nil || e.sessions == nil {
		return 0, ErrEngineNotReady
	}

	count, err := e.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, e.storeErr(err)
	}

	for i := 0; i < count; i++ {
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, internalaudit.EventUserSessionsPurged, true, userID, "", "", "", nil, func() map[string]string {
		return map[string]string{"count": fmt.Sprintf("%d", count)}
	})
	return count, nil
}

// CleanupExpired prunes user-index entries whose session record expired
// via store TTL. Safe to run from a periodic job; returns the number of
// entries pruned.
func (e *Engine) CleanupExpired(ctx context.Context) (int, error) {
	if e == nil || e.sessions == nil {
		return 0, ErrEngineNotReady
	}

	removed, err := e.sessions.CleanupExpired(ctx)
	if err != nil {
		return removed, e.storeErr(err)
	}
	return removed, nil
}

// BlacklistToken revokes a specific token by its jti until the token's own
// expiry. The token must verify (signature and known key); a token that
// has already expired needs no entry and the call succeeds without one.
func (e *Engine) BlacklistToken(ctx context.Context, token, reason string) error {
	if e == nil || e.codec == nil || e.blacklist == nil {
		return ErrEngineNotReady
	}

	claims, err := e.codec.Parse(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil
		}
		return err
	}

	if err := e.blacklist.Add(ctx, claims.ID, reason, claims.ExpiresAt.Time); err != nil {
		return e.storeErr(err)
	}

	e.metricInc(MetricTokenBlacklisted)
	e.emitAudit(ctx, internalaudit.EventTokenBlacklisted, true, claims.Subject, claims.SessionID, claims.ID, claims.DeviceID, nil, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return nil
}

// IsTokenBlacklisted reports whether the token id is currently revoked.
func (e *Engine) IsTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	if e == nil || e.blacklist == nil {
		return false, ErrEngineNotReady
	}

	listed, err := e.blacklist.Contains(ctx, tokenID)
	if err != nil {
		return false, e.storeErr(err)
	}
	return listed, nil
}

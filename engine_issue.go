package arenax

import (
	"context"
	"fmt"
	"time"

	"github.com/Sandijigs/ArenaX/internal"
	internalaudit "github.com/Sandijigs/ArenaX/internal/audit"
	"github.com/Sandijigs/ArenaX/jwt"
	"github.com/Sandijigs/ArenaX/session"
)

// GenerateTokenPair starts a new session for the user and mints an
// access/refresh pair bound to it. The session record is persisted before
// any token is signed; if the store write fails no tokens exist and the
// error is [ErrSessionCreateFailed]. deviceID and permissions are optional
// and are embedded in both tokens when present.
func (e *Engine) GenerateTokenPair(ctx context.Context, userID, deviceID string, permissions []string) (*TokenPair, error) {
	if e == nil || e.codec == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidToken)
	}

	now := time.Now()
	rec := &session.Record{
		SessionID:    internal.NewSessionID(),
		UserID:       userID,
		DeviceID:     deviceID,
		CreatedAt:    now,
		LastAccessed: now,
		RefreshCount: 0,
		IsActive:     true,
	}

	if err := e.sessions.Save(ctx, rec, e.codec.RefreshTTL()); err != nil {
		e.metricInc(MetricIssueFailure)
		e.metricInc(MetricStoreUnavailable)
		e.emitAudit(ctx, internalaudit.EventTokenIssued, false, userID, rec.SessionID, "", deviceID, err, func() map[string]string {
			return map[string]string{"reason": "session_save_failed"}
		})
		return nil, fmt.Errorf("%w: %v", ErrSessionCreateFailed, err)
	}

	pair, accessJTI, err := e.issuePair(rec, deviceID, permissions)
	if err != nil {
		// The record is already durable; remove it so no orphan session
		// outlives a failed issuance.
		if _, delErr := e.sessions.Delete(ctx, rec.SessionID); delErr != nil {
			warnf("arenax: orphan session cleanup failed: %v", delErr)
		}
		e.metricInc(MetricIssueFailure)
		e.emitAudit(ctx, internalaudit.EventTokenIssued, false, userID, rec.SessionID, "", deviceID, err, func() map[string]string {
			return map[string]string{"reason": "sign_failed"}
		})
		return nil, err
	}

	e.issuedTotal.Add(1)
	e.metricInc(MetricTokensIssued)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, internalaudit.EventTokenIssued, true, userID, rec.SessionID, accessJTI, deviceID, nil, nil)

	return pair, nil
}

// issuePair mints both halves of a pair for an existing session record.
// Each half gets its own jti; the returned id is the access token's.
func (e *Engine) issuePair(rec *session.Record, deviceID string, permissions []string) (*TokenPair, string, error) {
	accessJTI := internal.NewTokenID()
	access, err := e.codec.Issue(jwt.TypeAccess, rec.UserID, rec.SessionID, deviceID, accessJTI, permissions)
	if err != nil {
		return nil, "", err
	}

	refresh, err := e.codec.Issue(jwt.TypeRefresh, rec.UserID, rec.SessionID, deviceID, internal.NewTokenID(), permissions)
	if err != nil {
		return nil, "", err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(e.codec.AccessTTL() / time.Second),
	}, accessJTI, nil
}

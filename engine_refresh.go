package arenax

import (
	"context"
	"time"

	internalaudit "github.com/Sandijigs/ArenaX/internal/audit"
	"github.com/Sandijigs/ArenaX/internal/flows"
	"github.com/Sandijigs/ArenaX/jwt"
	"github.com/Sandijigs/ArenaX/session"
)

const refreshClaimReason = "refresh_consumed"

// RefreshToken exchanges a live refresh token for a new access/refresh
// pair under the same session. Each refresh token is single-use: the first
// caller to present it wins and every concurrent or later presentation
// fails with [ErrTokenBlacklisted]. A session at its refresh ceiling is
// invalidated and the call fails with [ErrMaxRefreshExceeded]; the user
// must authenticate again.
func (e *Engine) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.codec == nil || e.sessions == nil || e.blacklist == nil {
		return nil, ErrEngineNotReady
	}

	e.refreshAttempts.Add(1)

	var pair *TokenPair
	deps := flows.RefreshDeps{
		Validate: e.validateDeps(jwt.TypeRefresh),
		ClaimOnce: func(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
			return e.blacklist.ClaimOnce(ctx, tokenID, refreshClaimReason, expiresAt)
		},
		GetSession:    e.sessions.Get,
		DeleteSession: e.sessions.Delete,
		SaveSession: func(ctx context.Context, rec *session.Record) error {
			return e.sessions.Save(ctx, rec, e.codec.RefreshTTL())
		},
		IssuePair: func(_ context.Context, rec *session.Record, deviceID string, perms []string) (string, string, error) {
			p, _, err := e.issuePair(rec, deviceID, perms)
			if err != nil {
				return "", "", err
			}
			pair = p
			return p.AccessToken, p.RefreshToken, nil
		},
		MaxRefreshCount: e.config.Security.MaxRefreshCount,
		IsNotFound:      isNotFound,
		Now:             time.Now,
		Warn:            warnf,
	}

	result := flows.RunRefresh(ctx, refreshToken, deps)
	if result.Failure == flows.RefreshFailureNone {
		e.issuedTotal.Add(1)
		e.metricInc(MetricRefreshSuccess)
		e.metricInc(MetricTokensIssued)
		e.emitAudit(ctx, internalaudit.EventTokenRefreshed, true, result.UserID, result.SessionID, result.TokenID, "", nil, nil)
		return pair, nil
	}

	e.metricInc(MetricRefreshFailure)
	return nil, e.mapRefreshFailure(ctx, result)
}

func (e *Engine) mapRefreshFailure(ctx context.Context, result flows.RefreshResult) error {
	switch result.Failure {
	case flows.RefreshFailureValidate:
		if result.Validate.Failure == flows.ValidateFailureBlacklisted {
			// A verified refresh token already on the blacklist was consumed
			// by an earlier refresh. Presenting it again is reuse.
			e.metricInc(MetricRefreshReuseDetected)
			e.emitAudit(ctx, internalaudit.EventRefreshReuse, false, "", result.Validate.Claims.SessionID, result.Validate.Claims.ID, "", ErrTokenBlacklisted, nil)
		}
		e.failedValidations.Add(1)
		return e.mapValidateFailure(result.Validate)

	case flows.RefreshFailureClaimLost:
		// Lost the atomic claim to a concurrent refresh with the same token.
		e.metricInc(MetricRefreshReuseDetected)
		e.emitAudit(ctx, internalaudit.EventRefreshReuse, false, "", result.SessionID, result.TokenID, "", ErrTokenBlacklisted, nil)
		return ErrTokenBlacklisted

	case flows.RefreshFailureSessionRevoked:
		return ErrSessionRevoked

	case flows.RefreshFailureLimit:
		e.metricInc(MetricRefreshLimitExceeded)
		e.metricInc(MetricSessionInvalidated)
		e.emitAudit(ctx, internalaudit.EventMaxRefreshExceeded, false, result.UserID, result.SessionID, result.TokenID, "", ErrMaxRefreshExceeded, nil)
		return ErrMaxRefreshExceeded

	case flows.RefreshFailureStore:
		return e.storeErr(result.Err)

	default:
		// RefreshFailureIssue: signing failed after the claim; the token is
		// consumed and the caller must re-authenticate if retries also fail.
		return result.Err
	}
}

package arenax

import (
	"context"
	"time"

	"github.com/Sandijigs/ArenaX/internal/flows"
	"github.com/Sandijigs/ArenaX/jwt"
)

// ValidateToken runs the full validation pipeline on a token of either
// type: signature and expiry, blacklist, session liveness, then the
// per-request security policy. On success it returns the verified claims
// and bumps the session's last-accessed time (best effort, when
// configured). Failures map to the sentinel taxonomy; only
// [ErrStoreUnavailable] is transient.
func (e *Engine) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	return e.validateToken(ctx, token, "")
}

func (e *Engine) validateToken(ctx context.Context, token string, requireType jwt.TokenType) (*jwt.Claims, error) {
	if e == nil || e.codec == nil || e.sessions == nil || e.blacklist == nil {
		return nil, ErrEngineNotReady
	}

	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	result := flows.RunValidate(ctx, token, e.validateDeps(requireType))
	if result.Failure == flows.ValidateFailureNone {
		e.metricInc(MetricValidateSuccess)
		return result.Claims, nil
	}

	e.failedValidations.Add(1)
	e.metricInc(MetricValidateFailure)
	return nil, e.mapValidateFailure(result)
}

func (e *Engine) validateDeps(requireType jwt.TokenType) flows.ValidateDeps {
	deps := flows.ValidateDeps{
		Parse:         e.codec.Parse,
		IsBlacklisted: e.blacklist.Contains,
		GetSession:    e.sessions.Get,
		IsNotFound:    isNotFound,
		RequireType:   requireType,
		Policy: flows.PolicyDeps{
			MaxRefreshCount: e.config.Security.MaxRefreshCount,
			AnomalyFlagged:  e.sessions.AnomalyFlagged,
			Warn:            warnf,
		},
		Now:  time.Now,
		Warn: warnf,
	}
	if e.config.Session.TouchOnValidate && requireType != jwt.TypeRefresh {
		deps.TouchSession = e.sessions.TouchLastAccessed
	}
	return deps
}

func (e *Engine) mapValidateFailure(result flows.ValidateResult) error {
	switch result.Failure {
	case flows.ValidateFailureParse:
		// Already classified as ErrInvalidToken or ErrTokenExpired by the
		// codec, with the parser reason attached.
		return result.Err
	case flows.ValidateFailureBlacklisted:
		return ErrTokenBlacklisted
	case flows.ValidateFailureSessionRevoked:
		return ErrSessionRevoked
	case flows.ValidateFailurePolicy:
		return mapPolicyFailure(result.Policy)
	case flows.ValidateFailureStore:
		return e.storeErr(result.Err)
	default:
		return ErrInvalidToken
	}
}

func mapPolicyFailure(kind flows.PolicyFailureKind) error {
	switch kind {
	case flows.PolicyFailureMaxRefresh:
		return ErrMaxRefreshExceeded
	case flows.PolicyFailureDeviceMismatch:
		return ErrDeviceMismatch
	case flows.PolicyFailureSuspicious:
		return ErrSuspiciousActivity
	default:
		return ErrInvalidToken
	}
}

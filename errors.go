package arenax

import (
	"errors"

	"github.com/Sandijigs/ArenaX/jwt"
)

// The closed error taxonomy of the token lifecycle core. Callers match with
// errors.Is; wrapped variants carry the underlying reason text.
var (
	// ErrInvalidToken covers malformed tokens, signature mismatches, wrong
	// token type, and unknown or out-of-grace key ids.
	ErrInvalidToken = jwt.ErrInvalid
	// ErrTokenExpired means the token verified but its exp has passed.
	ErrTokenExpired = jwt.ErrExpired
	// ErrTokenBlacklisted means the token id has been revoked, including a
	// refresh token already consumed by a concurrent winner.
	ErrTokenBlacklisted = errors.New("token blacklisted")
	// ErrSessionNotFound is returned by direct session lookups for ids the
	// store no longer holds.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionRevoked means the token verified but its session has been
	// invalidated or expired.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrSessionCreateFailed means issuance was aborted because the session
	// record could not be stored; no tokens were returned.
	ErrSessionCreateFailed = errors.New("session creation failed")
	// ErrMaxRefreshExceeded means the session hit its refresh ceiling and
	// was invalidated; the user must re-authenticate.
	ErrMaxRefreshExceeded = errors.New("max refresh count exceeded")
	// ErrDeviceMismatch means the token's device binding does not match its
	// session — a possible stolen token.
	ErrDeviceMismatch = errors.New("device mismatch")
	// ErrSuspiciousActivity surfaces a recent anomaly flag on the subject.
	// Callers may require re-auth instead of denying outright.
	ErrSuspiciousActivity = errors.New("suspicious activity detected")
	// ErrKeyRotation is returned when rotation is attempted with unusable
	// key material.
	ErrKeyRotation = jwt.ErrKeyRotation
	// ErrStoreUnavailable is the transient kind: the backing store failed
	// or timed out. Distinct from every credential outcome so callers can
	// degrade gracefully instead of treating "store down" as "denied".
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrEngineNotReady is returned by methods on a nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

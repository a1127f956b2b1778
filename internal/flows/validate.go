package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/Sandijigs/ArenaX/jwt"
	"github.com/Sandijigs/ArenaX/session"
)

// ValidateFailureKind classifies validation failures for root-level error
// mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureParse
	ValidateFailureBlacklisted
	ValidateFailureSessionRevoked
	ValidateFailurePolicy
	ValidateFailureStore
)

// ValidateResult carries the verified claims and live session record, or the
// classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Policy  PolicyFailureKind
	Err     error
	Claims  *jwt.Claims
	Record  *session.Record
}

// ValidateDeps captures validation dependencies. RequireType restricts the
// accepted token type; the refresh flow sets it to [jwt.TypeRefresh].
type ValidateDeps struct {
	Parse         func(token string) (*jwt.Claims, error)
	IsBlacklisted func(ctx context.Context, tokenID string) (bool, error)
	GetSession    func(ctx context.Context, sessionID string) (*session.Record, error)
	TouchSession  func(ctx context.Context, sessionID string, now time.Time) error
	IsNotFound    func(error) bool
	RequireType   jwt.TokenType
	Policy        PolicyDeps
	Now           func() time.Time
	Warn          func(format string, args ...any)
}

// RunValidate executes the full validation pipeline: signature and expiry
// through Parse, then blacklist, then session liveness, then policy. Each
// decision point is a single store read, so a concurrent invalidation or
// rotation is observed either fully or not at all — never partially.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) ValidateResult {
	claims, err := deps.Parse(token)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureParse, Err: err}
	}
	if deps.RequireType != "" && claims.Type != deps.RequireType {
		return ValidateResult{
			Failure: ValidateFailureParse,
			Err:     fmt.Errorf("%w: expected %s token, got %s", jwt.ErrInvalid, deps.RequireType, claims.Type),
		}
	}

	listed, err := deps.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureStore, Err: err, Claims: claims}
	}
	if listed {
		return ValidateResult{Failure: ValidateFailureBlacklisted, Claims: claims}
	}

	rec, err := deps.GetSession(ctx, claims.SessionID)
	if err != nil {
		if deps.IsNotFound != nil && deps.IsNotFound(err) {
			return ValidateResult{Failure: ValidateFailureSessionRevoked, Err: err, Claims: claims}
		}
		return ValidateResult{Failure: ValidateFailureStore, Err: err, Claims: claims}
	}
	if !rec.IsActive {
		return ValidateResult{Failure: ValidateFailureSessionRevoked, Claims: claims, Record: rec}
	}

	if kind := RunPolicy(ctx, claims, rec, deps.Policy); kind != PolicyFailureNone {
		return ValidateResult{Failure: ValidateFailurePolicy, Policy: kind, Claims: claims, Record: rec}
	}

	// Best effort; the refresh flow renews the record itself.
	if deps.TouchSession != nil {
		if touchErr := deps.TouchSession(ctx, claims.SessionID, deps.Now()); touchErr != nil && deps.Warn != nil {
			deps.Warn("arenax: session touch failed: %v", touchErr)
		}
	}

	return ValidateResult{Claims: claims, Record: rec}
}

package flows

import (
	"context"
	"time"

	"github.com/Sandijigs/ArenaX/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level error
// mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureValidate
	RefreshFailureClaimLost
	RefreshFailureSessionRevoked
	RefreshFailureLimit
	RefreshFailureStore
	RefreshFailureIssue
)

// RefreshResult carries the issued pair or failure metadata. On
// RefreshFailureValidate the nested Validate result holds the underlying
// classification.
type RefreshResult struct {
	Failure  RefreshFailureKind
	Validate ValidateResult
	Err      error

	UserID       string
	SessionID    string
	TokenID      string
	Record       *session.Record
	AccessToken  string
	RefreshToken string
}

// RefreshDeps captures refresh flow dependencies. ClaimOnce must be the
// store's atomic set-if-absent; everything else is ordinary reads/writes.
type RefreshDeps struct {
	Validate ValidateDeps

	ClaimOnce     func(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error)
	GetSession    func(ctx context.Context, sessionID string) (*session.Record, error)
	SaveSession   func(ctx context.Context, rec *session.Record) error
	DeleteSession func(ctx context.Context, sessionID string) (bool, error)
	IssuePair     func(ctx context.Context, rec *session.Record, deviceID string, perms []string) (access, refresh string, err error)

	MaxRefreshCount uint32
	IsNotFound      func(error) bool
	Now             func() time.Time
	Warn            func(format string, args ...any)
}

// RunRefresh executes the single-use refresh state machine. The claim in
// step two comes before the session and limit checks on purpose: among
// concurrent attempts with the same refresh token at most one can win,
// even while the session is being invalidated or is at its ceiling.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	// Step 1: full validation, restricted to refresh-token claims. Any
	// failure short-circuits with no session mutation.
	v := RunValidate(ctx, refreshToken, deps.Validate)
	if v.Failure != ValidateFailureNone {
		return RefreshResult{Failure: RefreshFailureValidate, Validate: v, Err: v.Err}
	}
	claims := v.Claims

	// Step 2: consume the token. One atomic set-if-absent; the loser of a
	// concurrent double-refresh stops here.
	won, err := deps.ClaimOnce(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureStore, Err: err, SessionID: claims.SessionID, TokenID: claims.ID}
	}
	if !won {
		return RefreshResult{Failure: RefreshFailureClaimLost, SessionID: claims.SessionID, TokenID: claims.ID}
	}

	// Step 3: re-read the record after the claim so the limit decision sees
	// the store's current view, not the pre-claim snapshot.
	rec, err := deps.GetSession(ctx, claims.SessionID)
	if err != nil {
		if deps.IsNotFound != nil && deps.IsNotFound(err) {
			return RefreshResult{Failure: RefreshFailureSessionRevoked, Err: err, SessionID: claims.SessionID, TokenID: claims.ID}
		}
		return RefreshResult{Failure: RefreshFailureStore, Err: err, SessionID: claims.SessionID, TokenID: claims.ID}
	}

	if deps.MaxRefreshCount > 0 && rec.RefreshCount+1 > deps.MaxRefreshCount {
		// Force re-authentication. The consumed-token blacklist entry from
		// step 2 stays in place regardless.
		if _, delErr := deps.DeleteSession(ctx, rec.SessionID); delErr != nil && deps.Warn != nil {
			deps.Warn("arenax: session invalidation after refresh ceiling failed: %v", delErr)
		}
		return RefreshResult{
			Failure:   RefreshFailureLimit,
			UserID:    rec.UserID,
			SessionID: rec.SessionID,
			TokenID:   claims.ID,
			Record:    rec,
		}
	}

	// Step 4: advance the session and mint a new pair under the same
	// session id.
	rec.RefreshCount++
	rec.LastAccessed = deps.Now()
	if err := deps.SaveSession(ctx, rec); err != nil {
		return RefreshResult{Failure: RefreshFailureStore, Err: err, UserID: rec.UserID, SessionID: rec.SessionID, TokenID: claims.ID}
	}

	access, refresh, err := deps.IssuePair(ctx, rec, claims.DeviceID, claims.Permissions)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, UserID: rec.UserID, SessionID: rec.SessionID, TokenID: claims.ID}
	}

	return RefreshResult{
		UserID:       rec.UserID,
		SessionID:    rec.SessionID,
		TokenID:      claims.ID,
		Record:       rec,
		AccessToken:  access,
		RefreshToken: refresh,
	}
}

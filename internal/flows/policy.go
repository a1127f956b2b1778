package flows

import (
	"context"

	"github.com/Sandijigs/ArenaX/jwt"
	"github.com/Sandijigs/ArenaX/session"
)

// PolicyFailureKind classifies per-request security rule failures.
type PolicyFailureKind int

const (
	PolicyFailureNone PolicyFailureKind = iota
	PolicyFailureMaxRefresh
	PolicyFailureDeviceMismatch
	PolicyFailureSuspicious
)

// PolicyDeps captures the policy rule inputs.
type PolicyDeps struct {
	MaxRefreshCount uint32
	AnomalyFlagged  func(ctx context.Context, userID string) (bool, error)
	Warn            func(format string, args ...any)
}

// RunPolicy evaluates the security rules on an already-verified token and
// its live session: refresh-count ceiling, device binding, and the
// recent-anomaly flag. The anomaly flag is advisory; if reading it fails the
// check is skipped with a warning rather than denying on store trouble.
func RunPolicy(ctx context.Context, claims *jwt.Claims, rec *session.Record, deps PolicyDeps) PolicyFailureKind {
	if deps.MaxRefreshCount > 0 && rec.RefreshCount > deps.MaxRefreshCount {
		return PolicyFailureMaxRefresh
	}

	// A token carrying a device id must match the session it claims to
	// belong to; a mismatch means the token travelled to another device.
	if claims.DeviceID != "" && claims.DeviceID != rec.DeviceID {
		return PolicyFailureDeviceMismatch
	}

	if deps.AnomalyFlagged != nil {
		flagged, err := deps.AnomalyFlagged(ctx, rec.UserID)
		if err != nil {
			if deps.Warn != nil {
				deps.Warn("arenax: anomaly flag read failed: %v", err)
			}
		} else if flagged {
			return PolicyFailureSuspicious
		}
	}

	return PolicyFailureNone
}

package arenax

import (
	"context"
	"fmt"
	"time"

	internalaudit "github.com/Sandijigs/ArenaX/internal/audit"
)

// Analytics returns the current usage snapshot. Counter fields are live;
// the store-derived fields (active sessions, blacklist size) reflect the
// last [Engine.RefreshAnalytics] scan. Never consulted by token decisions.
func (e *Engine) Analytics() AnalyticsSnapshot {
	if e == nil {
		return AnalyticsSnapshot{}
	}

	snap := AnalyticsSnapshot{}
	if stored := e.analytics.Load(); stored != nil {
		snap = *stored
	}
	snap.TotalIssued = e.issuedTotal.Load()
	snap.RefreshAttempts = e.refreshAttempts.Load()
	snap.FailedValidations = e.failedValidations.Load()
	return snap
}

// RefreshAnalytics rebuilds the store-derived analytics fields with key
// scans. O(keyspace); run it from a periodic job, not a request path.
func (e *Engine) RefreshAnalytics(ctx context.Context) error {
	if e == nil || e.sessions == nil || e.blacklist == nil {
		return ErrEngineNotReady
	}

	active, err := e.sessions.EstimateSessions(ctx)
	if err != nil {
		return e.storeErr(err)
	}
	listed, err := e.blacklist.Estimate(ctx)
	if err != nil {
		return e.storeErr(err)
	}

	e.analytics.Store(&AnalyticsSnapshot{
		ActiveSessions:   active,
		BlacklistedCount: listed,
		LastUpdated:      time.Now(),
	})
	return nil
}

// MonitorSuspiciousActivity inspects the user's live sessions against the
// configured abuse heuristics: too many concurrent sessions, too many
// sessions touched within the recent-activity window, or too many distinct
// devices. When any trips, a self-expiring anomaly flag is written and the
// policy check starts rejecting the user's tokens with
// [ErrSuspiciousActivity] until the flag lapses. Returns whether a flag
// was raised.
func (e *Engine) MonitorSuspiciousActivity(ctx context.Context, userID string) (bool, error) {
	if e == nil || e.sessions == nil {
		return false, ErrEngineNotReady
	}

	records, err := e.sessions.UserSessions(ctx, userID)
	if err != nil {
		return false, e.storeErr(err)
	}

	sec := e.config.Security
	now := time.Now()

	active := len(records)
	recent := 0
	devices := map[string]struct{}{}
	for _, rec := range records {
		if sec.RapidSessionWindow > 0 && now.Sub(rec.LastAccessed) <= sec.RapidSessionWindow {
			recent++
		}
		if rec.DeviceID != "" {
			devices[rec.DeviceID] = struct{}{}
		}
	}

	var cause string
	switch {
	case sec.MaxActiveSessions > 0 && active > sec.MaxActiveSessions:
		cause = "concurrent_sessions"
	case sec.RapidSessionLimit > 0 && recent > sec.RapidSessionLimit:
		cause = "rapid_activity"
	case sec.MaxDistinctDevices > 0 && len(devices) > sec.MaxDistinctDevices:
		cause = "distinct_devices"
	default:
		return false, nil
	}

	if err := e.sessions.FlagAnomaly(ctx, userID, sec.AnomalyFlagTTL); err != nil {
		return false, e.storeErr(err)
	}

	e.metricInc(MetricSuspiciousFlagged)
	e.emitAudit(ctx, internalaudit.EventSuspiciousActivity, true, userID, "", "", "", nil, func() map[string]string {
		return map[string]string{
			"cause":           cause,
			"active_sessions": fmt.Sprintf("%d", active),
			"recent_sessions": fmt.Sprintf("%d", recent),
			"device_count":    fmt.Sprintf("%d", len(devices)),
		}
	})
	return true, nil
}

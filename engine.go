package arenax

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/Sandijigs/ArenaX/blacklist"
	internalaudit "github.com/Sandijigs/ArenaX/internal/audit"
	"github.com/Sandijigs/ArenaX/jwt"
	"github.com/Sandijigs/ArenaX/session"
	"github.com/redis/go-redis/v9"
)

// Engine is the token lifecycle core. Safe for concurrent use after
// [Builder.Build]; methods on a nil engine return [ErrEngineNotReady]
// where an error channel exists.
type Engine struct {
	config    Config
	keys      *jwt.Keyring
	codec     *jwt.Codec
	sessions  *session.Store
	blacklist *blacklist.Store
	audit     *internalaudit.Dispatcher
	metrics   *Metrics

	// Lifetime usage counters, independent of the Metrics toggle. Analytics
	// is always available even when operational metrics are off.
	issuedTotal       atomic.Uint64
	refreshAttempts   atomic.Uint64
	failedValidations atomic.Uint64

	analytics atomic.Pointer[AnalyticsSnapshot]
}

// Close stops the audit dispatcher after draining buffered events. The
// engine remains usable for store operations afterwards but emits no
// further audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events shed under dispatcher backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ping checks availability of the backing store and reports the round-trip
// latency.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.sessions == nil {
		return 0, ErrEngineNotReady
	}
	d, err := e.sessions.Ping(ctx)
	if err != nil {
		return d, e.storeErr(err)
	}
	return d, nil
}

func (e *Engine) storeErr(err error) error {
	e.metricInc(MetricStoreUnavailable)
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

func warnf(format string, args ...any) {
	log.Printf(format, args...)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID, sessionID, tokenID, deviceID string, cause error, metadata func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := internalaudit.Event{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		TokenID:   tokenID,
		DeviceID:  deviceID,
		Success:   success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}
	if ip := clientIPFromContext(ctx); ip != "" {
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		event.Metadata["client_ip"] = ip
	}

	e.audit.Emit(ctx, event)
}

package arenax

import (
	"context"
	"time"

	internalaudit "github.com/Sandijigs/ArenaX/internal/audit"
	"github.com/Sandijigs/ArenaX/jwt"
)

// ShouldRotateKeys reports whether the rotation interval has elapsed since
// the last rotation. The engine never rotates on its own; the operator
// supplies fresh material through [Engine.RotateKeys].
func (e *Engine) ShouldRotateKeys() bool {
	if e == nil || e.keys == nil {
		return false
	}
	return e.keys.ShouldRotate()
}

// KeysRotatedAt returns the time of the last signing-key rotation.
func (e *Engine) KeysRotatedAt() time.Time {
	if e == nil || e.keys == nil {
		return time.Time{}
	}
	return e.keys.RotatedAt()
}

// RotateKeys atomically promotes next to the signing key. The outgoing key
// keeps verifying existing tokens for the configured grace window, so no
// validly issued token is stranded by the rotation. Unusable material is
// rejected with [ErrKeyRotation] and the current key stays in place.
func (e *Engine) RotateKeys(ctx context.Context, next jwt.Key) error {
	if e == nil || e.keys == nil {
		return ErrEngineNotReady
	}

	if err := e.keys.Rotate(next); err != nil {
		e.emitAudit(ctx, internalaudit.EventKeyRotated, false, "", "", "", "", err, func() map[string]string {
			return map[string]string{"key_id": next.ID}
		})
		return err
	}

	e.metricInc(MetricKeyRotation)
	e.emitAudit(ctx, internalaudit.EventKeyRotated, true, "", "", "", "", nil, func() map[string]string {
		return map[string]string{"key_id": next.ID}
	})
	return nil
}

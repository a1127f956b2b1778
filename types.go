package arenax

import (
	"io"
	"time"

	internalaudit "github.com/Sandijigs/ArenaX/internal/audit"
)

// TokenPair is the result of issuance and refresh: a short-lived access
// token and a long-lived single-use refresh token minted together for the
// same session.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`
	// ExpiresIn is the access-token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`
}

// AnalyticsSnapshot is the eventually consistent usage view returned by
// [Engine.Analytics]. Counter fields are live; ActiveSessions and
// BlacklistedCount reflect the last [Engine.RefreshAnalytics] scan stamped
// in LastUpdated.
type AnalyticsSnapshot struct {
	TotalIssued       uint64    `json:"total_issued"`
	ActiveSessions    int       `json:"active_sessions"`
	BlacklistedCount  int       `json:"blacklisted_count"`
	RefreshAttempts   uint64    `json:"refresh_attempts"`
	FailedValidations uint64    `json:"failed_validations"`
	LastUpdated       time.Time `json:"last_updated"`
}

// AuditEvent is a structured security event emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit
// dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes one JSON object per line to
// an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

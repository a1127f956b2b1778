package arenax

import (
	"errors"
	"strings"
	"time"
)

// Config collects every tunable of the token lifecycle core. Instances are
// configured before [Builder.Build] and treated as immutable afterwards.
type Config struct {
	JWT      JWTConfig
	Keys     KeyConfig
	Session  SessionConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// JWTConfig shapes the tokens themselves.
type JWTConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// SigningMethod is "hs256" (default) or "ed25519".
	SigningMethod string
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// KeyConfig supplies the initial signing key and the rotation policy.
// Secret is used by hs256; PrivateKey/PublicKey by ed25519.
type KeyConfig struct {
	KeyID      string
	Secret     []byte
	PrivateKey []byte
	PublicKey  []byte
	// RotationInterval is the elapsed time after which ShouldRotateKeys
	// reports true.
	RotationInterval time.Duration
	// GracePeriod keeps the previous key verifying after rotation. Zero
	// defaults to max(AccessTTL, RefreshTTL); smaller values are rejected
	// because a token signed just before rotation must outlive the window.
	GracePeriod time.Duration
}

// SessionConfig controls the Redis layout and store access bounds.
type SessionConfig struct {
	RedisPrefix string
	// StoreTimeout bounds every Redis round-trip. On expiry the operation
	// fails as ErrStoreUnavailable instead of blocking.
	StoreTimeout time.Duration
	// TouchOnValidate bumps the record's last-accessed time on successful
	// validation (best effort), feeding the recent-activity heuristic.
	TouchOnValidate bool
}

// SecurityConfig holds the per-request policy rules and abuse heuristics.
type SecurityConfig struct {
	// MaxRefreshCount is the ceiling before forced re-authentication.
	MaxRefreshCount uint32
	// MaxActiveSessions flags a user exceeding this many live sessions.
	MaxActiveSessions int
	// RapidSessionLimit and RapidSessionWindow flag a user with more than
	// this many sessions touched inside the window.
	RapidSessionLimit  int
	RapidSessionWindow time.Duration
	// MaxDistinctDevices flags a user with live sessions from more distinct
	// devices than this ceiling. Zero disables the check.
	MaxDistinctDevices int
	// AnomalyFlagTTL is how long a raised anomaly flag stays visible to the
	// policy check.
	AnomalyFlagTTL time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration the builder starts from. Callers
// still must supply key material.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     time.Hour,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "arenax",
			Audience:      "arenax-users",
		},
		Keys: KeyConfig{
			RotationInterval: 30 * 24 * time.Hour,
		},
		Session: SessionConfig{
			RedisPrefix:     "ax",
			StoreTimeout:    3 * time.Second,
			TouchOnValidate: true,
		},
		Security: SecurityConfig{
			MaxRefreshCount:    5,
			MaxActiveSessions:  10,
			RapidSessionLimit:  5,
			RapidSessionWindow: 5 * time.Minute,
			MaxDistinctDevices: 0,
			AnomalyFlagTTL:     15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// Validate rejects configurations the engine cannot honor. The key-grace
// lower bound is enforced here: a grace shorter than the longest token TTL
// would strand tokens signed right before a rotation.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT.AccessTTL must be positive")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT.RefreshTTL must not be shorter than JWT.AccessTTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256", "ed25519":
	default:
		return errors.New("JWT.SigningMethod must be hs256 or ed25519")
	}
	if strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("JWT.Issuer must not be blank")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT.Audience must not be blank")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT.Leeway out of range")
	}

	if c.Keys.RotationInterval <= 0 {
		return errors.New("Keys.RotationInterval must be positive")
	}
	if grace := c.Keys.GracePeriod; grace != 0 && grace < c.maxTokenTTL() {
		return errors.New("Keys.GracePeriod must cover the longest token TTL")
	}

	if c.Session.StoreTimeout < 0 {
		return errors.New("Session.StoreTimeout must not be negative")
	}
	if c.Security.RapidSessionLimit > 0 && c.Security.RapidSessionWindow <= 0 {
		return errors.New("Security.RapidSessionWindow must be positive when RapidSessionLimit is set")
	}
	if c.Security.AnomalyFlagTTL <= 0 {
		return errors.New("Security.AnomalyFlagTTL must be positive")
	}
	return nil
}

func (c *Config) maxTokenTTL() time.Duration {
	if c.JWT.RefreshTTL > c.JWT.AccessTTL {
		return c.JWT.RefreshTTL
	}
	return c.JWT.AccessTTL
}

func (c *Config) gracePeriod() time.Duration {
	if c.Keys.GracePeriod > 0 {
		return c.Keys.GracePeriod
	}
	return c.maxTokenTTL()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Keys.Secret = append([]byte(nil), cfg.Keys.Secret...)
	out.Keys.PrivateKey = append([]byte(nil), cfg.Keys.PrivateKey...)
	out.Keys.PublicKey = append([]byte(nil), cfg.Keys.PublicKey...)
	return out
}

package arenax

import (
	"errors"

	"github.com/Sandijigs/ArenaX/blacklist"
	internalaudit "github.com/Sandijigs/ArenaX/internal/audit"
	"github.com/Sandijigs/ArenaX/jwt"
	"github.com/Sandijigs/ArenaX/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Configure, then call Build exactly once.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	auditSink AuditSink

	built bool
}

// New returns a builder preloaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. Key material is deep-copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing sessions and the blacklist.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the sink receiving audit events. Takes effect only when
// Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validate-latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. The builder is
// single-use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	keyID := cfg.Keys.KeyID
	if keyID == "" {
		return nil, errors.New("Keys.KeyID required")
	}

	keyring, err := jwt.NewKeyring(
		jwt.SigningMethod(cfg.JWT.SigningMethod),
		jwt.Key{
			ID:      keyID,
			Secret:  cfg.Keys.Secret,
			Private: cfg.Keys.PrivateKey,
			Public:  cfg.Keys.PublicKey,
		},
		cfg.Keys.RotationInterval,
		cfg.gracePeriod(),
	)
	if err != nil {
		return nil, err
	}

	codec, err := jwt.NewCodec(jwt.Config{
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		Leeway:     cfg.JWT.Leeway,
	}, keyring)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		keys:      keyring,
		codec:     codec,
		sessions:  session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.StoreTimeout),
		blacklist: blacklist.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.StoreTimeout),
		metrics:   NewMetrics(cfg.Metrics),
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.analytics.Store(&AnalyticsSnapshot{})

	b.built = true

	return engine, nil
}

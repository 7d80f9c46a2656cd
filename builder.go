package forumauth

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/forumauth/internal/audit"
	"github.com/MrEthical07/forumauth/internal/rate"
	"github.com/MrEthical07/forumauth/jwt"
	"github.com/MrEthical07/forumauth/lock"
	"github.com/MrEthical07/forumauth/session"
)

// Builder assembles an [Engine]. A Builder can be used once.
//
//	engine, err := forumauth.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithAccountVerifier(directory).
//		WithIdentityLoader(directory).
//		Build()
type Builder struct {
	config Config
	redis  redis.UniversalClient

	verifier     AccountVerifier
	identities   IdentityLoader
	auditSink    AuditSink
	logger       *slog.Logger
	lockRegistry *lock.Registry
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the session store and rate limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAccountVerifier(v AccountVerifier) *Builder {
	b.verifier = v
	return b
}

// WithIdentityLoader sets the collaborator used by ResolveIdentity. Without
// one, resolved identities carry only the principal.
func (b *Builder) WithIdentityLoader(l IdentityLoader) *Builder {
	b.identities = l
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. The default discards output.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithLockRegistry shares a lock registry between engines in one process.
func (b *Builder) WithLockRegistry(r *lock.Registry) *Builder {
	b.lockRegistry = r
	return b
}

// WithClock overrides the clock used to stamp and check credentials.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
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
	if b.verifier == nil {
		return nil, errors.New("account verifier required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// -------- TOKEN CODEC --------
	jm, err := jwt.NewManager(jwt.Config{
		Secret: cloneBytes(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		Now:    b.now,
	})
	if err != nil {
		return nil, err
	}

	// -------- CRITICAL SECTION --------
	guard, err := lock.NewGuard(b.lockRegistry, lock.Config{
		MaxAttempts:    cfg.Lock.MaxAttempts,
		AttemptTimeout: cfg.Lock.AttemptTimeout,
		Backoff:        cfg.Lock.Backoff,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cloneConfig(cfg),
		jwtManager:   jm,
		sessionStore: session.NewStore(b.redis, cfg.Session.RedisPrefix),
		guard:        guard,
		verifier:     b.verifier,
		identities:   b.identities,
		metrics:      NewMetrics(cfg.Metrics),
		logger:       logger,
	}

	if cfg.Security.EnableLoginThrottle || cfg.Security.EnableRenewalThrottle {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			EnableLoginThrottle:   cfg.Security.EnableLoginThrottle,
			EnableIPThrottle:      cfg.Security.EnableIPThrottle,
			EnableRenewalThrottle: cfg.Security.EnableRenewalThrottle,
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldown:         cfg.Security.LoginCooldownDuration,
			MaxRenewalAttempts:    cfg.Security.MaxRenewalAttempts,
			RenewalCooldown:       cfg.Security.RenewalCooldownDuration,
		})
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, logger)

	guard.OnContention = engine.onLockContention
	engine.flowDeps = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}

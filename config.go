package forumauth

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Config is the complete Engine configuration. Obtain a populated value from
// [DefaultConfig] and override fields before passing it to [Builder.WithConfig].
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Lock     LockConfig
	Security SecurityConfig
	Cookie   CookieConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls credential signing and lifetimes. Both credential kinds
// are HS256 tokens signed with Secret.
type JWTConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Secret     []byte
	Issuer     string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls where active renewal credentials are kept.
type SessionConfig struct {
	RedisPrefix string
}

/*
====================================
LOCK CONFIG
====================================
*/

// LockConfig tunes the critical section that serializes renewal issuance,
// rotation and revocation.
type LockConfig struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	Backoff        time.Duration

	// GlobalSection serializes every principal behind a single key instead of
	// one key per principal.
	GlobalSection bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds production hardening and throttling settings.
type SecurityConfig struct {
	ProductionMode          bool
	EnableLoginThrottle     bool
	EnableIPThrottle        bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	EnableRenewalThrottle   bool
	MaxRenewalAttempts      int
	RenewalCooldownDuration time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig describes the cookie that carries the renewal credential.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters and the validation latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  5 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "forumauth",
		},
		Session: SessionConfig{
			RedisPrefix: "fa",
		},
		Lock: LockConfig{
			MaxAttempts:    5,
			AttemptTimeout: time.Second,
			Backoff:        50 * time.Millisecond,
			GlobalSection:  false,
		},
		Security: SecurityConfig{
			ProductionMode:          false,
			EnableLoginThrottle:     true,
			EnableIPThrottle:        false,
			MaxLoginAttempts:        5,
			LoginCooldownDuration:   15 * time.Minute,
			EnableRenewalThrottle:   true,
			MaxRenewalAttempts:      20,
			RenewalCooldownDuration: time.Minute,
		},
		Cookie: CookieConfig{
			Name:     "refresh_token",
			Path:     "/",
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
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

// DefaultConfig returns the baseline configuration. The signing secret is
// left empty and must be supplied by the caller.
func DefaultConfig() Config {
	return defaultConfig()
}

// HighSecurityConfig returns a production-mode preset with short lifetimes,
// IP throttling and audit enabled.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.JWT.RefreshTTL = 24 * time.Hour
	cfg.Security.ProductionMode = true
	cfg.Security.EnableIPThrottle = true
	cfg.Security.MaxLoginAttempts = 3
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting. Build calls it; callers may
// use it earlier to fail fast on operator input.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if len(c.JWT.Secret) == 0 {
		return errors.New("JWT Secret is required")
	}
	if strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("JWT Issuer is required")
	}

	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix is required")
	}
	if strings.ContainsAny(c.Session.RedisPrefix, " \t\r\n") {
		return errors.New("Session RedisPrefix must not contain whitespace")
	}

	// Lock
	if c.Lock.MaxAttempts <= 0 {
		return errors.New("Lock MaxAttempts must be > 0")
	}
	if c.Lock.AttemptTimeout <= 0 {
		return errors.New("Lock AttemptTimeout must be > 0")
	}
	if c.Lock.Backoff <= 0 {
		return errors.New("Lock Backoff must be > 0")
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0 when login throttle is enabled")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("Security LoginCooldownDuration must be > 0 when login throttle is enabled")
		}
	}
	if c.Security.EnableIPThrottle && !c.Security.EnableLoginThrottle {
		return errors.New("Security EnableIPThrottle requires EnableLoginThrottle")
	}
	if c.Security.EnableRenewalThrottle {
		if c.Security.MaxRenewalAttempts <= 0 {
			return errors.New("Security MaxRenewalAttempts must be > 0 when renewal throttle is enabled")
		}
		if c.Security.RenewalCooldownDuration <= 0 {
			return errors.New("Security RenewalCooldownDuration must be > 0 when renewal throttle is enabled")
		}
	}

	// Cookie
	if strings.TrimSpace(c.Cookie.Name) == "" {
		return errors.New("Cookie Name is required")
	}
	// The renewal cookie is sent to /auth/refresh and /auth/logout alike.
	if c.Cookie.Path != "/" {
		return errors.New("Cookie Path must be /")
	}
	switch c.Cookie.SameSite {
	case http.SameSiteDefaultMode, http.SameSiteLaxMode, http.SameSiteStrictMode, http.SameSiteNoneMode:
		// valid
	default:
		return errors.New("Cookie SameSite is invalid")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if c.JWT.AccessTTL > 15*time.Minute {
			return errors.New("ProductionMode requires JWT AccessTTL <= 15m")
		}
		if c.JWT.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires JWT RefreshTTL <= 30d")
		}
		if len(c.JWT.Secret) < 32 {
			return errors.New("ProductionMode requires hs256 secret length >= 256 bits")
		}
		if !c.Cookie.Secure {
			return errors.New("ProductionMode requires secure cookies")
		}
		if !c.Security.EnableLoginThrottle {
			return errors.New("ProductionMode requires login throttling")
		}
	}

	return nil
}

package app

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	forumauth "github.com/MrEthical07/forumauth"
	"github.com/MrEthical07/forumauth/account"
	"github.com/MrEthical07/forumauth/internal/server"
)

// Keys shared by flags, FORUMAUTH_* environment variables and the YAML file.
const (
	keyConfig         = "config"
	keyDebug          = "debug"
	keyAddress        = "address"
	keyRedisAddr      = "redis-addr"
	keyRedisPrefix    = "redis-prefix"
	keySecret         = "secret"
	keyDev            = "dev"
	keyProduction     = "production"
	keyAccessTTL      = "access-ttl"
	keyRefreshTTL     = "refresh-ttl"
	keyGlobalLock     = "global-lock"
	keyCookieSecure   = "cookie-secure"
	keyAudit          = "audit"
	keyMetrics        = "metrics"
	keyOTLPEndpoint   = "otlp-endpoint"
	keyOTLPInsecure   = "otlp-insecure"
	keyAccounts       = "accounts"
	keyRequestTimeout = "request-timeout"
)

var devAccounts = []string{
	"alice:correct-password-123",
	"bob:correct-password-456",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("FORUMAUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyAddress, ":8080")
	v.SetDefault(keyRedisPrefix, "fa")
	v.SetDefault(keyRequestTimeout, 10*time.Second)
	return v
}

// readConfigFile merges the file named by --config, if any.
func readConfigFile(v *viper.Viper) error {
	path := v.GetString(keyConfig)
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// engineConfig maps settings onto the engine configuration. The secret is
// accepted as standard base64 or, failing that, as raw bytes.
func engineConfig(v *viper.Viper) (forumauth.Config, error) {
	cfg := forumauth.DefaultConfig()
	if v.GetBool(keyProduction) {
		cfg = forumauth.HighSecurityConfig()
	}

	secret := v.GetString(keySecret)
	if secret == "" {
		if !v.GetBool(keyDev) {
			return cfg, errors.New("a signing secret is required (--secret or FORUMAUTH_SECRET)")
		}
		secret = "dev-only-signing-secret-0123456789abcdef"
	}
	if raw, err := base64.StdEncoding.DecodeString(secret); err == nil && len(raw) >= 32 {
		cfg.JWT.Secret = raw
	} else {
		cfg.JWT.Secret = []byte(secret)
	}

	// Lifetimes left unset keep the preset's values.
	if v.IsSet(keyAccessTTL) {
		cfg.JWT.AccessTTL = v.GetDuration(keyAccessTTL)
	}
	if v.IsSet(keyRefreshTTL) {
		cfg.JWT.RefreshTTL = v.GetDuration(keyRefreshTTL)
	}
	cfg.Session.RedisPrefix = v.GetString(keyRedisPrefix)
	cfg.Lock.GlobalSection = v.GetBool(keyGlobalLock)
	switch {
	case v.IsSet(keyCookieSecure):
		cfg.Cookie.Secure = v.GetBool(keyCookieSecure)
	case v.GetBool(keyDev):
		cfg.Cookie.Secure = false
	}
	if v.GetBool(keyAudit) {
		cfg.Audit.Enabled = true
	}
	if v.GetBool(keyMetrics) || v.GetString(keyOTLPEndpoint) != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.EnableLatencyHistograms = true
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func serverConfig(v *viper.Viper) server.Config {
	return server.Config{
		Addr:           v.GetString(keyAddress),
		RequestTimeout: v.GetDuration(keyRequestTimeout),
	}
}

// seedAccounts registers "username:password" entries as verified accounts.
func seedAccounts(dir *account.Directory, entries []string) error {
	for _, entry := range entries {
		username, pass, ok := strings.Cut(entry, ":")
		if !ok || username == "" {
			return fmt.Errorf("account entry %q: want username:password", entry)
		}
		if _, err := dir.Add(account.Account{
			ID:       username,
			Username: username,
			Password: pass,
			Roles:    []string{"member"},
			Verified: true,
		}); err != nil {
			return fmt.Errorf("account %q: %w", username, err)
		}
	}
	return nil
}

func accountEntries(v *viper.Viper) []string {
	entries := v.GetStringSlice(keyAccounts)
	if len(entries) == 0 && v.GetBool(keyDev) {
		return devAccounts
	}
	return entries
}

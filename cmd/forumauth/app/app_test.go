package app

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/forumauth/account"
	"github.com/MrEthical07/forumauth/password"
)

func TestEngineConfigRequiresSecretOutsideDev(t *testing.T) {
	v := newViper()

	_, err := engineConfig(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret")
}

func TestEngineConfigDevDefaults(t *testing.T) {
	v := newViper()
	v.Set(keyDev, true)

	cfg, err := engineConfig(v)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.JWT.Secret)
	assert.False(t, cfg.Cookie.Secure, "dev mode relaxes the cookie unless set explicitly")
	assert.Equal(t, "fa", cfg.Session.RedisPrefix)
	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTTL)

	v.Set(keyCookieSecure, true)
	cfg, err = engineConfig(v)
	require.NoError(t, err)
	assert.True(t, cfg.Cookie.Secure)
}

func TestEngineConfigFromEnvironment(t *testing.T) {
	secret := bytes.Repeat([]byte{0x5a}, 32)
	t.Setenv("FORUMAUTH_SECRET", base64.StdEncoding.EncodeToString(secret))
	t.Setenv("FORUMAUTH_ACCESS_TTL", "2m")
	t.Setenv("FORUMAUTH_GLOBAL_LOCK", "true")
	t.Setenv("FORUMAUTH_REDIS_PREFIX", "forum")

	cfg, err := engineConfig(newViper())
	require.NoError(t, err)
	assert.Equal(t, secret, cfg.JWT.Secret, "base64 secrets are decoded")
	assert.Equal(t, 2*time.Minute, cfg.JWT.AccessTTL)
	assert.True(t, cfg.Lock.GlobalSection)
	assert.Equal(t, "forum", cfg.Session.RedisPrefix)
	assert.True(t, cfg.Cookie.Secure)
}

func TestEngineConfigProductionPreset(t *testing.T) {
	v := newViper()
	v.Set(keyProduction, true)
	v.Set(keySecret, strings.Repeat("s", 40))

	cfg, err := engineConfig(v)
	require.NoError(t, err)
	assert.True(t, cfg.Security.ProductionMode)
	assert.Equal(t, 24*time.Hour, cfg.JWT.RefreshTTL, "unset lifetimes keep the preset")

	v.Set(keyCookieSecure, false)
	_, err = engineConfig(v)
	assert.Error(t, err, "production rejects insecure cookies")
}

func TestReadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forumauth.yaml")
	content := "secret: " + strings.Repeat("k", 40) + "\nrefresh-ttl: 48h\nglobal-lock: true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := newViper()
	v.Set(keyConfig, path)
	require.NoError(t, readConfigFile(v))

	cfg, err := engineConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, cfg.JWT.RefreshTTL)
	assert.True(t, cfg.Lock.GlobalSection)

	v = newViper()
	v.Set(keyConfig, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, readConfigFile(v))
}

func TestSeedAccounts(t *testing.T) {
	hasher, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	require.NoError(t, err)
	dir, err := account.NewDirectory(hasher)
	require.NoError(t, err)

	v := newViper()
	v.Set(keyDev, true)
	require.NoError(t, seedAccounts(dir, accountEntries(v)))
	assert.Equal(t, len(devAccounts), dir.Len())

	assert.Error(t, seedAccounts(dir, []string{"no-separator"}))
	assert.ErrorIs(t, seedAccounts(dir, []string{devAccounts[0]}), account.ErrDuplicateUsername)

	v.Set(keyAccounts, []string{"carol:correct-password-789"})
	assert.Equal(t, []string{"carol:correct-password-789"}, accountEntries(v))
}

func TestCheckCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check", "--dev", "--global-lock"})

	require.NoError(t, cmd.Execute())

	var result checkOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.True(t, result.Valid)

	codes := make([]string, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, "global_lock")
	assert.Contains(t, codes, "cookie_insecure")
}

func TestCheckCommandInvalid(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"check", "--dev", "--access-ttl", "0s"})

	require.Error(t, cmd.Execute())
	assert.Contains(t, out.String(), `"valid": false`)
}

func TestLoadtestCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"loadtest", "--principals", "4", "--concurrency", "3", "--ops", "30"})

	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.Contains(t, text, "validate: ops=30 failures=0")
	assert.Contains(t, text, "refresh: ops=30 failures=0")
	assert.Contains(t, text, "exhausted=0")
}

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	assert.Equal(t, time.Duration(1), percentile(samples, 0))
	assert.Equal(t, time.Duration(5), percentile(samples, 50))
	assert.Equal(t, time.Duration(10), percentile(samples, 100))
	assert.Zero(t, percentile(nil, 50))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "forumauth version: dev\n", out.String())
}

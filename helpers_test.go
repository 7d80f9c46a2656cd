package forumauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = append([]byte(nil), testSecret...)
	cfg.JWT.Issuer = "forum-test"
	cfg.Lock.AttemptTimeout = 500 * time.Millisecond
	cfg.Lock.Backoff = 5 * time.Millisecond
	cfg.Security.MaxRenewalAttempts = 1000
	return cfg
}

type testAccount struct {
	principal string
	password  string
	verified  bool
	roles     []string
}

// stubDirectory implements both collaborators over a fixed account table.
type stubDirectory struct {
	mu          sync.Mutex
	accounts    map[string]testAccount
	backendErr  error
	verifyCalls int
	loadCalls   int
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		accounts: map[string]testAccount{
			"alice": {principal: "alice", password: "correct-password-123", verified: true, roles: []string{"member"}},
			"bob":   {principal: "bob", password: "hunter2-hunter2", verified: true, roles: []string{"member", "moderator"}},
			"carol": {principal: "carol", password: "pending-password", verified: false},
		},
	}
}

func (d *stubDirectory) Verify(_ context.Context, username, password string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.verifyCalls++
	if d.backendErr != nil {
		return "", d.backendErr
	}
	acct, ok := d.accounts[username]
	if !ok {
		return "", &AuthFailure{Kind: UnknownAccount}
	}
	if acct.password != password {
		return "", &AuthFailure{Kind: BadCredentials}
	}
	if !acct.verified {
		return "", &AuthFailure{Kind: NotVerified}
	}
	return acct.principal, nil
}

func (d *stubDirectory) LoadByPrincipal(_ context.Context, principal string) (*Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loadCalls++
	for username, acct := range d.accounts {
		if acct.principal == principal {
			return &Identity{ID: principal, Username: username, Roles: acct.roles, Verified: acct.verified}, nil
		}
	}
	return nil, ErrIdentityNotFound
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type engineOption func(*Builder)

func newEngineForTest(t testing.TB, cfg Config, opts ...engineOption) (*Engine, *miniredis.Miniredis, *stubDirectory) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	dir := newStubDirectory()
	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountVerifier(dir).
		WithIdentityLoader(dir)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, mr, dir
}

func isOneOf(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

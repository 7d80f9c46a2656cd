package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	forumauth "github.com/MrEthical07/forumauth"
	"github.com/MrEthical07/forumauth/account"
	"github.com/MrEthical07/forumauth/password"
)

const renewalTTL = 24 * time.Hour

func newTestServer(t *testing.T) (*httptest.Server, *forumauth.Engine, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hasher, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	require.NoError(t, err)
	dir, err := account.NewDirectory(hasher)
	require.NoError(t, err)
	_, err = dir.Add(account.Account{ID: "alice", Username: "alice", Password: "correct-password-123", Roles: []string{"member"}, Verified: true})
	require.NoError(t, err)

	cfg := forumauth.DefaultConfig()
	cfg.JWT.Secret = []byte("server-test-secret-0123456789abcdef")
	cfg.JWT.RefreshTTL = renewalTTL
	cfg.Cookie.Secure = false
	cfg.Metrics.Enabled = true

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := forumauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountVerifier(dir).
		WithIdentityLoader(dir).
		WithLogger(logger).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	srv := httptest.NewServer(NewRouter(engine, logger, 5*time.Second))
	t.Cleanup(srv.Close)
	return srv, engine, mr
}

func post(t *testing.T, url string, body string, mutate func(*http.Request)) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(http.MethodPost, url, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginRefreshLogoutScenario(t *testing.T) {
	srv, engine, _ := newTestServer(t)

	// Login: access header plus a renewal cookie sized to the renewal lifetime.
	login := post(t, srv.URL+"/auth/login", `{"username":"alice","password":"correct-password-123"}`, nil)
	require.Equal(t, http.StatusOK, login.StatusCode)

	access := strings.TrimPrefix(login.Header.Get("Authorization"), "Bearer ")
	require.NotEmpty(t, access)
	cookie := cookieNamed(login, "refresh_token")
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.InDelta(t, renewalTTL.Seconds(), float64(cookie.MaxAge), 2)

	// Refresh with the cookie: new access credential, old renewal credential dead.
	refresh := post(t, srv.URL+"/auth/refresh", "", func(r *http.Request) { r.AddCookie(cookie) })
	require.Equal(t, http.StatusOK, refresh.StatusCode)

	newAccess := strings.TrimPrefix(refresh.Header.Get("Authorization"), "Bearer ")
	assert.NotEmpty(t, newAccess)
	assert.NotEqual(t, access, newAccess)
	rotated := cookieNamed(refresh, "refresh_token")
	require.NotNil(t, rotated)
	assert.NotEqual(t, cookie.Value, rotated.Value)

	_, err := engine.Rotate(context.Background(), cookie.Value, "")
	assert.ErrorIs(t, err, forumauth.ErrInvalidRenewalToken)

	// Logout with the rotated credential, then it can no longer refresh.
	logout := post(t, srv.URL+"/auth/logout", "", func(r *http.Request) { r.AddCookie(rotated) })
	require.Equal(t, http.StatusOK, logout.StatusCode)

	again := post(t, srv.URL+"/auth/refresh", "", func(r *http.Request) { r.AddCookie(rotated) })
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusUnauthorized}, again.StatusCode)
}

func TestRefreshAcceptsHeaderAndBody(t *testing.T) {
	srv, engine, _ := newTestServer(t)
	ctx := context.Background()

	pair, err := engine.Login(ctx, "alice", "correct-password-123")
	require.NoError(t, err)

	viaHeader := post(t, srv.URL+"/auth/refresh", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Refresh "+pair.RenewalToken)
	})
	require.Equal(t, http.StatusOK, viaHeader.StatusCode)
	next := cookieNamed(viaHeader, "refresh_token")
	require.NotNil(t, next)

	viaBody := post(t, srv.URL+"/auth/refresh", `{"refreshToken":"`+next.Value+`"}`, nil)
	assert.Equal(t, http.StatusOK, viaBody.StatusCode)

	none := post(t, srv.URL+"/auth/refresh", "", nil)
	assert.Equal(t, http.StatusBadRequest, none.StatusCode)
}

func TestMeRequiresIdentity(t *testing.T) {
	srv, engine, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/me")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	access, err := engine.IssueAccessToken("alice")
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+access)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body identityResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "alice", body.ID)
	assert.Equal(t, []string{"member"}, body.Roles)
}

func TestHealthzAndMetrics(t *testing.T) {
	srv, _, mr := newTestServer(t)

	_ = post(t, srv.URL+"/auth/login", `{"username":"alice","password":"correct-password-123"}`, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "forumauth_login_success_total 1")

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	mr.Close()
	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	_, engine, _ := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(Config{ShutdownTimeout: time.Second}, engine, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

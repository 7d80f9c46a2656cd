package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	cfg := Config{Secret: []byte("0123456789abcdef0123456789abcdef"), Issuer: "forum"}
	if clock != nil {
		cfg.Now = clock.Now
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestNewManagerRejectsInvalidConfig(t *testing.T) {
	if _, err := NewManager(Config{Issuer: "forum"}); err == nil {
		t.Fatal("expected missing secret to fail")
	}
	if _, err := NewManager(Config{Secret: []byte("s")}); err == nil {
		t.Fatal("expected missing issuer to fail")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestManager(t, clock)

	for _, principal := range []string{"alice", "bob@example.com", "42"} {
		for _, ttl := range []time.Duration{time.Second, 5 * time.Minute, 14 * 24 * time.Hour} {
			tok, err := m.Encode(KindAccess, principal, ttl)
			if err != nil {
				t.Fatalf("encode %s/%v: %v", principal, ttl, err)
			}
			claims, err := m.Decode(tok)
			if err != nil {
				t.Fatalf("decode %s/%v: %v", principal, ttl, err)
			}
			if claims.Subject != principal {
				t.Fatalf("expected subject %q, got %q", principal, claims.Subject)
			}
			if claims.Issuer != "forum" {
				t.Fatalf("expected issuer forum, got %q", claims.Issuer)
			}
			want := clock.now.Add(ttl).Unix()
			if got := claims.ExpiresAt.Unix(); got != want {
				t.Fatalf("expected exp %d, got %d", want, got)
			}
			if claims.Kind != KindAccess {
				t.Fatalf("expected access kind, got %q", claims.Kind)
			}
		}
	}
}

func TestEncodeRejectsInvalidInput(t *testing.T) {
	m := newTestManager(t, nil)
	if _, err := m.Encode(KindAccess, "", time.Minute); err == nil {
		t.Fatal("expected empty subject to fail")
	}
	if _, err := m.Encode(KindAccess, "alice", 0); err == nil {
		t.Fatal("expected zero ttl to fail")
	}
	if _, err := m.Encode(Kind("other"), "alice", time.Minute); err == nil {
		t.Fatal("expected unknown kind to fail")
	}
}

func TestEncodeSameSecondProducesDistinctTokens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestManager(t, clock)

	a, _ := m.Encode(KindRenewal, "alice", time.Hour)
	b, _ := m.Encode(KindRenewal, "alice", time.Hour)
	if a == b {
		t.Fatal("expected distinct credentials for the same subject and second")
	}
}

func TestIsExpiredInclusiveBoundary(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestManager(t, clock)

	tok, err := m.Encode(KindAccess, "alice", 10*time.Second)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	claims, err := m.Decode(tok)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	clock.now = time.Unix(1_700_000_009, 0)
	if m.IsExpired(claims) {
		t.Fatal("expected token one second before expiry to be valid")
	}
	if got := m.Remaining(claims); got != time.Second {
		t.Fatalf("expected 1s remaining, got %v", got)
	}

	clock.now = time.Unix(1_700_000_010, 0)
	if !m.IsExpired(claims) {
		t.Fatal("expected token at expiry second to be expired")
	}
	if got := m.Remaining(claims); got != 0 {
		t.Fatalf("expected no time remaining, got %v", got)
	}

	// Decode never looks at expiry.
	clock.now = time.Unix(1_800_000_000, 0)
	if _, err := m.Decode(tok); err != nil {
		t.Fatalf("expected expired token to still decode: %v", err)
	}
	expired, err := m.Expired(tok)
	if err != nil || !expired {
		t.Fatalf("expected Expired true, got %v %v", expired, err)
	}
}

func TestDecodeRejectsTamperedSignature(t *testing.T) {
	m := newTestManager(t, nil)
	tok, err := m.Encode(KindAccess, "alice", time.Minute)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("expected three segments, got %d", len(parts))
	}

	sig := parts[2]
	for i := 0; i < len(sig); i++ {
		tampered := parts[0] + "." + parts[1] + "." + flipChar(sig, i)
		_, err := m.Decode(tampered)
		if !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("signature flip at %d: expected ErrInvalidSignature, got %v", i, err)
		}
	}
}

// The last character of a segment carries unused padding bits; every other
// base64url character in that position must still be rejected.
func TestDecodeRejectsAnyLastCharacterChange(t *testing.T) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

	m := newTestManager(t, nil)
	tok, err := m.Encode(KindRenewal, "alice", time.Minute)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	parts := strings.Split(tok, ".")

	for seg := range parts {
		last := len(parts[seg]) - 1
		for _, c := range []byte(alphabet) {
			if c == parts[seg][last] {
				continue
			}
			mutated := append([]string(nil), parts...)
			mutated[seg] = parts[seg][:last] + string(c)
			if _, err := m.Decode(strings.Join(mutated, ".")); !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("segment %d last char %q: expected ErrInvalidSignature, got %v", seg, c, err)
			}
		}
	}
}

func TestDecodeRejectsTamperedPayloadAndHeader(t *testing.T) {
	m := newTestManager(t, nil)
	tok, err := m.Encode(KindAccess, "alice", time.Minute)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	parts := strings.Split(tok, ".")

	for seg := 0; seg < 2; seg++ {
		for i := 0; i < len(parts[seg]); i++ {
			mutated := append([]string(nil), parts...)
			mutated[seg] = flipChar(parts[seg], i)
			_, err := m.Decode(strings.Join(mutated, "."))
			if !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("segment %d flip at %d: expected ErrInvalidSignature, got %v", seg, i, err)
			}
		}
	}
}

func TestDecodeRejectsBitFlipsAnywhere(t *testing.T) {
	m := newTestManager(t, nil)
	tok, err := m.Encode(KindAccess, "alice", time.Minute)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	for i := 0; i < len(tok); i++ {
		if tok[i] == '.' {
			continue
		}
		b := []byte(tok)
		b[i] ^= 0x01
		if b[i] == '.' {
			continue
		}
		if _, err := m.Decode(string(b)); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("bit flip at %d: expected ErrInvalidSignature, got %v", i, err)
		}
	}
}

func TestDecodeRejectsWrongSecretIssuerAndAlgorithm(t *testing.T) {
	m := newTestManager(t, nil)

	other, err := NewManager(Config{Secret: []byte("another-secret-another-secret-xx"), Issuer: "forum"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	foreign, _ := other.Encode(KindAccess, "alice", time.Minute)
	if _, err := m.Decode(foreign); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected wrong secret to fail signature, got %v", err)
	}

	claims := Claims{Kind: KindAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "someone-else",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	wrongIssuer, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(m.secret)
	if _, err := m.Decode(wrongIssuer); !errors.Is(err, ErrInvalidIssuer) {
		t.Fatalf("expected issuer mismatch, got %v", err)
	}

	claims.Issuer = "forum"
	hs512, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString(m.secret)
	if _, err := m.Decode(hs512); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected wrong algorithm to fail, got %v", err)
	}

	none, _ := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if _, err := m.Decode(none); err == nil {
		t.Fatal("expected alg none to be rejected")
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	m := newTestManager(t, nil)
	for _, in := range []string{"", "not-a-token", "a.b", "....."} {
		if _, err := m.Decode(in); !errors.Is(err, ErrMalformed) {
			t.Fatalf("input %q: expected ErrMalformed, got %v", in, err)
		}
	}
	if _, err := m.Decode("a.b.c"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("unsigned three-segment input: expected ErrInvalidSignature, got %v", err)
	}

	claims := Claims{Kind: KindAccess, RegisteredClaims: gjwt.RegisteredClaims{Issuer: "forum"}}
	noSubject, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(m.secret)
	if _, err := m.Decode(noSubject); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected missing subject/expiry to be malformed, got %v", err)
	}
}

func flipChar(s string, i int) string {
	b := []byte(s)
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}

package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrMalformed is returned for input that is not a structurally valid credential.
	ErrMalformed = errors.New("malformed token")
	// ErrInvalidSignature is returned when the signature or algorithm does not verify.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrInvalidIssuer is returned when a correctly signed credential names another issuer.
	ErrInvalidIssuer = errors.New("invalid token issuer")
	// ErrExpired is returned by callers that reject a decoded credential on expiry.
	ErrExpired = errors.New("token expired")
)

// Kind distinguishes access credentials from renewal credentials.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRenewal Kind = "renewal"
)

// Config configures a [Manager].
type Config struct {
	Secret []byte
	Issuer string

	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// Manager signs and verifies credentials with a single HS256 secret.
type Manager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Claims is the payload carried by every credential.
type Claims struct {
	Kind Kind `json:"typ"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a ready manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("hs256 requires secret")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Manager{secret: secret, issuer: cfg.Issuer, now: now}, nil
}

// Issuer returns the issuer stamped into every credential.
func (m *Manager) Issuer() string {
	return m.issuer
}

// Encode builds and signs a credential of the given kind for subject that
// expires ttl from now. Timestamps are whole seconds.
func (m *Manager) Encode(kind Kind, subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be > 0")
	}
	if kind != KindAccess && kind != KindRenewal {
		return "", fmt.Errorf("unknown token kind %q", kind)
	}

	now := m.now().Truncate(time.Second)
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Decode verifies the credential and returns its claims without looking at
// expiry. A three-segment input whose HMAC does not match is always
// ErrInvalidSignature; other structural problems are ErrMalformed.
func (m *Manager) Decode(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
		jwt.WithStrictDecoding(),
	)

	signed, sig, ok := splitSignature(tokenStr)
	if !ok {
		return nil, fmt.Errorf("%w: expected three segments", ErrMalformed)
	}
	raw, err := parser.DecodeSegment(sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if err := jwt.SigningMethodHS256.Verify(signed, raw, m.secret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSignature
	}
	if claims.Issuer != m.issuer {
		return nil, ErrInvalidIssuer
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing subject or expiry", ErrMalformed)
	}
	if claims.Kind != KindAccess && claims.Kind != KindRenewal {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformed, claims.Kind)
	}

	return claims, nil
}

// splitSignature separates "header.payload" from the signature segment.
func splitSignature(tokenStr string) (signed, sig string, ok bool) {
	if strings.Count(tokenStr, ".") != 2 {
		return "", "", false
	}
	i := strings.LastIndexByte(tokenStr, '.')
	return tokenStr[:i], tokenStr[i+1:], true
}

// IsExpired reports whether claims are expired. A credential whose expiry
// equals the current second is expired.
func (m *Manager) IsExpired(claims *Claims) bool {
	if claims == nil || claims.ExpiresAt == nil {
		return true
	}
	return m.now().Unix() >= claims.ExpiresAt.Unix()
}

// Expired decodes tokenStr and reports whether it is expired.
func (m *Manager) Expired(tokenStr string) (bool, error) {
	claims, err := m.Decode(tokenStr)
	if err != nil {
		return false, err
	}
	return m.IsExpired(claims), nil
}

// Remaining returns the whole seconds left before claims expire, never negative.
func (m *Manager) Remaining(claims *Claims) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	left := claims.ExpiresAt.Unix() - m.now().Unix()
	if left <= 0 {
		return 0
	}
	return time.Duration(left) * time.Second
}

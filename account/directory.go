package account

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	forumauth "github.com/MrEthical07/forumauth"
	"github.com/MrEthical07/forumauth/password"
)

var (
	ErrDuplicateUsername = errors.New("username already registered")
	ErrUnknownUsername   = errors.New("unknown username")
)

// Account is the input to [Directory.Add]. ID is generated when empty.
type Account struct {
	ID       string
	Username string
	Password string
	Roles    []string
	Verified bool
}

type record struct {
	id       string
	username string
	hash     string
	roles    []string
	verified bool
}

// Directory is a concurrency-safe account table.
type Directory struct {
	hasher *password.Argon2

	mu          sync.RWMutex
	byUsername  map[string]*record
	byPrincipal map[string]*record

	// unknownHash is verified against for missing usernames so unknown
	// accounts cost the same as wrong passwords.
	unknownHash string
}

func NewDirectory(hasher *password.Argon2) (*Directory, error) {
	if hasher == nil {
		return nil, errors.New("account: nil password hasher")
	}
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("account: prepare dummy hash: %w", err)
	}

	return &Directory{
		hasher:      hasher,
		byUsername:  make(map[string]*record),
		byPrincipal: make(map[string]*record),
		unknownHash: dummy,
	}, nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Add hashes the password and registers the account. Usernames are compared
// case-insensitively.
func (d *Directory) Add(acct Account) (string, error) {
	username := normalizeUsername(acct.Username)
	if username == "" {
		return "", errors.New("account: username required")
	}

	hash, err := d.hasher.Hash(acct.Password)
	if err != nil {
		return "", fmt.Errorf("account: %w", err)
	}

	id := acct.ID
	if id == "" {
		id = uuid.NewString()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byUsername[username]; exists {
		return "", ErrDuplicateUsername
	}
	if _, exists := d.byPrincipal[id]; exists {
		return "", fmt.Errorf("account: principal %q already registered", id)
	}

	rec := &record{
		id:       id,
		username: username,
		hash:     hash,
		roles:    slices.Clone(acct.Roles),
		verified: acct.Verified,
	}
	d.byUsername[username] = rec
	d.byPrincipal[id] = rec
	return id, nil
}

// SetVerified marks an account verified or unverified.
func (d *Directory) SetVerified(username string, verified bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.byUsername[normalizeUsername(username)]
	if !ok {
		return ErrUnknownUsername
	}
	rec.verified = verified
	return nil
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byUsername)
}

func (d *Directory) lookup(username string) (record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.byUsername[normalizeUsername(username)]
	if !ok {
		return record{}, false
	}
	return *rec, true
}

// Verify implements [forumauth.AccountVerifier]. The password is checked
// before the verification flag, so an unverified account is only reported
// to a caller who knows its password.
func (d *Directory) Verify(ctx context.Context, username, pass string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rec, ok := d.lookup(username)
	if !ok {
		_, _ = d.hasher.Verify(pass, d.unknownHash)
		return "", &forumauth.AuthFailure{Kind: forumauth.UnknownAccount}
	}

	match, err := d.hasher.Verify(pass, rec.hash)
	if errors.Is(err, password.ErrTooLong) {
		return "", &forumauth.AuthFailure{Kind: forumauth.BadCredentials}
	}
	if err != nil {
		return "", fmt.Errorf("account: stored hash for %q: %w", rec.username, err)
	}
	if !match {
		return "", &forumauth.AuthFailure{Kind: forumauth.BadCredentials}
	}
	if !rec.verified {
		return "", &forumauth.AuthFailure{Kind: forumauth.NotVerified}
	}

	return rec.id, nil
}

// LoadByPrincipal implements [forumauth.IdentityLoader].
func (d *Directory) LoadByPrincipal(_ context.Context, principal string) (*forumauth.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.byPrincipal[principal]
	if !ok {
		return nil, forumauth.ErrIdentityNotFound
	}
	return &forumauth.Identity{
		ID:       rec.id,
		Username: rec.username,
		Roles:    slices.Clone(rec.roles),
		Verified: rec.verified,
	}, nil
}

var (
	_ forumauth.AccountVerifier = (*Directory)(nil)
	_ forumauth.IdentityLoader  = (*Directory)(nil)
)

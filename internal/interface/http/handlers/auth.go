package handlers

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION
// Two kinds of credentials are accepted:
//   - admin API keys, stored as bcrypt hashes, grant access to every route;
//   - installation tokens (HS256 JWT), issued per installation, grant
//     access only to routes of that installation.
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrMissingCredentials is returned when a request carries no credential.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrInvalidCredentials is returned for an unknown key or a bad token.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden is returned when a token belongs to another installation.
	ErrForbidden = errors.New("token does not grant access to this installation")

	// ErrTokensDisabled is returned by IssueToken when no secret is configured.
	ErrTokensDisabled = errors.New("installation tokens are not configured")
)

// AuthConfig configures Authenticator.
type AuthConfig struct {
	// APIKeyHeader - header carrying the admin API key (default "X-API-Key").
	APIKeyHeader string

	// APIKeyHashes - bcrypt hashes of accepted admin keys.
	APIKeyHashes []string

	// TokenSecret signs installation tokens; empty disables them.
	TokenSecret string
	TokenTTL    time.Duration
	TokenIssuer string
}

// Principal describes an authenticated caller.
type Principal struct {
	// Admin is true for API key callers.
	Admin bool

	// InstallationID is the token subject; empty for admins.
	InstallationID string
}

// CanAccess reports whether the principal may act on installationID.
func (p Principal) CanAccess(installationID string) bool {
	return p.Admin || (p.InstallationID != "" && p.InstallationID == installationID)
}

// InstallationClaims are the claims of an installation token.
type InstallationClaims struct {
	jwt.RegisteredClaims
}

// Authenticator verifies API keys and installation tokens.
type Authenticator struct {
	header string
	hashes [][]byte
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time

	// verified caches digests of keys that already passed bcrypt.
	mu       sync.RWMutex
	verified map[[sha256.Size]byte]struct{}
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(cfg AuthConfig) *Authenticator {
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = "X-API-Key"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 30 * 24 * time.Hour
	}

	hashes := make([][]byte, 0, len(cfg.APIKeyHashes))
	for _, h := range cfg.APIKeyHashes {
		if h = strings.TrimSpace(h); h != "" {
			hashes = append(hashes, []byte(h))
		}
	}

	return &Authenticator{
		header:   cfg.APIKeyHeader,
		hashes:   hashes,
		secret:   []byte(cfg.TokenSecret),
		ttl:      cfg.TokenTTL,
		issuer:   cfg.TokenIssuer,
		now:      time.Now,
		verified: make(map[[sha256.Size]byte]struct{}),
	}
}

// Enabled reports whether any credential is configured. A disabled
// authenticator lets every request through.
func (a *Authenticator) Enabled() bool {
	return a != nil && (len(a.hashes) > 0 || len(a.secret) > 0)
}

// ─────────────────────────────────────────────────────────────────────────────
// API keys
// ─────────────────────────────────────────────────────────────────────────────

// ValidAPIKey checks key against the configured bcrypt hashes.
func (a *Authenticator) ValidAPIKey(key string) bool {
	if key == "" || len(a.hashes) == 0 {
		return false
	}

	digest := sha256.Sum256([]byte(key))
	a.mu.RLock()
	_, ok := a.verified[digest]
	a.mu.RUnlock()
	if ok {
		return true
	}

	for _, h := range a.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
			a.mu.Lock()
			a.verified[digest] = struct{}{}
			a.mu.Unlock()
			return true
		}
	}
	return false
}

// HashAPIKey returns a bcrypt hash suitable for AuthConfig.APIKeyHashes.
func HashAPIKey(key string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	return string(b), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Installation tokens
// ─────────────────────────────────────────────────────────────────────────────

// IssueToken signs a token for installationID and returns it with its expiry.
func (a *Authenticator) IssueToken(installationID string) (string, time.Time, error) {
	if len(a.secret) == 0 {
		return "", time.Time{}, ErrTokensDisabled
	}

	now := a.now()
	exp := now.Add(a.ttl)
	claims := InstallationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   installationID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// ParseToken verifies a token and returns its installation ID.
func (a *Authenticator) ParseToken(raw string) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrInvalidCredentials
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &InstallationClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrInvalidCredentials)
	}
	return claims.Subject, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Request authentication
// ─────────────────────────────────────────────────────────────────────────────

// Authenticate extracts and verifies the credential of r.
// An API key may come in the configured header; a token comes as
// "Authorization: Bearer <token>". A bearer value that is a valid API key
// is accepted too.
func (a *Authenticator) Authenticate(r *http.Request) (Principal, error) {
	if key := r.Header.Get(a.header); key != "" {
		if a.ValidAPIKey(key) {
			return Principal{Admin: true}, nil
		}
		return Principal{}, ErrInvalidCredentials
	}

	bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	bearer = strings.TrimSpace(bearer)
	if !ok || bearer == "" {
		return Principal{}, ErrMissingCredentials
	}

	if id, err := a.ParseToken(bearer); err == nil {
		return Principal{InstallationID: id}, nil
	}
	if a.ValidAPIKey(bearer) {
		return Principal{Admin: true}, nil
	}
	return Principal{}, ErrInvalidCredentials
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by the auth middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

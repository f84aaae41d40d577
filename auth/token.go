package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrMissingToken is returned when no bearer token is present.
	ErrMissingToken = errors.New("auth: missing bearer token")

	// ErrInvalidToken is returned for malformed, expired or badly signed
	// tokens, and for tokens whose role claim is unknown.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Principal is the authenticated caller.
type Principal struct {
	Subject string
	Role    Role
}

// Can reports whether the principal's role holds c.
func (p *Principal) Can(c Capability) bool { return p != nil && Can(p.Role, c) }

// Claims is the JWT body: the standard registered claims plus a numeric role.
// Role is a pointer so a token without the claim is told apart from admin (0).
type Claims struct {
	Role *int `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// AuthenticatorOption configures an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithIssuer requires (and, when signing, sets) the iss claim.
func WithIssuer(iss string) AuthenticatorOption { return func(a *Authenticator) { a.issuer = iss } }

// WithNow overrides the clock used for signing and expiry checks.
func WithNow(now func() time.Time) AuthenticatorOption { return func(a *Authenticator) { a.now = now } }

// NewAuthenticator returns an Authenticator for the shared secret.
func NewAuthenticator(secret []byte, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sign mints a token for subject with role, valid for ttl.
func (a *Authenticator) Sign(subject string, role Role, ttl time.Duration) (string, error) {
	now := a.now()
	r := int(role)
	claims := Claims{
		Role: &r,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return s, nil
}

// Verify parses and validates a raw token.
func (a *Authenticator) Verify(raw string) (*Principal, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}
	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(a.now()) {
		return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
	}
	if a.issuer != "" && claims.Issuer != a.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.Role == nil {
		return nil, fmt.Errorf("%w: missing role claim", ErrInvalidToken)
	}
	role, err := ParseRole(*claims.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return &Principal{Subject: claims.Subject, Role: role}, nil
}

// VerifyHeader extracts the token from an "Authorization: Bearer <token>"
// header value and verifies it.
func (a *Authenticator) VerifyHeader(header string) (*Principal, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, fmt.Errorf("%w: expected bearer scheme", ErrInvalidToken)
	}
	return a.Verify(strings.TrimSpace(token))
}

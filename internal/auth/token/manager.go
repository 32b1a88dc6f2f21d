// Package token signs and verifies the opaque subscription tokens that
// identify a subscriber in the delivery URL.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Manager issues and verifies subscription JWTs.
type Manager struct {
	method jwt.SigningMethod
	secret []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
}

// Options configures the token manager. A TTL of zero issues tokens
// without an expiry, matching long-lived subscription links.
type Options struct {
	SigningKey []byte
	Issuer     string
	TTL        time.Duration
	Leeway     time.Duration
}

// Claims carries the standard JWT claims; Subject holds the username.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type,omitempty"`
}

var (
	// ErrInvalidToken indicates the token failed parsing or validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates the token is past its expiry plus leeway.
	ErrExpiredToken = errors.New("token expired")
)

const subscriptionTokenType = "subscription"

// NewManager assembles the manager; signing is always HS256.
func NewManager(opts Options) (*Manager, error) {
	if len(opts.SigningKey) == 0 {
		return nil, errors.New("signing key is required")
	}
	leeway := opts.Leeway
	if leeway < 0 {
		leeway = 0
	}
	return &Manager{
		method: jwt.SigningMethodHS256,
		secret: append([]byte(nil), opts.SigningKey...),
		issuer: strings.TrimSpace(opts.Issuer),
		ttl:    opts.TTL,
		leeway: leeway,
	}, nil
}

// Issue signs a subscription token for the given username.
func (m *Manager) Issue(username string) (string, error) {
	if strings.TrimSpace(username) == "" {
		return "", errors.New("username is required")
	}

	now := time.Now().UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   m.issuer,
			Subject:  username,
			IssuedAt: jwt.NewNumericDate(now),
		},
		TokenType: subscriptionTokenType,
	}
	if m.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.ttl))
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a subscription token and returns the username it names.
func (m *Manager) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{m.method.Alg()}))
	parsed, err := parser.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}
	if !parsed.Valid {
		return "", ErrInvalidToken
	}
	if err := m.validateClaims(claims); err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (m *Manager) validateClaims(claims *Claims) error {
	now := time.Now().UTC()
	if claims.ExpiresAt != nil && now.After(claims.ExpiresAt.Add(m.leeway)) {
		return ErrExpiredToken
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(now.Add(m.leeway)) {
		return ErrInvalidToken
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return ErrInvalidToken
	}
	if claims.TokenType != subscriptionTokenType {
		return ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return ErrInvalidToken
	}
	return nil
}

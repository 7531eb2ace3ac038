// Package auth mints and verifies the signed access tokens handed out next
// to refresh tokens. Minting is pure: no I/O and no shared mutable state.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the fixed claim schema of an access token. The subject lives in
// RegisteredClaims.Subject and the unique token id in RegisteredClaims.ID.
type Claims struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the token grants role.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// MinterConfig is injected at construction and never read from ambient state.
type MinterConfig struct {
	SigningKey []byte
	Issuer     string
	Audience   string
	Lifetime   time.Duration
}

// Minter signs access tokens with HMAC-SHA-256.
type Minter struct {
	config MinterConfig
}

// NewMinter validates cfg. A missing key is a *common.ConfigurationError,
// which callers treat as fatal at startup.
func NewMinter(cfg MinterConfig) (*Minter, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, &common.ConfigurationError{Option: "signing_key", Reason: "must not be empty"}
	}
	if cfg.Lifetime <= 0 {
		return nil, &common.ConfigurationError{Option: "access_token_lifetime_minutes", Reason: "must be positive"}
	}
	cfg.SigningKey = slices.Clone(cfg.SigningKey)
	return &Minter{config: cfg}, nil
}

// Lifetime is the validity window of every minted token.
func (m *Minter) Lifetime() time.Duration {
	return m.config.Lifetime
}

// Mint builds and signs the claim set for one subject. Roles are de-duplicated
// keeping their order; an empty role set is allowed.
func (m *Minter) Mint(subjectID, displayName string, roles []string, now time.Time) (string, error) {
	if subjectID == "" || displayName == "" {
		return "", fmt.Errorf("%w: subject and display name are required", common.ErrorValidation)
	}

	now = now.UTC()
	claims := Claims{
		Name:  displayName,
		Roles: uniqueRoles(roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.Lifetime)),
			ID:        uuid.NewString(),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.config.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, algorithm, issuer, audience and validity window
// against now. Expired tokens yield common.ErrTokenExpired, everything else
// common.ErrInvalidToken.
func (m *Minter) Parse(tokenString string, now time.Time) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	claims := &Claims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.config.SigningKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

func uniqueRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r != "" && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

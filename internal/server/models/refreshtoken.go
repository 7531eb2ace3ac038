package models

import "time"

// RefreshToken is one outstanding or historical refresh credential.
// Only the SHA-256 digest of the secret is stored; the plain Secret is set
// on a freshly issued token and never loaded back from the store.
type RefreshToken struct {
	ID          string
	UserID      string
	TokenHash   string
	Secret      string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
	CreatedByIP string
	RevokedByIP *string
	ReplacedBy  *string
}

// IsExpired holds from the instant now reaches ExpiresAt.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsExpired(now) && !t.IsRevoked()
}

// WasRotated tells a token superseded by rotation apart from one revoked
// explicitly.
func (t *RefreshToken) WasRotated() bool {
	return t.ReplacedBy != nil
}

// TokenPair is what a successful login or refresh hands back to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

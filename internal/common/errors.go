// Package common defines shared constants and sentinel errors used across
// the gophauth server and client. Callers should use errors.Is to match these
// values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// ErrConfiguration is fatal and only ever returned at startup.
	ErrConfiguration = errors.New("configuration error")

	// Token lifecycle errors. All of them are reported to clients as
	// ErrorUnauthorized without further detail.
	ErrInvalidCredential             = errors.New("invalid credential")
	ErrInvalidOrInactiveRefreshToken = errors.New("invalid or inactive refresh token")
	ErrConcurrentRotationLost        = fmt.Errorf("concurrent rotation lost: %w", ErrInvalidOrInactiveRefreshToken)
	ErrInvalidToken                  = errors.New("invalid token")
	ErrTokenExpired                  = errors.New("token expired")

	// ErrStoreUnavailable marks transient persistence failures (timeouts,
	// dropped connections). The engine never retries on it.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrRateLimited = errors.New("rate limited")
)

// ConfigurationError reports an invalid or missing configuration option.
type ConfigurationError struct {
	Option string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Option, e.Reason)
}

// Unwrap makes errors.Is(err, ErrConfiguration) hold.
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// IsUnauthorized reports whether err belongs to the class of failures that
// clients only ever see as "unauthorized".
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrorUnauthorized) ||
		errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrInvalidOrInactiveRefreshToken) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenExpired)
}

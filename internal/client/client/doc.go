// Package client contains the client-side building blocks of the gophauth CLI.
//
// # Overview
//
//  1. GRPCClient talks to gophauth.v1.AuthService. It keeps the current token
//     pair, attaches the access token to protected calls and, when such a call
//     comes back Unauthenticated, rotates the refresh token once and retries.
//  2. Session keeps the token pair between CLI invocations in a local SQLite
//     database bootstrapped by InitDatabase and RunMigrations.
//
// # Errors
//
// Transport failures are mapped to ErrUnavailable, ErrUnauthorized,
// ErrRateLimited, ErrInvalidInput and ErrAlreadyExists so callers can match
// them with errors.Is. ErrNotLoggedIn is returned when a call needs tokens
// the client does not have.
package client

// Package session persists the CLI's login state (tokens and the login they
// belong to) as key/value rows in the local SQLite database.
package session

import (
	"context"
)

type Repository interface {
	// Get returns ("", false, nil) when the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

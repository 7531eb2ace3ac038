package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// Repositories is the set of repositories bound to one connection or
// transaction.
type Repositories interface {
	Users() users.Repository
	RefreshTokens() refreshtokens.Repository
}

// RepositoryManager owns the store. WithTx runs fn as one all-or-nothing
// unit: fn's error, a panic or a cancelled context roll everything back.
type RepositoryManager interface {
	Repositories
	RunMigrations(ctx context.Context) error
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Close() error
}

package repomanager

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// MemoryRepositoryManager keeps all data in process memory. Transactions are
// serialized by a single lock and rolled back from a snapshot.
type MemoryRepositoryManager struct {
	mu     sync.Mutex
	users  *users.MemoryTable
	tokens *refreshtokens.MemoryTable
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:  users.NewMemoryTable(),
		tokens: refreshtokens.NewMemoryTable(),
	}
}

type memoryRepos struct {
	mu     sync.Locker
	users  *users.MemoryTable
	tokens *refreshtokens.MemoryTable
}

func (r memoryRepos) Users() users.Repository {
	return users.NewMemoryRepository(r.users, r.mu)
}

func (r memoryRepos) RefreshTokens() refreshtokens.Repository {
	return refreshtokens.NewMemoryRepository(r.tokens, r.mu)
}

func (m *MemoryRepositoryManager) Users() users.Repository {
	return memoryRepos{mu: &m.mu, users: m.users, tokens: m.tokens}.Users()
}

func (m *MemoryRepositoryManager) RefreshTokens() refreshtokens.Repository {
	return memoryRepos{mu: &m.mu, users: m.users, tokens: m.tokens}.RefreshTokens()
}

// WithTx holds the store lock for the whole of fn. Repositories handed to fn
// must not be used after it returns.
func (m *MemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return dbx.Classify(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	usersSnapshot := m.users.Clone()
	tokensSnapshot := m.tokens.Clone()
	rollback := func() {
		m.users.Restore(usersSnapshot)
		m.tokens.Restore(tokensSnapshot)
	}

	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
		if err == nil {
			err = dbx.Classify(ctx.Err())
		}
		if err != nil {
			rollback()
		}
	}()

	return fn(ctx, memoryRepos{mu: nopLocker{}, users: m.users, tokens: m.tokens})
}

func (m *MemoryRepositoryManager) RunMigrations(ctx context.Context) error {
	return nil
}

func (m *MemoryRepositoryManager) Close() error {
	return nil
}

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

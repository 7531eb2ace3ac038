package users

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
)

// MemoryTable holds user rows for the in-memory store. Guarding it is up to
// the owner.
type MemoryTable struct {
	byID    map[string]models.User
	byLogin map[string]string
	roles   map[string][]string
}

func NewMemoryTable() *MemoryTable {
	return &MemoryTable{
		byID:    make(map[string]models.User),
		byLogin: make(map[string]string),
		roles:   make(map[string][]string),
	}
}

// Restore replaces the contents of t with snapshot.
func (t *MemoryTable) Restore(snapshot *MemoryTable) {
	*t = *snapshot
}

// Clone returns an independent copy used as a rollback snapshot.
func (t *MemoryTable) Clone() *MemoryTable {
	roles := make(map[string][]string, len(t.roles))
	for id, r := range t.roles {
		roles[id] = slices.Clone(r)
	}
	return &MemoryTable{byID: maps.Clone(t.byID), byLogin: maps.Clone(t.byLogin), roles: roles}
}

type MemoryRepository struct {
	mu    sync.Locker
	table *MemoryTable
	now   func() time.Time
}

func NewMemoryRepository(table *MemoryTable, mu sync.Locker) *MemoryRepository {
	return &MemoryRepository{mu: mu, table: table, now: func() time.Time { return time.Now().UTC() }}
}

func (r *MemoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.table.byLogin[user.UserName]; ok {
		return nil, common.ErrorAlreadyExists
	}
	user.ID = uuid.NewString()
	user.CreatedAt = r.now()

	row := *user
	row.Roles = nil
	row.PasswordHash = slices.Clone(user.PasswordHash)
	r.table.byID[row.ID] = row
	r.table.byLogin[row.UserName] = row.ID
	return user, nil
}

func (r *MemoryRepository) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.table.byLogin[login]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.load(id), nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.table.byID[id]; !ok {
		return nil, common.ErrorNotFound
	}
	return r.load(id), nil
}

func (r *MemoryRepository) Roles(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rolesOf(userID), nil
}

func (r *MemoryRepository) AddRole(ctx context.Context, userID, role string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.table.byID[userID]; !ok {
		return common.ErrorNotFound
	}
	roles := r.table.roles[userID]
	if slices.Contains(roles, role) {
		return nil
	}
	roles = append(slices.Clone(roles), role)
	slices.Sort(roles)
	r.table.roles[userID] = roles
	return nil
}

func (r *MemoryRepository) load(id string) *models.User {
	row := r.table.byID[id]
	row.PasswordHash = slices.Clone(row.PasswordHash)
	row.Roles = r.rolesOf(id)
	return &row
}

func (r *MemoryRepository) rolesOf(id string) []string {
	roles := slices.Clone(r.table.roles[id])
	if roles == nil {
		roles = []string{}
	}
	return roles
}

package refreshtokens

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// MemoryTable holds refresh-token rows for the in-memory store. It is not
// synchronized; the owner passes the lock that guards it.
type MemoryTable struct {
	byID   map[string]models.RefreshToken
	byHash map[string]string
}

func NewMemoryTable() *MemoryTable {
	return &MemoryTable{
		byID:   make(map[string]models.RefreshToken),
		byHash: make(map[string]string),
	}
}

// Restore replaces the contents of t with snapshot.
func (t *MemoryTable) Restore(snapshot *MemoryTable) {
	*t = *snapshot
}

// Clone returns an independent copy used as a rollback snapshot.
func (t *MemoryTable) Clone() *MemoryTable {
	return &MemoryTable{byID: maps.Clone(t.byID), byHash: maps.Clone(t.byHash)}
}

// MemoryRepository implements Repository over a MemoryTable.
type MemoryRepository struct {
	mu    sync.Locker
	table *MemoryTable
}

// NewMemoryRepository binds a repository to table, taking mu around every call.
func NewMemoryRepository(table *MemoryTable, mu sync.Locker) *MemoryRepository {
	return &MemoryRepository{mu: mu, table: table}
}

func (r *MemoryRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.table.byHash[token.TokenHash]; ok {
		return common.ErrorAlreadyExists
	}
	if _, ok := r.table.byID[token.ID]; ok {
		return common.ErrorAlreadyExists
	}
	row := *token
	row.Secret = ""
	r.table.byID[row.ID] = row
	r.table.byHash[row.TokenHash] = row.ID
	return nil
}

func (r *MemoryRepository) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.table.byHash[tokenHash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	row := r.table.byID[id]
	return &row, nil
}

func (r *MemoryRepository) Revoke(ctx context.Context, id string, at time.Time, ip string, replacedBy *string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.table.byID[id]
	if !ok || !row.IsActive(at) {
		return false, nil
	}
	revoke(&row, at, ip)
	if replacedBy != nil {
		next := *replacedBy
		row.ReplacedBy = &next
	}
	r.table.byID[id] = row
	return true, nil
}

func (r *MemoryRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time, ip string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, row := range r.table.byID {
		if row.UserID != userID || !row.IsActive(at) {
			continue
		}
		revoke(&row, at, ip)
		r.table.byID[id] = row
		n++
	}
	return n, nil
}

func (r *MemoryRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.RefreshToken
	for _, row := range r.table.byID {
		if row.UserID == userID && row.IsActive(now) {
			row := row
			result = append(result, &row)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func revoke(row *models.RefreshToken, at time.Time, ip string) {
	at = at.UTC()
	row.RevokedAt = &at
	row.RevokedByIP = &ip
}

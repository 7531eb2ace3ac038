package refreshtokens

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryRepo() (*MemoryRepository, *MemoryTable) {
	table := NewMemoryTable()
	return NewMemoryRepository(table, &sync.Mutex{}), table
}

func seed(t *testing.T, repo *MemoryRepository, id, user, hash string, created time.Time) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &models.RefreshToken{
		ID: id, UserID: user, TokenHash: hash, Secret: "s-" + id,
		CreatedAt: created, ExpiresAt: created.Add(time.Hour), CreatedByIP: "ip",
	}))
}

func TestMemory_CreateAndFind(t *testing.T) {
	repo, _ := newMemoryRepo()
	ctx := context.Background()
	seed(t, repo, "t1", "u1", "h1", t0)

	got, err := repo.FindByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)
	assert.Empty(t, got.Secret, "plain secret must not be stored")

	_, err = repo.FindByHash(ctx, "h2")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	err = repo.Create(ctx, &models.RefreshToken{ID: "t9", TokenHash: "h1"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestMemory_ReturnedRowsAreCopies(t *testing.T) {
	repo, _ := newMemoryRepo()
	seed(t, repo, "t1", "u1", "h1", t0)

	got, err := repo.FindByHash(context.Background(), "h1")
	require.NoError(t, err)
	got.UserID = "mallory"

	again, err := repo.FindByHash(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, "u1", again.UserID)
}

func TestMemory_RevokeIsConditional(t *testing.T) {
	repo, _ := newMemoryRepo()
	ctx := context.Background()
	seed(t, repo, "t1", "u1", "h1", t0)

	next := "t2"
	ok, err := repo.Revoke(ctx, "t1", t0.Add(time.Minute), "10.0.0.9", &next)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Revoke(ctx, "t1", t0.Add(2*time.Minute), "10.0.0.10", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindByHash(ctx, "h1")
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	assert.Equal(t, t0.Add(time.Minute), *got.RevokedAt)
	assert.Equal(t, "10.0.0.9", *got.RevokedByIP)
	assert.Equal(t, "t2", *got.ReplacedBy)

	// expired tokens are not revocable either
	seed(t, repo, "t3", "u1", "h3", t0)
	ok, err = repo.Revoke(ctx, "t3", t0.Add(time.Hour), "ip", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Revoke(ctx, "missing", t0, "ip", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_RevokeAllAndList(t *testing.T) {
	repo, _ := newMemoryRepo()
	ctx := context.Background()
	seed(t, repo, "t1", "u1", "h1", t0)
	seed(t, repo, "t2", "u1", "h2", t0.Add(time.Second))
	seed(t, repo, "t3", "u2", "h3", t0)

	list, err := repo.ListActiveByUser(ctx, "u1", t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "t2", list[0].ID)

	n, err := repo.RevokeAllForUser(ctx, "u1", t0.Add(time.Minute), "ip")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	list, err = repo.ListActiveByUser(ctx, "u1", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = repo.ListActiveByUser(ctx, "u2", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemory_CloneIsIndependent(t *testing.T) {
	repo, table := newMemoryRepo()
	seed(t, repo, "t1", "u1", "h1", t0)

	snapshot := table.Clone()
	seed(t, repo, "t2", "u1", "h2", t0)

	other := NewMemoryRepository(snapshot, &sync.Mutex{})
	_, err := other.FindByHash(context.Background(), "h2")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemory_CancelledContext(t *testing.T) {
	repo, _ := newMemoryRepo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.FindByHash(ctx, "h1")
	assert.ErrorIs(t, err, context.Canceled)
}

package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository persists refresh-token records. Records are never deleted;
// revocation is a one-way conditional update.
type Repository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	// Revoke marks an active token revoked. It reports false, without
	// mutating anything, when the token is already revoked or expired at at.
	Revoke(ctx context.Context, id string, at time.Time, ip string, replacedBy *string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string, at time.Time, ip string) (int64, error)
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error)
}

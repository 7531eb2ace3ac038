// Package refreshtokens stores refresh-token records, either in PostgreSQL
// or in process memory.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, user_id, token_hash, created_at, expires_at, revoked_at,
		       created_by_ip, revoked_by_ip, replaced_by`

// Create inserts a new record. A duplicate token hash yields
// common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, created_at, expires_at, created_by_ip)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.CreatedAt, token.ExpiresAt, token.CreatedByIP)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("error performing sql request: %w", dbx.Classify(err))
	}
	return nil
}

// FindByHash returns the record for a secret digest or common.ErrorNotFound.
func (r *PostgresRepository) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	token, err := scanToken(r.db.QueryRowContext(ctx, query, tokenHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return token, nil
}

// Revoke is the single-winner guard of rotation: the WHERE clause only
// matches a token that is still active at at.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time, ip string, replacedBy *string) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2, revoked_by_ip = $3, replaced_by = $4
		WHERE id = $1 AND revoked_at IS NULL AND expires_at > $2
	`
	res, err := r.db.ExecContext(ctx, query, id, at, ip, replacedBy)
	if err != nil {
		return false, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return n == 1, nil
}

// RevokeAllForUser revokes every token of userID still active at at.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time, ip string) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2, revoked_by_ip = $3
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2
	`
	res, err := r.db.ExecContext(ctx, query, userID, at, ip)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return n, nil
}

// ListActiveByUser returns the tokens of userID active at now, newest first.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	defer rows.Close()

	var result []*models.RefreshToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
		}
		result = append(result, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(s scanner) (*models.RefreshToken, error) {
	var (
		t           models.RefreshToken
		revokedAt   sql.NullTime
		revokedByIP sql.NullString
		replacedBy  sql.NullString
	)
	err := s.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &revokedAt,
		&t.CreatedByIP, &revokedByIP, &replacedBy)
	if err != nil {
		return nil, err
	}

	t.CreatedAt = t.CreatedAt.UTC()
	t.ExpiresAt = t.ExpiresAt.UTC()
	if revokedAt.Valid {
		at := revokedAt.Time.UTC()
		t.RevokedAt = &at
	}
	if revokedByIP.Valid {
		t.RevokedByIP = &revokedByIP.String
	}
	if replacedBy.Valid {
		t.ReplacedBy = &replacedBy.String
	}
	return &t, nil
}

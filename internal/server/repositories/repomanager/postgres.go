// Package repomanager provides RepositoryManager implementations for
// PostgreSQL and process memory, wiring repository constructors, transactions
// and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/migrations"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories bound either
// to the pool or to a transaction.
type PostgresRepositoryManager struct {
	db *sql.DB
}

type postgresRepos struct {
	db dbx.DBTX
}

func (r postgresRepos) Users() users.Repository {
	return users.NewPostgresRepository(r.db)
}

func (r postgresRepos) RefreshTokens() refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(r.db)
}

// Users returns a users.Repository bound to the pool.
func (m *PostgresRepositoryManager) Users() users.Repository {
	return postgresRepos{db: m.db}.Users()
}

// RefreshTokens returns a refreshtokens.Repository bound to the pool.
func (m *PostgresRepositoryManager) RefreshTokens() refreshtokens.Repository {
	return postgresRepos{db: m.db}.RefreshTokens()
}

// WithTx runs fn inside a database transaction.
func (m *PostgresRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, postgresRepos{db: tx})
	})
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the managed connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager
// over an already opened pool.
func NewPostgresRepositoryManager(db *sql.DB) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{db: db}
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// OpenPostgres opens a pgx-backed pool for dsn and checks connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepositoryManager, error) {
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", dbx.Classify(err))
	}
	return NewPostgresRepositoryManager(db), nil
}

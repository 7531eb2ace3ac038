package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	insertQ  = `(?s)^INSERT\s+INTO\s+users\s*\(username,\s*display_name,\s*password_hash\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*RETURNING\s+id,\s*created_at\s*$`
	byLoginQ = `(?s)^SELECT\s+id,\s*username,\s*display_name,\s*password_hash,\s*created_at\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1\s*$`
	byIDQ    = `(?s)^SELECT\s+id,\s*username,\s*display_name,\s*password_hash,\s*created_at\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s*$`
	rolesQ   = `(?s)^SELECT\s+role\s+FROM\s+user_roles\s+WHERE\s+user_id\s*=\s*\$1\s+ORDER\s+BY\s+role\s*$`
)

var created = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "created_at"}).AddRow("42", created)
	mock.ExpectQuery(insertQ).
		WithArgs("alice", "Alice", []byte("hash")).
		WillReturnRows(rows)

	u := &models.User{UserName: "alice", DisplayName: "Alice", PasswordHash: []byte("hash")}
	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "42" || got.UserName != "alice" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &models.User{UserName: "alice"})
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("expected ErrorAlreadyExists, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).
		WithArgs("alice", "Alice", []byte("hash")).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{UserName: "alice", DisplayName: "Alice", PasswordHash: []byte("hash")})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetUserByLogin_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byLoginQ).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "display_name", "password_hash", "created_at"}).
			AddRow("u-1", "alice", "Alice", []byte("hash"), created))
	mock.ExpectQuery(rolesQ).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("Admin").AddRow("User"))

	got, err := repo.GetUserByLogin(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUserByLogin error: %v", err)
	}
	if got.ID != "u-1" || got.DisplayName != "Alice" {
		t.Fatalf("unexpected user: %+v", got)
	}
	if len(got.Roles) != 2 || got.Roles[0] != "Admin" || got.Roles[1] != "User" {
		t.Fatalf("unexpected roles: %v", got.Roles)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetUserByLogin_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byLoginQ).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUserByLogin(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGetByID_RolesError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byIDQ).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "display_name", "password_hash", "created_at"}).
			AddRow("u-1", "alice", "Alice", []byte("hash"), created))
	mock.ExpectQuery(rolesQ).
		WithArgs("u-1").
		WillReturnError(context.DeadlineExceeded)

	_, err := repo.GetByID(context.Background(), "u-1")
	if !errors.Is(err, common.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRoles_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(rolesQ).WithArgs("u-1").WillReturnRows(sqlmock.NewRows([]string{"role"}))

	roles, err := repo.Roles(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Roles error: %v", err)
	}
	if roles == nil || len(roles) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", roles)
	}
}

func TestAddRole(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+user_roles\s*\(user_id,\s*role\)\s*VALUES\s*\(\$1,\s*\$2\)\s*ON\s+CONFLICT\s+DO\s+NOTHING\s*$`
	mock.ExpectExec(q).WithArgs("u-1", "Admin").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("u-1", "Admin").WillReturnError(errors.New("boom"))

	if err := repo.AddRole(context.Background(), "u-1", "Admin"); err != nil {
		t.Fatalf("AddRole error: %v", err)
	}
	if err := repo.AddRole(context.Background(), "u-1", "Admin"); err == nil {
		t.Fatal("expected error")
	}
}

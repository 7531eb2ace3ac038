package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/client/repositories/session"
)

// ErrUsage is returned for an unknown or missing command.
var ErrUsage = errors.New("usage: gophauth-cli [-a addr] [-s session.db] [-t seconds] <register|login|refresh|revoke|whoami> [login]")

type authClient interface {
	Register(ctx context.Context, login, displayName, password string) (string, error)
	Login(ctx context.Context, login, password string) (client.Tokens, error)
	Refresh(ctx context.Context) (client.Tokens, error)
	Revoke(ctx context.Context) error
	WhoAmI(ctx context.Context) (*client.Identity, error)
	Close() error
}

type sessionStore interface {
	Load(ctx context.Context) (string, client.Tokens, error)
	Save(ctx context.Context, login string, t client.Tokens) error
	Clear(ctx context.Context) error
}

type App struct {
	config  *config.Config
	client  authClient
	session sessionStore
	db      *sql.DB
	reader  *bufio.Reader
	out     io.Writer
}

// NewApp opens the session database and connects a client seeded with the
// stored tokens. Tokens rotated behind the scenes are written back.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	db, err := client.InitDatabase(ctx, c.SessionFile)
	if err != nil {
		return nil, fmt.Errorf("error initializing session database: %w", err)
	}

	s := client.NewSession(session.NewSQLiteRepository(db))
	_, tokens, err := s.Load(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	persist := func(t client.Tokens) {
		ctx, cancel := context.WithTimeout(context.Background(), c.RequestTimeout)
		defer cancel()
		if err := s.Save(ctx, "", t); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not store refreshed tokens: %v\n", err)
		}
	}

	apiClient, err := client.NewGRPCClient(c.ServerEndpointAddr, client.WithTokens(tokens), client.WithRefreshListener(persist))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &App{
		config:  c,
		client:  apiClient,
		session: s,
		db:      db,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}

func (a *App) Close() error {
	err := a.client.Close()
	if a.db != nil {
		err = errors.Join(err, a.db.Close())
	}
	return err
}

// Run executes the command named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
	defer cancel()

	var login string
	if len(args) > 1 {
		login = strings.TrimSpace(args[1])
	}

	switch args[0] {
	case "register":
		return a.Register(ctx, login)
	case "login":
		return a.Login(ctx, login)
	case "refresh":
		return a.Refresh(ctx)
	case "revoke", "logout":
		return a.Revoke(ctx)
	case "whoami":
		return a.WhoAmI(ctx)
	default:
		return ErrUsage
	}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

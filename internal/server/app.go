// Package server wires the gophauth components together: store, identity
// provider, access-token minter, refresh-token engine, login limiter and the
// gRPC and HTTP transports, and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/audit"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/identity"
	"github.com/dmitrijs2005/gophauth/internal/server/ratelimit"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/tokens"
	"github.com/dmitrijs2005/gophauth/internal/timex"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

// logOutput is where the JSON log lines go.
var logOutput io.Writer = os.Stdout

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    repomanager.RepositoryManager
	redis    *redis.Client
	identity *identity.Provider
	minter   *auth.Minter
	engine   *tokens.Engine
	clock    timex.Clock
}

// NewApp validates c and builds every component. Configuration problems are
// returned as *common.ConfigurationError before anything is opened.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewJSON(logOutput, c.LogLevel)
	clock := timex.SystemClock{}

	minter, err := auth.NewMinter(auth.MinterConfig{
		SigningKey: []byte(c.SigningKey),
		Issuer:     c.Issuer,
		Audience:   c.Audience,
		Lifetime:   c.AccessTokenLifetime,
	})
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	idp, err := identity.NewProvider(store, identity.WithLogger(logger))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	opts := []tokens.Option{
		tokens.WithClock(clock),
		tokens.WithLogger(logger),
		tokens.WithAuditSink(audit.NewLoggerSink(logger)),
	}

	var rdb *redis.Client
	if c.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		opts = append(opts, tokens.WithLimiter(ratelimit.New(rdb, ratelimit.Config{
			MaxAttempts: c.LoginMaxAttempts,
			Window:      c.LoginWindow,
		})))
	}

	engine, err := tokens.NewEngine(tokens.Config{
		RefreshTokenLifetime: c.RefreshTokenLifetime,
		StoreTimeout:         c.StoreTimeout,
		ReuseGrace:           c.ReuseGrace,
	}, store, idp, minter, opts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &App{
		config:   c,
		logger:   logger,
		store:    store,
		redis:    rdb,
		identity: idp,
		minter:   minter,
		engine:   engine,
		clock:    clock,
	}, nil
}

func openStore(ctx context.Context, c *config.Config, logger logging.Logger) (repomanager.RepositoryManager, error) {
	if c.StoreKind == config.StoreKindMemory {
		logger.Warn(ctx, "using in-memory store, data is lost on restart")
		return repomanager.NewMemoryRepositoryManager(), nil
	}

	openCtx, cancel := context.WithTimeout(ctx, c.StoreTimeout)
	defer cancel()

	store, err := repomanager.OpenPostgres(openCtx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := store.RunMigrations(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}
	return store, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.engine, app.identity, app.minter, app.clock)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := httpapi.NewAuthHandler(app.engine, app.identity, app.minter, app.clock, app.logger, app.config.CookieSecure)
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, h, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves both transports until ctx is cancelled, a shutdown signal
// arrives or one of the servers fails, then releases the store.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.redis != nil {
		_ = app.redis.Close()
	}
	if err := app.store.Close(); err != nil {
		app.logger.Error(context.Background(), "closing store", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}

package server

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.StoreKind = config.StoreKindMemory
	c.SigningKey = "test-signing-key"
	return c
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := logOutput
	logOutput = buf
	t.Cleanup(func() { logOutput = prev })
	return buf
}

func TestNewApp_ConfigurationErrors(t *testing.T) {
	captureLogs(t)

	tests := []struct {
		name   string
		mutate func(c *config.Config)
		option string
	}{
		{"no signing key", func(c *config.Config) { c.SigningKey = "" }, "signing_key"},
		{"zero access lifetime", func(c *config.Config) { c.AccessTokenLifetime = 0 }, "access_token_lifetime_minutes"},
		{"negative refresh lifetime", func(c *config.Config) { c.RefreshTokenLifetime = -time.Hour }, "refresh_token_lifetime_days"},
		{"unknown store", func(c *config.Config) { c.StoreKind = "mongo" }, "store"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig()
			tt.mutate(c)

			app, err := NewApp(context.Background(), c)
			require.Error(t, err)
			assert.Nil(t, app)

			var cfgErr *common.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.option, cfgErr.Option)
		})
	}
}

func TestNewApp_MemoryStore(t *testing.T) {
	buf := captureLogs(t)

	app, err := NewApp(context.Background(), testConfig())
	require.NoError(t, err)
	require.NotNil(t, app.engine)
	assert.Nil(t, app.redis)
	assert.Contains(t, buf.String(), "in-memory store")
}

func TestNewApp_WithRedisLimiter(t *testing.T) {
	captureLogs(t)
	mr := miniredis.RunT(t)

	c := testConfig()
	c.RedisAddr = mr.Addr()

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, app.redis)
	assert.NoError(t, app.redis.Close())
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	buf := captureLogs(t)

	app, err := NewApp(context.Background(), testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
	assert.Contains(t, buf.String(), "App stopped")
}

func TestApp_RunStopsWhenServerFails(t *testing.T) {
	captureLogs(t)

	c := testConfig()
	c.EndpointAddrHTTP = "bad-address"

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		app.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop after server failure")
	}
}

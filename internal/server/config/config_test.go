package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Equal(t, StoreKindPostgres, c.StoreKind)
	assert.Empty(t, c.SigningKey)
	assert.Equal(t, "gophauth", c.Issuer)
	assert.Equal(t, "gophauth-clients", c.Audience)
	assert.Equal(t, 15*time.Minute, c.AccessTokenLifetime)
	assert.Equal(t, 7*24*time.Hour, c.RefreshTokenLifetime)
	assert.Equal(t, 5*time.Second, c.StoreTimeout)
	assert.Equal(t, 2*time.Second, c.ReuseGrace)
	assert.Equal(t, 5, c.LoginMaxAttempts)
	assert.True(t, c.CookieSecure)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin", "-env", "does-not-exist.env"}

	c := LoadConfig()
	require.NotNil(t, c)
	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, 15*time.Minute, c.AccessTokenLifetime)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var c Config
		c.LoadDefaults()
		c.SigningKey = "k"
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		option string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing signing key", mutate: func(c *Config) { c.SigningKey = "" }, option: "signing_key"},
		{name: "zero access lifetime", mutate: func(c *Config) { c.AccessTokenLifetime = 0 }, option: "access_token_lifetime_minutes"},
		{name: "negative refresh lifetime", mutate: func(c *Config) { c.RefreshTokenLifetime = -time.Hour }, option: "refresh_token_lifetime_days"},
		{name: "zero store timeout", mutate: func(c *Config) { c.StoreTimeout = 0 }, option: "store_timeout"},
		{name: "negative reuse grace", mutate: func(c *Config) { c.ReuseGrace = -time.Second }, option: "reuse_grace"},
		{name: "unknown store", mutate: func(c *Config) { c.StoreKind = "mysql" }, option: "store"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.DatabaseDSN = "" }, option: "database_dsn"},
		{name: "memory without dsn", mutate: func(c *Config) { c.StoreKind = StoreKindMemory; c.DatabaseDSN = "" }},
		{name: "throttling without budget", mutate: func(c *Config) { c.RedisAddr = "localhost:6379"; c.LoginMaxAttempts = 0 }, option: "login_max_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.option == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrConfiguration))
			var cfgErr *common.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.option, cfgErr.Option)
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseEnv(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin", "-env", filepath.Join(t.TempDir(), "absent.env")}

	t.Setenv("GOPHAUTH_SIGNING_KEY", "env-key")
	t.Setenv("GOPHAUTH_STORE", "memory")
	t.Setenv("GOPHAUTH_ACCESS_TOKEN_LIFETIME_MINUTES", "20")
	t.Setenv("GOPHAUTH_REFRESH_TOKEN_LIFETIME_DAYS", "3")
	t.Setenv("GOPHAUTH_STORE_TIMEOUT", "750ms")
	t.Setenv("GOPHAUTH_REUSE_GRACE", "3s")
	t.Setenv("GOPHAUTH_LOGIN_MAX_ATTEMPTS", "9")
	t.Setenv("GOPHAUTH_COOKIE_SECURE", "false")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, "env-key", cfg.SigningKey)
	assert.Equal(t, StoreKindMemory, cfg.StoreKind)
	assert.Equal(t, 20*time.Minute, cfg.AccessTokenLifetime)
	assert.Equal(t, 3*24*time.Hour, cfg.RefreshTokenLifetime)
	assert.Equal(t, 750*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, 3*time.Second, cfg.ReuseGrace)
	assert.Equal(t, 9, cfg.LoginMaxAttempts)
	assert.False(t, cfg.CookieSecure)
}

func Test_parseEnv_DotenvFile(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("GOPHAUTH_ISSUER=dotenv-issuer\n"), 0o600))
	os.Args = []string{"testbin", "-env", path}

	// registered so t.Setenv restores the original state afterwards
	t.Setenv("GOPHAUTH_ISSUER", "")
	require.NoError(t, os.Unsetenv("GOPHAUTH_ISSUER"))

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, "dotenv-issuer", cfg.Issuer)
}

func Test_parseEnv_BadNumberPanics(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin", "-env", filepath.Join(t.TempDir(), "absent.env")}

	t.Setenv("GOPHAUTH_ACCESS_TOKEN_LIFETIME_MINUTES", "soon")
	assert.Panics(t, func() { parseEnv(&Config{}) })
}

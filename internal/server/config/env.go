package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/joho/godotenv"
)

const envPrefix = "GOPHAUTH_"

// loadDotenv seeds the process environment from a dotenv file. Variables
// already present in the environment win. A missing file is not an error.
var loadDotenv = func(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// parseEnv overlays GOPHAUTH_* environment variables onto config.
//
// Recognised variables:
//
//	GOPHAUTH_GRPC_ADDR, GOPHAUTH_HTTP_ADDR, GOPHAUTH_STORE, GOPHAUTH_DATABASE_DSN,
//	GOPHAUTH_SIGNING_KEY, GOPHAUTH_ISSUER, GOPHAUTH_AUDIENCE,
//	GOPHAUTH_ACCESS_TOKEN_LIFETIME_MINUTES, GOPHAUTH_REFRESH_TOKEN_LIFETIME_DAYS,
//	GOPHAUTH_STORE_TIMEOUT, GOPHAUTH_REDIS_ADDR, GOPHAUTH_LOGIN_MAX_ATTEMPTS,
//	GOPHAUTH_LOGIN_WINDOW, GOPHAUTH_LOG_LEVEL, GOPHAUTH_COOKIE_SECURE
//
// Malformed numeric values panic, like malformed JSON or flags do.
func parseEnv(config *Config) {
	if err := loadDotenv(flagx.EnvFileFlag()); err != nil {
		panic(err)
	}

	envString(&config.EndpointAddrGRPC, "GRPC_ADDR")
	envString(&config.EndpointAddrHTTP, "HTTP_ADDR")
	envString(&config.StoreKind, "STORE")
	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.SigningKey, "SIGNING_KEY")
	envString(&config.Issuer, "ISSUER")
	envString(&config.Audience, "AUDIENCE")
	envUnits(&config.AccessTokenLifetime, "ACCESS_TOKEN_LIFETIME_MINUTES", time.Minute)
	envUnits(&config.RefreshTokenLifetime, "REFRESH_TOKEN_LIFETIME_DAYS", 24*time.Hour)
	envDuration(&config.StoreTimeout, "STORE_TIMEOUT")
	envDuration(&config.ReuseGrace, "REUSE_GRACE")
	envString(&config.RedisAddr, "REDIS_ADDR")
	if v, ok := os.LookupEnv(envPrefix + "LOGIN_MAX_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		config.LoginMaxAttempts = n
	}
	envDuration(&config.LoginWindow, "LOGIN_WINDOW")
	envString(&config.LogLevel, "LOG_LEVEL")
	if v, ok := os.LookupEnv(envPrefix + "COOKIE_SECURE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(err)
		}
		config.CookieSecure = b
	}
}

func envString(dst *string, name string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		*dst = v
	}
}

func envUnits(dst *time.Duration, name string, unit time.Duration) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		*dst = time.Duration(n) * unit
	}
}

func envDuration(dst *time.Duration, name string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		*dst = d
	}
}

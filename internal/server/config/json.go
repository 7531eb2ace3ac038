package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Absent keys
// leave the corresponding Config field untouched.
type JsonConfig struct {
	EndpointAddrGRPC           string          `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP           string          `json:"endpoint_addr_http"`
	StoreKind                  string          `json:"store"`
	DatabaseDSN                string          `json:"database_dsn"`
	SigningKey                 string          `json:"signing_key"`
	Issuer                     string          `json:"issuer"`
	Audience                   string          `json:"audience"`
	AccessTokenLifetimeMinutes *int            `json:"access_token_lifetime_minutes"`
	RefreshTokenLifetimeDays   *int            `json:"refresh_token_lifetime_days"`
	StoreTimeout               *timex.Duration `json:"store_timeout"`
	ReuseGrace                 *timex.Duration `json:"reuse_grace"`
	RedisAddr                  string          `json:"redis_addr"`
	LoginMaxAttempts           *int            `json:"login_max_attempts"`
	LoginWindow                *timex.Duration `json:"login_window"`
	LogLevel                   string          `json:"log_level"`
	CookieSecure               *bool           `json:"cookie_secure"`
}

// parseJson loads the file named by -c/-config, if any, and overlays it onto
// config. An unreadable file or invalid JSON panics.
func parseJson(config *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.StoreKind, c.StoreKind)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SigningKey, c.SigningKey)
	setString(&config.Issuer, c.Issuer)
	setString(&config.Audience, c.Audience)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.LogLevel, c.LogLevel)

	if c.AccessTokenLifetimeMinutes != nil {
		config.AccessTokenLifetime = time.Duration(*c.AccessTokenLifetimeMinutes) * time.Minute
	}
	if c.RefreshTokenLifetimeDays != nil {
		config.RefreshTokenLifetime = time.Duration(*c.RefreshTokenLifetimeDays) * 24 * time.Hour
	}
	if c.StoreTimeout != nil {
		config.StoreTimeout = c.StoreTimeout.Duration
	}
	if c.ReuseGrace != nil {
		config.ReuseGrace = c.ReuseGrace.Duration
	}
	if c.LoginMaxAttempts != nil {
		config.LoginMaxAttempts = *c.LoginMaxAttempts
	}
	if c.LoginWindow != nil {
		config.LoginWindow = c.LoginWindow.Duration
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

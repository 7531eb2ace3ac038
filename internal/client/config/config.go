// Package config loads runtime configuration for the gophauth CLI.
//
// Sources, in order of precedence (later wins):
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags.
//
// Supported flags
//
//	-a string   address:port of the gophauth gRPC endpoint
//	-s string   path of the local session database
//	-t int      per-request timeout (seconds)
//
// JSON durations accept either strings like "10s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "session_file": "gophauth-session.db",
//	  "request_timeout": "10s"
//	}
package config

import "time"

// Config holds runtime settings for the gophauth CLI.
type Config struct {
	ServerEndpointAddr string
	SessionFile        string
	RequestTimeout     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.SessionFile = "gophauth-session.db"
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

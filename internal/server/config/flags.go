package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-h string   HTTP bind address (e.g., ":8080")
//	-s string   store kind: postgres | memory
//	-d string   PostgreSQL DSN
//	-k string   access token signing key
//	-i string   access token issuer
//	-u string   access token audience
//	-t int      access token lifetime, minutes
//	-r int      refresh token lifetime, days
//	-redis      Redis address for login throttling
//	-l string   log level
//
// Arguments are pre-filtered with flagx.FilterArgs so the -c/-config and
// -env flags handled elsewhere do not trip this parser.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-h", "-s", "-d", "-k", "-i", "-u", "-t", "-r", "-redis", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrHTTP, "h", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.StoreKind, "s", config.StoreKind, "store kind (postgres|memory)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SigningKey, "k", config.SigningKey, "access token signing key")
	fs.StringVar(&config.Issuer, "i", config.Issuer, "access token issuer")
	fs.StringVar(&config.Audience, "u", config.Audience, "access token audience")

	accessMinutes := fs.Int("t", int(config.AccessTokenLifetime/time.Minute), "access token lifetime (in minutes)")
	refreshDays := fs.Int("r", int(config.RefreshTokenLifetime/(24*time.Hour)), "refresh token lifetime (in days)")

	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address for login throttling")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenLifetime = time.Duration(*accessMinutes) * time.Minute
		case "r":
			config.RefreshTokenLifetime = time.Duration(*refreshDays) * 24 * time.Hour
		}
	})
}

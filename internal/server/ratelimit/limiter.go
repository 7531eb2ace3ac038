// Package ratelimit throttles failed logins with fixed-window Redis counters
// keyed by login and by source IP.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps Redis failures. Callers decide whether to fail open.
var ErrUnavailable = errors.New("rate limiter unavailable")

type Config struct {
	MaxAttempts int
	Window      time.Duration
	KeyPrefix   string
}

type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

func New(client redis.UniversalClient, cfg Config) *Limiter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "gophauth"
	}
	return &Limiter{redis: client, config: cfg}
}

// Check returns common.ErrRateLimited once either the login or the IP has
// used up its failure budget for the current window.
func (l *Limiter) Check(ctx context.Context, login, ip string) error {
	for _, key := range l.keys(login, ip) {
		count, err := l.redis.Get(ctx, key).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if count >= int64(l.config.MaxAttempts) {
			return common.ErrRateLimited
		}
	}
	return nil
}

// Fail records one failed attempt. The window starts at the first failure.
func (l *Limiter) Fail(ctx context.Context, login, ip string) error {
	for _, key := range l.keys(login, ip) {
		count, err := l.redis.Incr(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if count == 1 {
			if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		}
	}
	return nil
}

// Reset clears the login counter after a successful login. The IP counter is
// left to expire with its window, so logging into one account cannot buy
// more guesses against others from the same address.
func (l *Limiter) Reset(ctx context.Context, login string) error {
	if err := l.redis.Del(ctx, l.loginKey(login)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// loginKey uses the login verbatim: accounts are matched case-sensitively,
// so "Alice" and "alice" have separate budgets.
func (l *Limiter) loginKey(login string) string {
	return l.config.KeyPrefix + ":login:user:" + login
}

func (l *Limiter) keys(login, ip string) []string {
	keys := []string{l.loginKey(login)}
	if ip != "" && ip != common.UnknownIP {
		keys = append(keys, l.config.KeyPrefix+":login:ip:"+ip)
	}
	return keys
}

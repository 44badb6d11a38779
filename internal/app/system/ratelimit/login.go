// internal/app/system/ratelimit/login.go
package ratelimit

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/impacthub/internal/app/system/normalize"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LoginConfig sets the per-IP and per-email windows.
type LoginConfig struct {
	IPLimit     int
	IPWindow    time.Duration
	EmailLimit  int
	EmailWindow time.Duration
}

// DefaultLoginConfig allows 10 attempts per IP per minute and 5 per email
// per 5 minutes.
func DefaultLoginConfig() LoginConfig {
	return LoginConfig{IPLimit: 10, IPWindow: time.Minute, EmailLimit: 5, EmailWindow: 5 * time.Minute}
}

// LoginLimiter throttles login attempts by client IP and by target email.
// Counter errors fail open and are logged.
type LoginLimiter struct {
	ip    Counter
	email Counter
	log   *zap.Logger
}

// NewLoginLimiter builds an in-memory LoginLimiter.
func NewLoginLimiter(cfg LoginConfig, log *zap.Logger) *LoginLimiter {
	return &LoginLimiter{
		ip:    New(cfg.IPLimit, cfg.IPWindow),
		email: New(cfg.EmailLimit, cfg.EmailWindow),
		log:   log,
	}
}

// NewRedisLoginLimiter builds a LoginLimiter backed by Redis.
func NewRedisLoginLimiter(rdb redis.UniversalClient, cfg LoginConfig, log *zap.Logger) *LoginLimiter {
	return &LoginLimiter{
		ip:    NewRedisCounter(rdb, "impacthub:login:ip:", cfg.IPLimit, cfg.IPWindow),
		email: NewRedisCounter(rdb, "impacthub:login:email:", cfg.EmailLimit, cfg.EmailWindow),
		log:   log,
	}
}

// Limit types reported by Check.
const (
	LimitIP    = "ip"
	LimitEmail = "email"
)

// Check reports whether a login attempt may proceed. When it may not, limit
// names the window that was exhausted (LimitIP or LimitEmail).
func (ll *LoginLimiter) Check(r *http.Request, email string) (ok bool, limit string) {
	ctx := r.Context()

	if !ll.allow(ctx, ll.ip, ClientIP(r)) {
		return false, LimitIP
	}
	if key := normalize.Email(email); key != "" {
		if !ll.allow(ctx, ll.email, key) {
			return false, LimitEmail
		}
	}
	return true, ""
}

// Message is the user-facing text for a refused attempt.
func Message(limit string) string {
	if limit == LimitEmail {
		return "Too many login attempts for this account. Please wait a few minutes."
	}
	return "Too many login attempts. Please wait a minute before trying again."
}

// ResetEmail clears the per-email window after a successful login.
func (ll *LoginLimiter) ResetEmail(ctx context.Context, email string) {
	if key := normalize.Email(email); key != "" {
		if err := ll.email.Reset(ctx, key); err != nil && ll.log != nil {
			ll.log.Warn("login limiter reset failed", zap.Error(err))
		}
	}
}

// Close releases in-memory cleanup loops.
func (ll *LoginLimiter) Close() {
	for _, c := range []Counter{ll.ip, ll.email} {
		if l, ok := c.(*Limiter); ok {
			l.Close()
		}
	}
}

func (ll *LoginLimiter) allow(ctx context.Context, c Counter, key string) bool {
	ok, err := c.Allow(ctx, key)
	if err != nil {
		if ll.log != nil {
			ll.log.Warn("login limiter unavailable; allowing attempt", zap.Error(err))
		}
		return true
	}
	return ok
}

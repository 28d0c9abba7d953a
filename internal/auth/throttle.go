package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-booking/internal/identity"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// LoginThrottle limits failed logins per (role, email) using Redis counters.
type LoginThrottle struct {
	redis  *redis.Client
	logger *logging.Logger
	config ThrottleConfig
}

// ThrottleConfig contains login throttle limits.
type ThrottleConfig struct {
	MaxFailures int
	Window      time.Duration
}

// DefaultThrottleConfig returns default login limits.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		MaxFailures: 5,
		Window:      15 * time.Minute,
	}
}

// NewLoginThrottle creates a throttle. A nil client disables throttling.
func NewLoginThrottle(redisClient *redis.Client, config ThrottleConfig, logger *logging.Logger) *LoginThrottle {
	if logger == nil {
		logger = logging.Default()
	}
	if config.MaxFailures <= 0 {
		config.MaxFailures = DefaultThrottleConfig().MaxFailures
	}
	if config.Window <= 0 {
		config.Window = DefaultThrottleConfig().Window
	}
	return &LoginThrottle{
		redis:  redisClient,
		logger: logger,
		config: config,
	}
}

func throttleKey(role identity.Role, email string) string {
	return fmt.Sprintf("login:fail:%s:%s", role, email)
}

// Allowed reports whether another login attempt may proceed. Fails open if Redis is down.
func (t *LoginThrottle) Allowed(ctx context.Context, role identity.Role, email string) bool {
	if t == nil || t.redis == nil {
		return true
	}
	key := throttleKey(role, email)
	count, err := t.redis.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return true
	}
	if err != nil {
		t.logger.Error("login throttle check failed", "error", err, "key", key)
		return true
	}
	if count >= t.config.MaxFailures {
		t.logger.Warn("login throttled", "role", role, "email", email, "count", count, "max", t.config.MaxFailures)
		return false
	}
	return true
}

// RecordFailure counts a failed attempt, starting the window on the first one.
func (t *LoginThrottle) RecordFailure(ctx context.Context, role identity.Role, email string) int {
	if t == nil || t.redis == nil {
		return 0
	}
	key := throttleKey(role, email)
	count, err := t.redis.Incr(ctx, key).Result()
	if err != nil {
		t.logger.Error("login throttle increment failed", "error", err, "key", key)
		return 0
	}
	if count == 1 {
		t.redis.Expire(ctx, key, t.config.Window)
	}
	return int(count)
}

// Reset clears the failure counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, role identity.Role, email string) {
	if t == nil || t.redis == nil {
		return
	}
	if err := t.redis.Del(ctx, throttleKey(role, email)).Err(); err != nil {
		t.logger.Warn("login throttle reset failed", "error", err)
	}
}

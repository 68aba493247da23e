package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jacobwhite/taskdeck/internal/cache"
	"github.com/jacobwhite/taskdeck/internal/models"
)

// Lockout policy constants. Fixed by policy, not runtime-configurable.
const (
	maxFailedAttempts = 5
	lockoutDuration   = 15 * time.Minute
	attemptWindow     = 24 * time.Hour
)

// LockoutGuard provides brute-force protection per email identity, built on
// the cache's atomic increment and TTL primitives. State machine:
// CLEAR -> (failed attempt)* -> LOCKED -> (timeout) -> CLEAR, with a
// successful authentication resetting everything.
type LockoutGuard struct {
	cache  *cache.Cache
	logger *slog.Logger
}

func NewLockoutGuard(c *cache.Cache, logger *slog.Logger) *LockoutGuard {
	return &LockoutGuard{cache: c, logger: logger}
}

func failedAttemptsKey(email string) string { return "failed_attempts:" + email }
func lockoutKey(email string) string        { return "lockout:" + email }

// Check returns a LockoutError when the identity is currently locked out.
// It is called before credentials are verified and never consumes an attempt.
// Cache infrastructure errors fail open: availability over strictness, same
// as the rate limiter.
func (g *LockoutGuard) Check(ctx context.Context, email string) error {
	locked, err := g.cache.Exists(ctx, cache.NamespaceAuth, lockoutKey(email))
	if err != nil {
		g.logger.Error("lockout check failed, allowing attempt", slog.Any("error", err))
		return nil
	}
	if !locked {
		return nil
	}

	retryAfter := lockoutDuration
	if ttl, err := g.cache.TTL(ctx, cache.NamespaceAuth, lockoutKey(email)); err == nil && ttl > 0 {
		retryAfter = ttl
	}

	return &models.LockoutError{RetryAfter: retryAfter}
}

// RecordFailure counts a failed credential check. The counter's 24h window is
// seeded on first increment; crossing the threshold sets the lockout flag.
func (g *LockoutGuard) RecordFailure(ctx context.Context, email string) error {
	count, err := g.cache.Increment(ctx, cache.NamespaceAuth, failedAttemptsKey(email), 1)
	if err != nil {
		return fmt.Errorf("failed to record auth failure: %w", err)
	}

	if count == 1 {
		if _, err := g.cache.Expire(ctx, cache.NamespaceAuth, failedAttemptsKey(email), attemptWindow); err != nil {
			g.logger.Warn("failed to set attempt counter TTL", slog.Any("error", err))
		}
	}

	if count >= maxFailedAttempts {
		if err := g.cache.Set(ctx, cache.NamespaceAuth, lockoutKey(email), true, lockoutDuration); err != nil {
			return fmt.Errorf("failed to set lockout flag: %w", err)
		}
		g.logger.Warn("account locked after repeated failures",
			slog.Int64("failed_attempts", count))
	}

	return nil
}

// Clear removes both the counter and the lockout flag. Idempotent; called
// unconditionally on successful authentication.
func (g *LockoutGuard) Clear(ctx context.Context, email string) error {
	var errs []error
	if _, err := g.cache.Delete(ctx, cache.NamespaceAuth, failedAttemptsKey(email)); err != nil {
		errs = append(errs, err)
	}
	if _, err := g.cache.Delete(ctx, cache.NamespaceAuth, lockoutKey(email)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

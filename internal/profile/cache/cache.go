// Package cache is the cache-aside accessor for profile projections. Every
// backend failure is logged and swallowed: callers only ever observe a hit
// or a miss, and the primary store remains the source of truth.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"idplane/internal/platform/metrics"
	"idplane/internal/profile/models"
	id "idplane/pkg/domain"
)

// namespace labels the hit/miss metrics for profile keys.
const namespace = "user_profile"

// DefaultTTL is the profile cache expiry when none is configured.
const DefaultTTL = time.Hour

// client is the subset of redis commands the accessor uses. go-redis
// Cmdable satisfies it; tests substitute a fake.
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Accessor reads and writes cached profiles.
type Accessor struct {
	client  client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Accessor.
type Option func(*Accessor)

// WithTTL overrides the default cache expiry.
func WithTTL(ttl time.Duration) Option {
	return func(a *Accessor) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithMetrics enables hit/miss counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Accessor) {
		a.metrics = m
	}
}

// New creates a profile cache accessor.
func New(c client, logger *slog.Logger, opts ...Option) *Accessor {
	a := &Accessor{
		client: c,
		ttl:    DefaultTTL,
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Key returns the cache key for a user's profile.
func Key(userID id.UserID) string {
	return "user:profile:" + userID.String()
}

// Get returns the cached profile, or (nil, false) on miss. Backend errors
// and corrupt payloads count as misses.
func (a *Accessor) Get(ctx context.Context, userID id.UserID) (*models.Profile, bool) {
	raw, err := a.client.Get(ctx, Key(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			a.logFailure(ctx, "get", userID, err)
		}
		a.recordMiss()
		return nil, false
	}

	var profile models.Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		a.logFailure(ctx, "decode", userID, err)
		a.recordMiss()
		return nil, false
	}

	if a.metrics != nil {
		a.metrics.RecordCacheHit(namespace)
	}
	return &profile, true
}

// Set stores the profile with the configured TTL, best-effort.
func (a *Accessor) Set(ctx context.Context, profile *models.Profile) {
	raw, err := json.Marshal(profile)
	if err != nil {
		a.logFailure(ctx, "encode", profile.UserID, err)
		return
	}

	if err := a.client.Set(ctx, Key(profile.UserID), raw, a.ttl).Err(); err != nil {
		a.logFailure(ctx, "set", profile.UserID, err)
	}
}

// Delete drops the cached profile, best-effort.
func (a *Accessor) Delete(ctx context.Context, userID id.UserID) {
	if err := a.client.Del(ctx, Key(userID)).Err(); err != nil {
		a.logFailure(ctx, "delete", userID, err)
	}
}

func (a *Accessor) recordMiss() {
	if a.metrics != nil {
		a.metrics.RecordCacheMiss(namespace)
	}
}

func (a *Accessor) logFailure(ctx context.Context, op string, userID id.UserID, err error) {
	if a.logger == nil {
		return
	}
	a.logger.WarnContext(ctx, "profile cache operation failed",
		"op", op,
		"user_id", userID.String(),
		"error", err,
	)
}

// Package ratelimit throttles repeated authentication failures per remote
// host, supplementing the broker's AuthFailed handling with a defense
// against credential-stuffing. It prefers a Redis-backed counter shared
// across broker instances, falling back to an in-process one when Redis is
// not configured.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle decides whether another authentication attempt from host is
// allowed, and records failures against it.
type Throttle interface {
	Allow(ctx context.Context, host string) (bool, error)
	RecordFailure(ctx context.Context, host string) error
}

// Config bounds how many failures are tolerated within Window before Allow
// starts returning false.
type Config struct {
	MaxFailures int
	Window      time.Duration
}

// DefaultConfig matches the teacher's conservative defaults for other rate
// limiters in the pack: a handful of attempts per minute.
func DefaultConfig() Config {
	return Config{MaxFailures: 5, Window: time.Minute}
}

// RedisThrottle counts failures in Redis with a key per host, expiring the
// counter after Window so it behaves as a fixed rolling window.
type RedisThrottle struct {
	client *redis.Client
	cfg    Config
}

// NewRedis returns a RedisThrottle using client.
func NewRedis(client *redis.Client, cfg Config) *RedisThrottle {
	return &RedisThrottle{client: client, cfg: cfg}
}

func (t *RedisThrottle) key(host string) string {
	return fmt.Sprintf("squawkbus:authfail:%s", host)
}

// Allow reports whether host is currently under the failure threshold.
func (t *RedisThrottle) Allow(ctx context.Context, host string) (bool, error) {
	count, err := t.client.Get(ctx, t.key(host)).Int()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("ratelimit: reading counter: %w", err)
	}
	return count < t.cfg.MaxFailures, nil
}

// RecordFailure increments host's failure counter, setting its expiry on
// first failure within the window.
func (t *RedisThrottle) RecordFailure(ctx context.Context, host string) error {
	key := t.key(host)
	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("ratelimit: incrementing counter: %w", err)
	}
	if count == 1 {
		if err := t.client.Expire(ctx, key, t.cfg.Window).Err(); err != nil {
			return fmt.Errorf("ratelimit: setting expiry: %w", err)
		}
	}
	return nil
}

// InProcess is a single-instance fallback used when no Redis URL is
// configured. Counters are reset lazily: once a host's window has elapsed,
// the next failure starts a fresh window.
type InProcess struct {
	mu      sync.Mutex
	cfg     Config
	windows map[string]*window
}

type window struct {
	count     int
	expiresAt time.Time
}

// NewInProcess returns an InProcess throttle.
func NewInProcess(cfg Config) *InProcess {
	return &InProcess{cfg: cfg, windows: make(map[string]*window)}
}

// Allow reports whether host is currently under the failure threshold.
func (t *InProcess) Allow(_ context.Context, host string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[host]
	if !ok || time.Now().After(w.expiresAt) {
		return true, nil
	}
	return w.count < t.cfg.MaxFailures, nil
}

// RecordFailure increments host's failure counter, starting a fresh window
// if the previous one has expired.
func (t *InProcess) RecordFailure(_ context.Context, host string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[host]
	if !ok || time.Now().After(w.expiresAt) {
		w = &window{expiresAt: time.Now().Add(t.cfg.Window)}
		t.windows[host] = w
	}
	w.count++
	return nil
}

// Package cooldown suppresses repeated notifications for the same key within
// a short window. Redis being unreachable never blocks a notification.
package cooldown

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AbhaySingh-33/Job-Portal/pkg/config"
)

var ErrCooldown = errors.New("notification key is cooling down")

const keyPrefix = "notify:cooldown:"

type Limiter struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func New(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Limiter {
	return &Limiter{rdb: rdb, ttl: ttl, logger: logger}
}

// Open connects to cfg.Addr. An empty address returns a nil Limiter, which
// allows everything.
func Open(ctx context.Context, cfg config.Redis, ttl time.Duration, logger *zap.Logger) (*Limiter, error) {
	if cfg.Addr == "" || ttl <= 0 {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("error connecting to redis %s: %w", cfg.Addr, err)
	}

	return New(rdb, ttl, logger), nil
}

// Key derives a stable key from the parts that identify a notification.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Allow returns ErrCooldown if key was allowed within the last ttl.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}

	ok, err := l.rdb.SetNX(ctx, key, 1, l.ttl).Result()
	if err != nil {
		l.logger.Warn("cooldown check failed, allowing", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !ok {
		return ErrCooldown
	}

	return nil
}

func (l *Limiter) Close() error {
	if l == nil {
		return nil
	}
	return l.rdb.Close()
}

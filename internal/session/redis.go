// Package session provides storage for USSD dialog sessions keyed by phone number.
//
// This file implements a Redis-backed store for multi-instance deployments.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AfyaLink/AfyaDial/internal/models"
)

const (
	// redisKeyPrefix namespaces session keys in a shared Redis instance.
	redisKeyPrefix = "afyadial:session:"
	// redisSessionTTL bounds how long an abandoned session record lingers.
	// Staleness for resume purposes is still evaluated by the engine; this is
	// only garbage collection.
	redisSessionTTL = 6 * time.Hour
)

// RedisOpts holds configuration options for the Redis session store.
type RedisOpts struct {
	Addr     string
	Password string
	DB       int
}

// RedisOption defines a configuration option for the Redis session store.
type RedisOption func(*RedisOpts)

// WithRedisAddr sets the Redis server address (host:port).
func WithRedisAddr(addr string) RedisOption {
	return func(o *RedisOpts) { o.Addr = addr }
}

// WithRedisPassword sets the Redis password.
func WithRedisPassword(password string) RedisOption {
	return func(o *RedisOpts) { o.Password = password }
}

// WithRedisDB selects the Redis logical database.
func WithRedisDB(db int) RedisOption {
	return func(o *RedisOpts) { o.DB = db }
}

// RedisStore persists dialog sessions in Redis as JSON values with a TTL.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed session store and verifies connectivity.
func NewRedisStore(ctx context.Context, opts ...RedisOption) (*RedisStore, error) {
	var cfg RedisOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		slog.Error("RedisStore address not set")
		return nil, fmt.Errorf("redis address not set")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("RedisStore ping failed", "error", err, "addr", cfg.Addr)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Debug("RedisStore connected", "addr", cfg.Addr, "db", cfg.DB)
	return &RedisStore{client: client}, nil
}

// Get returns the session for a phone number, or nil if none exists.
func (s *RedisStore) Get(ctx context.Context, phone string) (*models.DialogSession, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+phone).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStore Get failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to get session for %s: %w", phone, err)
	}
	var sess models.DialogSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		slog.Error("RedisStore Get unmarshal failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to decode session for %s: %w", phone, err)
	}
	return &sess, nil
}

// Put stores or replaces the session for a phone number.
func (s *RedisStore) Put(ctx context.Context, phone string, sess models.DialogSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		slog.Error("RedisStore Put marshal failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to encode session for %s: %w", phone, err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+phone, raw, redisSessionTTL).Err(); err != nil {
		slog.Error("RedisStore Put failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to store session for %s: %w", phone, err)
	}
	slog.Debug("RedisStore Put succeeded", "phone", phone, "entries", len(sess.Entries))
	return nil
}

// Clear removes the session for a phone number.
func (s *RedisStore) Clear(ctx context.Context, phone string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+phone).Err(); err != nil {
		slog.Error("RedisStore Clear failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to clear session for %s: %w", phone, err)
	}
	slog.Debug("RedisStore Clear succeeded", "phone", phone)
	return nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

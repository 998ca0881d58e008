// Package cache stores bounded lists of records, in process or in Redis.
package cache

import (
	"context"

	"github.com/kasuganosora/towerdefense/cache/local"
	cacheredis "github.com/kasuganosora/towerdefense/cache/redis"
)

// List is the subset of Redis list operations the server needs.
type List interface {
	LPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
	Del(ctx context.Context, keys ...string) error
	Close() error
}

// Config selects the backend. An empty RedisAddr keeps data in process.
type Config struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// New returns a List backed by Redis if RedisAddr is set, otherwise an
// in-process store.
func New(cfg Config) (List, error) {
	if cfg.RedisAddr != "" {
		return cacheredis.NewList(cacheredis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	return local.NewList(), nil
}

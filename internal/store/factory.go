package store

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Options selects the persistence backend and optional cache layer.
type Options struct {
	DatabaseURL   string
	RedisAddr     string
	RedisUsername string
	RedisPassword string
}

// New creates a postgres-backed store when configured, otherwise in-memory.
// A reachable Redis adds a recent-turns cache; an unreachable one is skipped.
func New(ctx context.Context, opts Options) (Store, error) {
	var base Store
	if strings.TrimSpace(opts.DatabaseURL) == "" {
		base = NewInMemoryStore()
	} else {
		pg, err := NewPostgresStore(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		base = pg
	}

	if strings.TrimSpace(opts.RedisAddr) == "" {
		return base, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Username: opts.RedisUsername,
		Password: opts.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("redis unreachable, continuing without cache: %v", err)
		_ = rdb.Close()
		return base, nil
	}
	return NewCachedStore(base, rdb), nil
}

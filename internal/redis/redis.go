// Package redis owns the shared redis client, used as the cache in front
// of per-guild settings lookups.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

var (
	client *redislib.Client
	once   sync.Once
)

type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func Init(cfg Config) (*redislib.Client, error) {
	var initErr error

	once.Do(func() {
		candidate := redislib.NewClient(&redislib.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		})

		if err := pingWithRetry(candidate); err != nil {
			initErr = err
			_ = candidate.Close()
			return
		}
		client = candidate
	})

	if client == nil && initErr == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}
	return client, initErr
}

func pingWithRetry(c *redislib.Client) error {
	var lastErr error
	backoff := 200 * time.Millisecond

	for attempt := 1; attempt <= 5; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		lastErr = c.Ping(ctx).Err()
		cancel()

		if lastErr == nil {
			return nil
		}
		if attempt < 5 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return lastErr
}

func Client() *redislib.Client {
	return client
}

func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}

package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options selects the Redis instance holding booking locks.
type Options struct {
	Addr     string
	Username string
	Password string
	DB       int
	PoolSize int
	// ClientName shows up in CLIENT LIST, one per binary.
	ClientName string
}

func NewRedisClient(ctx context.Context, o Options) (*redis.Client, error) {
	poolSize := o.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Username:     o.Username,
		Password:     o.Password,
		DB:           o.DB,
		ClientName:   o.ClientName,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     poolSize,
		MinIdleConns: 1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s (db %d): %w", o.Addr, o.DB, err)
	}

	return rdb, nil
}

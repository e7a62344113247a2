package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Connect establishes a connection to Redis. A zero poolSize leaves the
// client default in place.
func Connect(redisURL string, poolSize int) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if poolSize > 0 {
		opt.PoolSize = poolSize
	}

	client := redis.NewClient(opt)

	// Verify connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

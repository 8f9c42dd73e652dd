package config

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisAddress falls back to a local server when REDIS_ADDRESS is unset.
func RedisAddress() string {
	addr := GetEnv("REDIS_ADDRESS")
	if addr == "" {
		addr = "localhost:6379"
		Logger.Warn("REDIS_ADDRESS not set, using default")
	}
	return addr
}

func InitRedisServer(ctx context.Context) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     RedisAddress(),
		Password: GetEnv("REDIS_PASSWORD"),
		DB:       0,
	})

	_, err := client.Ping(ctx).Result()
	if err != nil {
		panic(err)
	}

	return client
}

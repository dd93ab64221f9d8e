package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/nsvirk/gitcoderapi/internal/config"
	"github.com/nsvirk/gitcoderapi/pkg/utils/zaplogger"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// ConnectRedis opens a client for the configured redis and checks it answers
func ConnectRedis(cfg *config.Config) (*redis.Client, error) {
	zaplogger.Info(config.SingleLine)
	zaplogger.Info("Initializing Redis")
	zaplogger.Info(config.SingleLine)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		_ = redisClient.Close()
		return nil, eris.Wrap(err, "failed to connect to Redis")
	}
	zaplogger.Info("  * connected", zaplogger.Fields{"db": cfg.RedisDB})
	return redisClient, nil
}

package database

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"skolu-backend/config"
	"skolu-backend/logger"
)

// ConnectRedis returns nil when redis is unavailable; callers treat a nil
// client as "no cache".
func ConnectRedis() *redis.Client {
	opts, err := redis.ParseURL(config.AppConfig.RedisURL)
	if err != nil {
		logger.Log.Warn("invalid redis url, running without cache", zap.Error(err))
		return nil
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Log.Warn("redis not available, running without cache", zap.Error(err))
		return nil
	}

	logger.Log.Info("redis connected")
	return client
}

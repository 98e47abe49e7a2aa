package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/rfid-gateway/internal/config"
	redisstorage "github.com/taoyao-code/rfid-gateway/internal/storage/redis"
)

// NewRedisClient 创建Redis客户端；未启用时返回 nil
func NewRedisClient(cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.Client, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, skipping initialization")
		return nil, nil
	}

	client, err := redisstorage.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("redis client initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("pool_size", cfg.PoolSize))

	return client, nil
}

// NewTagStream 标签事件流发布器
func NewTagStream(client *redisstorage.Client, cfg cfgpkg.RedisConfig) *redisstorage.TagStream {
	return redisstorage.NewTagStream(client, cfg.Stream, cfg.StreamMaxLen)
}

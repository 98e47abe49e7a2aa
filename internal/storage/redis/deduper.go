package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const dedupKeyPrefix = "r200:dedup"

// DefaultDedupTTL 默认去重窗口
const DefaultDedupTTL = 2 * time.Second

// Deduper 基于 SETNX 的去重器：窗口内同一 key 仅首次返回 false
type Deduper struct {
	client *Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewDeduper 创建去重器
func NewDeduper(client *Client, logger *zap.Logger, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{client: client, logger: logger, ttl: ttl}
}

// IsDuplicate 窗口内是否已出现过
func (d *Deduper) IsDuplicate(ctx context.Context, key string) (bool, error) {
	if d == nil || d.client == nil {
		return false, errors.New("deduper not initialized")
	}
	if key == "" {
		return false, errors.New("dedup key is empty")
	}
	ok, err := d.client.SetNX(ctx, d.buildKey(key), "1", d.ttl).Result()
	if err != nil {
		d.logger.Warn("dedup check failed", zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return !ok, nil
}

// Forget 清除某 key 的去重标记
func (d *Deduper) Forget(ctx context.Context, key string) error {
	return d.client.Del(ctx, d.buildKey(key)).Err()
}

func (d *Deduper) buildKey(key string) string {
	return dedupKeyPrefix + ":" + key
}

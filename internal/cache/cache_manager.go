package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coldwatch/internal/config"
	"coldwatch/internal/models"
	commonredis "coldwatch/pkg/common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CacheManager Redis 缓存管理器
// 键空间：
// - <prefix><freezer_id>:reading  最新读数（无 TTL，随新读数覆盖）
// - <prefix><freezer_id>:alerts   活跃告警列表（带 TTL）
// 生命周期事件发布到 Redis Stream（event_stream 配置项）
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// readingKey 最新读数缓存键
func (c *CacheManager) readingKey(freezerID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Monitor.Cache.FreezerKeyPrefix,
		freezerID,
		c.config.Monitor.Cache.ReadingSuffix,
	)
}

// alertKey 告警缓存键
func (c *CacheManager) alertKey(freezerID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Monitor.Cache.FreezerKeyPrefix,
		freezerID,
		c.config.Monitor.Cache.AlertSuffix,
	)
}

// SetLatestReading 缓存冷柜最新读数
func (c *CacheManager) SetLatestReading(ctx context.Context, reading *models.Reading) error {
	if reading == nil {
		return fmt.Errorf("reading is required")
	}

	jsonData, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	key := c.readingKey(reading.FreezerID)
	if err := c.redisClient.Set(ctx, key, jsonData, 0).Err(); err != nil {
		return fmt.Errorf("failed to set reading cache: %w", err)
	}

	c.logger.Debug("Cached latest reading",
		zap.String("freezer_id", reading.FreezerID),
		zap.String("key", key),
	)

	return nil
}

// GetLatestReading 读取冷柜最新读数缓存；缓存未命中返回 (nil, nil)
func (c *CacheManager) GetLatestReading(ctx context.Context, freezerID string) (*models.Reading, error) {
	key := c.readingKey(freezerID)

	val, err := c.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reading cache: %w", err)
	}

	var reading models.Reading
	if err := json.Unmarshal([]byte(val), &reading); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reading: %w", err)
	}

	return &reading, nil
}

// UpdateAlertCache 刷新冷柜的活跃告警缓存（带 TTL）
func (c *CacheManager) UpdateAlertCache(ctx context.Context, freezerID string, alerts []*models.Alert) error {
	jsonData, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}

	key := c.alertKey(freezerID)
	err = c.redisClient.Set(
		ctx,
		key,
		jsonData,
		time.Duration(c.config.Monitor.Cache.AlertTTL)*time.Second,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set alert cache: %w", err)
	}

	c.logger.Debug("Updated alert cache",
		zap.String("freezer_id", freezerID),
		zap.String("key", key),
		zap.Int("alert_count", len(alerts)),
	)

	return nil
}

// PublishAlertEvent 发布告警生命周期事件到 Redis Stream
func (c *CacheManager) PublishAlertEvent(ctx context.Context, eventType string, alert *models.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert is required")
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	_, err = commonredis.PublishToStream(ctx, c.redisClient, c.config.Monitor.Cache.EventStream, map[string]interface{}{
		"event_type": eventType,
		"alert_id":   alert.AlertID,
		"entity_id":  alert.EntityID,
		"data":       string(payload),
	})
	if err != nil {
		return fmt.Errorf("failed to publish alert event: %w", err)
	}

	c.logger.Debug("Published alert event",
		zap.String("event_type", eventType),
		zap.String("alert_id", alert.AlertID),
	)

	return nil
}

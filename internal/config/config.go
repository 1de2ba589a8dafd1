package config

import (
	"os"
	"strconv"

	"coldwatch/pkg/common/config"
)

// Config 冷链监控服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// 监控服务特定配置
	Monitor struct {
		// Redis 缓存配置
		Cache struct {
			FreezerKeyPrefix string // 冷柜缓存键前缀，如 "coldwatch:freezer:"
			ReadingSuffix    string // 最新读数缓存键后缀，如 ":reading"
			AlertSuffix      string // 告警缓存键后缀，如 ":alerts"
			AlertTTL         int    // 告警缓存 TTL（秒）
			EventStream      string // 告警生命周期事件流名
		}

		// 违规分发配置
		Dispatch struct {
			QueueSize int // 违规队列容量
			Workers   int // 分发 worker 数量
		}

		// MQTT 遥测摄取配置
		Telemetry struct {
			Enabled bool   // 是否启用 MQTT 摄取
			Topic   string // 遥测主题，如 "lab/freezer/+/telemetry"
		}
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "coldwatch"
	cfg.Database.SSLMode = "disable"
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "coldwatch-monitor"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	// 监控服务配置
	cfg.Monitor.Cache.FreezerKeyPrefix = getEnv("CACHE_FREEZER_PREFIX", "coldwatch:freezer:")
	cfg.Monitor.Cache.ReadingSuffix = ":reading"
	cfg.Monitor.Cache.AlertSuffix = ":alerts"
	cfg.Monitor.Cache.AlertTTL = getEnvInt("CACHE_ALERT_TTL", 60)
	cfg.Monitor.Cache.EventStream = getEnv("ALERT_EVENT_STREAM", "coldwatch:alert-events")

	cfg.Monitor.Dispatch.QueueSize = getEnvInt("DISPATCH_QUEUE_SIZE", 256)
	cfg.Monitor.Dispatch.Workers = getEnvInt("DISPATCH_WORKERS", 4)

	cfg.Monitor.Telemetry.Enabled = getEnv("TELEMETRY_ENABLED", "true") == "true"
	cfg.Monitor.Telemetry.Topic = getEnv("TELEMETRY_TOPIC", "lab/freezer/+/telemetry")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

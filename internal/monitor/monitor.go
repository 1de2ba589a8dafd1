package monitor

import (
	"context"
	"database/sql"
	"fmt"

	"coldwatch/internal/cache"
	"coldwatch/internal/config"
	"coldwatch/internal/dispatch"
	"coldwatch/internal/evaluator"
	"coldwatch/internal/ingest"
	"coldwatch/internal/repository"
	"coldwatch/internal/service"
	"coldwatch/pkg/common/database"
	commonmqtt "coldwatch/pkg/common/mqtt"
	commonredis "coldwatch/pkg/common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Monitor 冷链监控服务（整合各层）
type Monitor struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *commonmqtt.Client
	logger      *zap.Logger

	// 各层组件
	cacheManager *cache.CacheManager
	dispatcher   *dispatch.Dispatcher

	readingsRepo *repository.ReadingsRepository
	alertsRepo   *repository.AlertsRepository
	profilesRepo *repository.ThresholdProfilesRepository
	assignsRepo  *repository.AssignmentsRepository
	actionsRepo  *repository.CorrectiveActionsRepository
	freezersRepo *repository.FreezersRepository

	resolver *evaluator.ProfileResolver

	alertService  *service.AlertService
	ingestService *service.IngestService
	actionService *service.CorrectiveActionService

	telemetry *ingest.TelemetryConsumer
}

// New 创建监控服务
func New(cfg *config.Config, logger *zap.Logger) (*Monitor, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := commonredis.NewRedisClient(&cfg.Redis)
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 创建 Repository 层
	readingsRepo := repository.NewReadingsRepository(db, logger)
	alertsRepo := repository.NewAlertsRepository(db, logger)
	profilesRepo := repository.NewThresholdProfilesRepository(db, logger)
	assignsRepo := repository.NewAssignmentsRepository(db, logger)
	actionsRepo := repository.NewCorrectiveActionsRepository(db, logger)
	freezersRepo := repository.NewFreezersRepository(db, logger)

	// 4. 创建缓存与解析层
	cacheManager := cache.NewCacheManager(cfg, redisClient, logger)
	resolver := evaluator.NewProfileResolver(assignsRepo, profilesRepo, logger)

	// 5. 创建服务层
	alertService := service.NewAlertService(alertsRepo, cacheManager, logger)
	actionService := service.NewCorrectiveActionService(actionsRepo, logger)

	// 6. 创建分发器和摄取管线
	dispatcher := dispatch.NewDispatcher(
		alertService,
		cfg.Monitor.Dispatch.QueueSize,
		cfg.Monitor.Dispatch.Workers,
		logger,
	)
	ingestService := service.NewIngestService(readingsRepo, resolver, dispatcher, cacheManager, logger)

	return &Monitor{
		config:        cfg,
		db:            db,
		redisClient:   redisClient,
		logger:        logger,
		cacheManager:  cacheManager,
		dispatcher:    dispatcher,
		readingsRepo:  readingsRepo,
		alertsRepo:    alertsRepo,
		profilesRepo:  profilesRepo,
		assignsRepo:   assignsRepo,
		actionsRepo:   actionsRepo,
		freezersRepo:  freezersRepo,
		resolver:      resolver,
		alertService:  alertService,
		ingestService: ingestService,
		actionService: actionService,
		telemetry:     ingest.NewTelemetryConsumer(ingestService, logger),
	}, nil
}

// Start 启动服务
func (m *Monitor) Start(ctx context.Context) error {
	m.logger.Info("Starting cold-storage monitor")

	// 启动违规分发器
	m.dispatcher.Start(ctx)

	// 启动 MQTT 遥测摄取（如启用）
	if m.config.Monitor.Telemetry.Enabled {
		mqttClient, err := commonmqtt.NewClient(&m.config.MQTT, m.logger)
		if err != nil {
			return fmt.Errorf("failed to connect mqtt broker: %w", err)
		}
		m.mqttClient = mqttClient

		if err := m.telemetry.Start(ctx, mqttClient, m.config.Monitor.Telemetry.Topic, m.config.MQTT.QoS); err != nil {
			return fmt.Errorf("failed to start telemetry consumer: %w", err)
		}
	}

	return nil
}

// Stop 停止服务
func (m *Monitor) Stop() error {
	m.logger.Info("Stopping cold-storage monitor")

	if m.mqttClient != nil {
		m.mqttClient.Disconnect()
	}

	m.dispatcher.Wait()

	if err := m.db.Close(); err != nil {
		m.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if err := m.redisClient.Close(); err != nil {
		m.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}

// AlertService 告警服务
func (m *Monitor) AlertService() *service.AlertService {
	return m.alertService
}

// IngestService 摄取服务
func (m *Monitor) IngestService() *service.IngestService {
	return m.ingestService
}

// CorrectiveActionService 整改工单服务
func (m *Monitor) CorrectiveActionService() *service.CorrectiveActionService {
	return m.actionService
}

// Profiles 阈值策略仓库
func (m *Monitor) Profiles() *repository.ThresholdProfilesRepository {
	return m.profilesRepo
}

// Assignments 分配仓库
func (m *Monitor) Assignments() *repository.AssignmentsRepository {
	return m.assignsRepo
}

// Freezers 冷柜信息仓库
func (m *Monitor) Freezers() *repository.FreezersRepository {
	return m.freezersRepo
}

package service

import (
	"context"
	"fmt"
	"time"

	"coldwatch/internal/evaluator"
	"coldwatch/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReadingStore 读数存储接口（由 repository.ReadingsRepository 实现）
type ReadingStore interface {
	CreateReading(ctx context.Context, reading *models.Reading) error
	GetLatestReading(ctx context.Context, freezerID string) (*models.Reading, error)
	ListReadingsByFreezer(ctx context.Context, freezerID string, from, to *time.Time, page, size int) ([]*models.Reading, int, error)
}

// ProfileResolver 生效策略解析接口（由 evaluator.ProfileResolver 实现）
type ProfileResolver interface {
	ResolveActiveProfile(ctx context.Context, freezerID string, at time.Time) (*models.ThresholdProfile, error)
}

// ViolationSink 违规分发接口（由 dispatch.Dispatcher 实现）
// Enqueue 不阻塞；队列满时返回 false
type ViolationSink interface {
	Enqueue(violation models.ThresholdViolation) bool
}

// ReadingCache 最新读数缓存接口（由 cache.CacheManager 实现）
type ReadingCache interface {
	SetLatestReading(ctx context.Context, reading *models.Reading) error
	// GetLatestReading 缓存未命中返回 (nil, nil)
	GetLatestReading(ctx context.Context, freezerID string) (*models.Reading, error)
}

// IngestInput 摄取入参（遥测解码后的原始读数）
type IngestInput struct {
	FreezerID      string
	RecordedAt     time.Time
	Temperature    *float64
	Humidity       *float64
	TransmissionOK bool
	ErrorMessage   *string
}

// IngestService 读数摄取管线
// 流程：解析生效策略 → 阈值评估 → 落库 → 刷新缓存 → 投递违规
// 告警创建是异步的：摄取不等待告警落库，也不因分发失败而失败
type IngestService struct {
	readings ReadingStore
	resolver ProfileResolver
	sink     ViolationSink
	cache    ReadingCache
	logger   *zap.Logger
}

// NewIngestService 创建摄取服务
// sink 和 cache 可为 nil（仅落库，不分发、不缓存）
func NewIngestService(
	readings ReadingStore,
	resolver ProfileResolver,
	sink ViolationSink,
	cache ReadingCache,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		readings: readings,
		resolver: resolver,
		sink:     sink,
		cache:    cache,
		logger:   logger,
	}
}

// Ingest 摄取一条读数
// 业务规则：
// - 传输失败（无温度）的读数原样落库，状态为 NORMAL，不触发评估
// - 策略按 recorded_at 时刻解析；无生效策略时读数一律 NORMAL
// - 读数状态在摄取时一次性计算，写入后不再修改
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (*models.Reading, error) {
	if input.FreezerID == "" {
		return nil, fmt.Errorf("freezer_id is required")
	}
	if input.RecordedAt.IsZero() {
		return nil, fmt.Errorf("recorded_at is required")
	}

	profile, err := s.resolver.ResolveActiveProfile(ctx, input.FreezerID, input.RecordedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve active profile: %w", err)
	}

	status := models.ReadingStatusNormal
	if input.Temperature != nil {
		status = evaluator.EvaluateStatus(*input.Temperature, input.Humidity, profile)
	}

	reading := &models.Reading{
		ReadingID:          uuid.New().String(),
		FreezerID:          input.FreezerID,
		RecordedAt:         input.RecordedAt,
		TemperatureCelsius: input.Temperature,
		HumidityPercentage: input.Humidity,
		TransmissionOK:     input.TransmissionOK,
		ErrorMessage:       input.ErrorMessage,
		Status:             status,
		CreatedAt:          time.Now(),
	}

	if err := s.readings.CreateReading(ctx, reading); err != nil {
		return nil, fmt.Errorf("failed to persist reading: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetLatestReading(ctx, reading); err != nil {
			s.logger.Warn("Failed to cache latest reading",
				zap.String("freezer_id", reading.FreezerID),
				zap.Error(err),
			)
		}
	}

	if status != models.ReadingStatusNormal {
		s.dispatchViolation(reading, profile)
	}

	return reading, nil
}

// dispatchViolation 投递违规到分发队列（不阻塞摄取）
func (s *IngestService) dispatchViolation(reading *models.Reading, profile *models.ThresholdProfile) {
	if s.sink == nil || reading.TemperatureCelsius == nil {
		return
	}

	thresholdType, thresholdValue, crossed := evaluator.DeriveThresholdType(
		*reading.TemperatureCelsius, reading.HumidityPercentage, profile)
	if !crossed {
		return
	}

	violation := models.ThresholdViolation{
		EntityType:     models.EntityTypeFreezer,
		EntityID:       reading.FreezerID,
		Status:         reading.Status,
		Temperature:    reading.TemperatureCelsius,
		Humidity:       reading.HumidityPercentage,
		ThresholdType:  thresholdType,
		ThresholdValue: thresholdValue,
		RecordedAt:     reading.RecordedAt,
	}

	if !s.sink.Enqueue(violation) {
		s.logger.Warn("Violation queue full, dropping violation",
			zap.String("freezer_id", reading.FreezerID),
			zap.String("threshold_type", string(thresholdType)),
		)
	}
}

// GetLatestReading 获取冷柜最近一条读数；没有时返回 (nil, nil)
// 先查缓存，未命中回落到数据库；缓存故障只记日志
func (s *IngestService) GetLatestReading(ctx context.Context, freezerID string) (*models.Reading, error) {
	if freezerID == "" {
		return nil, fmt.Errorf("freezer_id is required")
	}

	if s.cache != nil {
		cached, err := s.cache.GetLatestReading(ctx, freezerID)
		if err != nil {
			s.logger.Warn("Failed to read latest-reading cache",
				zap.String("freezer_id", freezerID),
				zap.Error(err),
			)
		} else if cached != nil {
			return cached, nil
		}
	}

	return s.readings.GetLatestReading(ctx, freezerID)
}

// ListReadings 时间段内的读数历史（分页）
func (s *IngestService) ListReadings(ctx context.Context, freezerID string, from, to *time.Time, page, size int) ([]*models.Reading, int, error) {
	if freezerID == "" {
		return nil, 0, fmt.Errorf("freezer_id is required")
	}
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return s.readings.ListReadingsByFreezer(ctx, freezerID, from, to, page, size)
}

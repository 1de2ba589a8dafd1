package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coldwatch/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertStore 告警存储接口（由 repository.AlertsRepository 实现）
type AlertStore interface {
	CreateAlert(ctx context.Context, alert *models.Alert) error
	GetAlert(ctx context.Context, alertID string) (*models.Alert, error)
	GetUnresolvedAlert(ctx context.Context, entityType, entityID string, alertType models.AlertType) (*models.Alert, error)
	IncrementDuplicate(ctx context.Context, alertID string, at time.Time) error
	UpdateAlert(ctx context.Context, alertID string, updates map[string]interface{}) error
	ListAlertsByEntity(ctx context.Context, entityType, entityID string) ([]*models.Alert, error)
	CountActiveAlerts(ctx context.Context, entityType, entityID string) (int, error)
}

// AlertPublisher 告警生命周期事件发布与缓存刷新接口（由 cache.CacheManager 实现）
type AlertPublisher interface {
	PublishAlertEvent(ctx context.Context, eventType string, alert *models.Alert) error
	UpdateAlertCache(ctx context.Context, freezerID string, alerts []*models.Alert) error
}

// AlertService 告警服务层
// 职责：
// 1. 去重规则：同一 (entity_type, entity_id, alert_type) 最多一条未解除告警
// 2. 生命周期状态机：open → acknowledged → resolved（单向）
// 3. 生命周期事件发布与未解除告警缓存刷新（均尽力而为，不影响主流程）
type AlertService struct {
	alerts    AlertStore
	publisher AlertPublisher
	logger    *zap.Logger

	// 去重临界区：按 (entity_type, entity_id, alert_type) 串行化检查-创建
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAlertService 创建告警服务
// publisher 可为 nil（不发布生命周期事件）
func NewAlertService(alerts AlertStore, publisher AlertPublisher, logger *zap.Logger) *AlertService {
	return &AlertService{
		alerts:    alerts,
		publisher: publisher,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

// entityLock 获取去重键对应的互斥锁
func (s *AlertService) entityLock(entityType, entityID string, alertType models.AlertType) *sync.Mutex {
	key := fmt.Sprintf("%s:%s:%s", entityType, entityID, alertType)

	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// publishEvent 发布生命周期事件（失败只记日志，不影响主流程）
func (s *AlertService) publishEvent(ctx context.Context, eventType string, alert *models.Alert) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAlertEvent(ctx, eventType, alert); err != nil {
		s.logger.Warn("Failed to publish alert event",
			zap.String("event_type", eventType),
			zap.String("alert_id", alert.AlertID),
			zap.Error(err),
		)
	}
}

// refreshAlertCache 刷新实体的未解除告警缓存（尽力而为，失败只记日志）
// 状态变更（创建/确认/解除）后调用；重复计数变化不影响未解除集合，不触发刷新
func (s *AlertService) refreshAlertCache(ctx context.Context, entityType, entityID string) {
	if s.publisher == nil {
		return
	}

	all, err := s.alerts.ListAlertsByEntity(ctx, entityType, entityID)
	if err != nil {
		s.logger.Warn("Failed to load alerts for cache refresh",
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
		return
	}

	active := make([]*models.Alert, 0, len(all))
	for _, alert := range all {
		if alert.Status != models.AlertStatusResolved {
			active = append(active, alert)
		}
	}

	if err := s.publisher.UpdateAlertCache(ctx, entityID, active); err != nil {
		s.logger.Warn("Failed to update alert cache",
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

// ============================================
// 告警创建与去重
// ============================================

// HandleViolation 处理阈值违规（摄取管线经分发队列调用）
// 业务规则：
// - 同一实体同一告警类型已有未解除告警时，不新建，仅 duplicate_count +1
// - 已解除的告警不参与去重，新违规产生全新告警
// - 检查-创建在去重键的互斥锁内完成，并发违规不会产生重复告警
func (s *AlertService) HandleViolation(ctx context.Context, violation models.ThresholdViolation) error {
	if violation.EntityType == "" || violation.EntityID == "" {
		return fmt.Errorf("entity_type and entity_id are required")
	}

	alertType := models.AlertTypeFreezerTemperature
	severity := violation.ThresholdType.Severity()

	lock := s.entityLock(violation.EntityType, violation.EntityID, alertType)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.alerts.GetUnresolvedAlert(ctx, violation.EntityType, violation.EntityID, alertType)
	if err != nil {
		return fmt.Errorf("failed to check unresolved alert: %w", err)
	}

	if existing != nil {
		// 重复违规：计数 +1，告警身份不变
		if err := s.alerts.IncrementDuplicate(ctx, existing.AlertID, violation.RecordedAt); err != nil {
			return fmt.Errorf("failed to increment duplicate count: %w", err)
		}

		s.logger.Debug("Duplicate violation absorbed",
			zap.String("alert_id", existing.AlertID),
			zap.String("entity_id", violation.EntityID),
			zap.Int("duplicate_count", existing.DuplicateCount+1),
		)

		existing.DuplicateCount++
		existing.LastDuplicateTime = &violation.RecordedAt
		s.publishEvent(ctx, "alert.duplicate", existing)
		return nil
	}

	thresholdValue := violation.ThresholdValue
	alertCtx := &models.AlertContext{
		Temperature:    violation.Temperature,
		Humidity:       violation.Humidity,
		ThresholdValue: &thresholdValue,
		ThresholdType:  string(violation.ThresholdType),
	}
	contextData, err := alertCtx.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal alert context: %w", err)
	}

	_, err = s.CreateAlert(ctx, alertType, violation.EntityType, violation.EntityID,
		severity, buildViolationMessage(violation), contextData)
	return err
}

// buildViolationMessage 构建告警描述
func buildViolationMessage(v models.ThresholdViolation) string {
	if v.Temperature != nil {
		return fmt.Sprintf("%s %s: temperature %.1f°C crossed %s boundary %.1f°C",
			v.EntityType, v.EntityID, *v.Temperature, v.ThresholdType, v.ThresholdValue)
	}
	if v.Humidity != nil {
		return fmt.Sprintf("%s %s: humidity %.1f%% crossed %s boundary %.1f%%",
			v.EntityType, v.EntityID, *v.Humidity, v.ThresholdType, v.ThresholdValue)
	}
	return fmt.Sprintf("%s %s: threshold %s crossed", v.EntityType, v.EntityID, v.ThresholdType)
}

// CreateAlert 直接创建告警（不参与去重）
// 业务规则：
// - 调用方记录的是独立事件：无论当前是否存在未解除告警，都新建一行
// - context_data 原样落库（JSONB 字符串），空串按 "{}" 存储
func (s *AlertService) CreateAlert(ctx context.Context, alertType models.AlertType, entityType, entityID string, severity models.AlertSeverity, message, contextData string) (*models.Alert, error) {
	if alertType == "" {
		return nil, fmt.Errorf("alert_type is required")
	}
	if entityType == "" || entityID == "" {
		return nil, fmt.Errorf("entity_type and entity_id are required")
	}
	if contextData == "" {
		contextData = "{}"
	}

	now := time.Now()
	alert := &models.Alert{
		AlertID:     uuid.New().String(),
		AlertType:   alertType,
		EntityType:  entityType,
		EntityID:    entityID,
		Severity:    severity,
		Status:      models.AlertStatusOpen,
		Message:     message,
		ContextData: contextData,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.alerts.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	s.logger.Info("Alert created",
		zap.String("alert_id", alert.AlertID),
		zap.String("alert_type", string(alertType)),
		zap.String("entity_id", entityID),
		zap.String("severity", string(severity)),
	)

	s.publishEvent(ctx, "alert.created", alert)
	s.refreshAlertCache(ctx, entityType, entityID)

	return alert, nil
}

// CreateEquipmentFailureAlert 创建设备故障告警
// 设备故障彼此独立，每次调用都记录一条新告警，不与既有告警合并
func (s *AlertService) CreateEquipmentFailureAlert(ctx context.Context, entityType, entityID, message string) (*models.Alert, error) {
	return s.CreateAlert(ctx, models.AlertTypeEquipmentFailure, entityType, entityID,
		models.AlertSeverityCritical, message, "")
}

// ============================================
// 生命周期管理
// ============================================

// AcknowledgeAlert 确认告警
// 业务规则：
// - 只能确认 open 状态的告警
// - 记录确认人和确认时间
func (s *AlertService) AcknowledgeAlert(ctx context.Context, alertID, acknowledgedBy string) error {
	if alertID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if acknowledgedBy == "" {
		return fmt.Errorf("acknowledged_by is required")
	}

	alert, err := s.alerts.GetAlert(ctx, alertID)
	if err != nil {
		return fmt.Errorf("failed to get alert: %w", err)
	}

	if !alert.Status.CanTransitionTo(models.AlertStatusAcknowledged) {
		return fmt.Errorf("cannot acknowledge alert in status %s: %w",
			alert.Status, models.ErrInvalidStateTransition)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":          string(models.AlertStatusAcknowledged),
		"acknowledged_at": now,
		"acknowledged_by": acknowledgedBy,
	}

	if err := s.alerts.UpdateAlert(ctx, alertID, updates); err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	s.logger.Info("Alert acknowledged",
		zap.String("alert_id", alertID),
		zap.String("acknowledged_by", acknowledgedBy),
	)

	alert.Status = models.AlertStatusAcknowledged
	alert.AcknowledgedAt = &now
	alert.AcknowledgedBy = &acknowledgedBy
	s.publishEvent(ctx, "alert.acknowledged", alert)
	s.refreshAlertCache(ctx, alert.EntityType, alert.EntityID)

	return nil
}

// ResolveAlert 解除告警
// 业务规则：
// - 只能解除 acknowledged 状态的告警（open 必须先确认）
// - 记录解除人、解除时间和处理说明；end_time 标记告警区间结束
// - 解除后告警退出去重范围，后续违规产生新告警
func (s *AlertService) ResolveAlert(ctx context.Context, alertID, resolvedBy string, resolutionNotes *string) error {
	if alertID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if resolvedBy == "" {
		return fmt.Errorf("resolved_by is required")
	}

	alert, err := s.alerts.GetAlert(ctx, alertID)
	if err != nil {
		return fmt.Errorf("failed to get alert: %w", err)
	}

	if !alert.Status.CanTransitionTo(models.AlertStatusResolved) {
		return fmt.Errorf("cannot resolve alert in status %s: %w",
			alert.Status, models.ErrInvalidStateTransition)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":      string(models.AlertStatusResolved),
		"resolved_at": now,
		"resolved_by": resolvedBy,
		"end_time":    now,
	}
	if resolutionNotes != nil {
		updates["resolution_notes"] = *resolutionNotes
	}

	if err := s.alerts.UpdateAlert(ctx, alertID, updates); err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}

	s.logger.Info("Alert resolved",
		zap.String("alert_id", alertID),
		zap.String("resolved_by", resolvedBy),
	)

	alert.Status = models.AlertStatusResolved
	alert.ResolvedAt = &now
	alert.ResolvedBy = &resolvedBy
	alert.ResolutionNotes = resolutionNotes
	alert.EndTime = &now
	s.publishEvent(ctx, "alert.resolved", alert)
	s.refreshAlertCache(ctx, alert.EntityType, alert.EntityID)

	return nil
}

// ============================================
// 查询方法
// ============================================

// GetAlert 获取单个告警
func (s *AlertService) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	if alertID == "" {
		return nil, fmt.Errorf("alert_id is required")
	}
	return s.alerts.GetAlert(ctx, alertID)
}

// GetAlertsByEntity 获取实体的全部告警（含已解除的历史告警）
func (s *AlertService) GetAlertsByEntity(ctx context.Context, entityType, entityID string) ([]*models.Alert, error) {
	if entityType == "" || entityID == "" {
		return nil, fmt.Errorf("entity_type and entity_id are required")
	}
	return s.alerts.ListAlertsByEntity(ctx, entityType, entityID)
}

// CountActiveAlertsForEntity 统计实体的活跃（open）告警数量
func (s *AlertService) CountActiveAlertsForEntity(ctx context.Context, entityType, entityID string) (int, error) {
	if entityType == "" || entityID == "" {
		return 0, fmt.Errorf("entity_type and entity_id are required")
	}
	return s.alerts.CountActiveAlerts(ctx, entityType, entityID)
}

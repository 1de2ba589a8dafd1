package models

import (
	"encoding/json"
	"time"
)

// EntityTypeFreezer 当前唯一的被监控实体类型
const EntityTypeFreezer = "Freezer"

// AlertType 告警类型（去重键的一部分）
type AlertType string

const (
	AlertTypeFreezerTemperature AlertType = "FREEZER_TEMPERATURE"
	AlertTypeEquipmentFailure   AlertType = "EQUIPMENT_FAILURE"
)

// AlertSeverity 告警级别
type AlertSeverity string

const (
	AlertSeverityWarning  AlertSeverity = "WARNING"
	AlertSeverityCritical AlertSeverity = "CRITICAL"
)

// AlertStatus 告警状态（三态单向状态机）
type AlertStatus string

const (
	AlertStatusOpen         AlertStatus = "open"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// alertTransitions 告警状态机转换表（open → acknowledged → resolved）
var alertTransitions = map[AlertStatus][]AlertStatus{
	AlertStatusOpen:         {AlertStatusAcknowledged},
	AlertStatusAcknowledged: {AlertStatusResolved},
	AlertStatusResolved:     {},
}

// CanTransitionTo 判断状态转换是否合法
func (s AlertStatus) CanTransitionTo(next AlertStatus) bool {
	for _, allowed := range alertTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Alert 告警记录（对应 alerts 表）
// 去重身份为 (entity_type, entity_id, alert_type)；resolved 告警保留为历史，不物理删除
type Alert struct {
	AlertID           string        `json:"alert_id" db:"alert_id"`
	AlertType         AlertType     `json:"alert_type" db:"alert_type"`
	EntityType        string        `json:"entity_type" db:"entity_type"`
	EntityID          string        `json:"entity_id" db:"entity_id"`
	Severity          AlertSeverity `json:"severity" db:"severity"`
	Status            AlertStatus   `json:"status" db:"status"`
	Message           string        `json:"message" db:"message"`
	ContextData       string        `json:"context_data" db:"context_data"` // JSONB
	DuplicateCount    int           `json:"duplicate_count" db:"duplicate_count"`
	LastDuplicateTime *time.Time    `json:"last_duplicate_time,omitempty" db:"last_duplicate_time"`
	AcknowledgedAt    *time.Time    `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	AcknowledgedBy    *string       `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	ResolvedAt        *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy        *string       `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolutionNotes   *string       `json:"resolution_notes,omitempty" db:"resolution_notes"`
	EndTime           *time.Time    `json:"end_time,omitempty" db:"end_time"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// AlertContext 告警上下文快照（JSONB 结构，原样存储供展示/审计）
type AlertContext struct {
	Temperature    *float64 `json:"temperature,omitempty"`
	Humidity       *float64 `json:"humidity,omitempty"`
	ThresholdValue *float64 `json:"thresholdValue,omitempty"`
	ThresholdType  string   `json:"thresholdType,omitempty"`
}

// Marshal 序列化为 JSONB 字符串
func (c *AlertContext) Marshal() (string, error) {
	if c == nil {
		return "{}", nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

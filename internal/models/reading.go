package models

import (
	"time"
)

// ReadingStatus 读数状态（摄取时计算，写入后不再修改）
type ReadingStatus string

const (
	ReadingStatusNormal   ReadingStatus = "NORMAL"
	ReadingStatusWarning  ReadingStatus = "WARNING"
	ReadingStatusCritical ReadingStatus = "CRITICAL"
)

// Reading 温湿度读数（对应 readings 表，只增不改）
type Reading struct {
	ReadingID          string        `json:"reading_id" db:"reading_id"`
	FreezerID          string        `json:"freezer_id" db:"freezer_id"`
	RecordedAt         time.Time     `json:"recorded_at" db:"recorded_at"`
	TemperatureCelsius *float64      `json:"temperature_celsius,omitempty" db:"temperature_celsius"`
	HumidityPercentage *float64      `json:"humidity_percentage,omitempty" db:"humidity_percentage"`
	TransmissionOK     bool          `json:"transmission_ok" db:"transmission_ok"`
	ErrorMessage       *string       `json:"error_message,omitempty" db:"error_message"`
	Status             ReadingStatus `json:"status" db:"status"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
}

// ThresholdViolation 阈值违规通知（摄取管线 → 告警分发队列）
type ThresholdViolation struct {
	EntityType     string        `json:"entity_type"`
	EntityID       string        `json:"entity_id"`
	Status         ReadingStatus `json:"status"`
	Temperature    *float64      `json:"temperature,omitempty"`
	Humidity       *float64      `json:"humidity,omitempty"`
	ThresholdType  ThresholdType `json:"threshold_type"`
	ThresholdValue float64       `json:"threshold_value"`
	RecordedAt     time.Time     `json:"recorded_at"`
}

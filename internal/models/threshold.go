package models

import (
	"time"
)

// ThresholdProfile 阈值策略（对应 threshold_profiles 表）
// 一旦被分配引用即视为不可变，管理员通过新建配置 + 新分配来调整策略
type ThresholdProfile struct {
	ProfileID           string     `json:"profile_id" db:"profile_id"`
	Name                string     `json:"name" db:"name"`
	WarningMin          float64    `json:"warning_min" db:"warning_min"`
	WarningMax          float64    `json:"warning_max" db:"warning_max"`
	CriticalMin         float64    `json:"critical_min" db:"critical_min"`
	CriticalMax         float64    `json:"critical_max" db:"critical_max"`
	HumidityWarningMin  *float64   `json:"humidity_warning_min,omitempty" db:"humidity_warning_min"`
	HumidityWarningMax  *float64   `json:"humidity_warning_max,omitempty" db:"humidity_warning_max"`
	MinExcursionMinutes int        `json:"min_excursion_minutes" db:"min_excursion_minutes"`
	MaxDurationMinutes  int        `json:"max_duration_minutes" db:"max_duration_minutes"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// DeviceProfileAssignment 冷柜与阈值策略的生效期绑定（对应 device_profile_assignments 表）
// 生效区间为 [effective_start, effective_end]，effective_end 为空表示开放区间
type DeviceProfileAssignment struct {
	AssignmentID   string     `json:"assignment_id" db:"assignment_id"`
	FreezerID      string     `json:"freezer_id" db:"freezer_id"`
	ProfileID      string     `json:"profile_id" db:"profile_id"`
	EffectiveStart time.Time  `json:"effective_start" db:"effective_start"`
	EffectiveEnd   *time.Time `json:"effective_end,omitempty" db:"effective_end"`
	IsDefault      bool       `json:"is_default" db:"is_default"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// ThresholdType 越界类型（标识读数越过了哪条界线）
type ThresholdType string

const (
	ThresholdWarningHigh  ThresholdType = "WARNING_HIGH"
	ThresholdWarningLow   ThresholdType = "WARNING_LOW"
	ThresholdCriticalHigh ThresholdType = "CRITICAL_HIGH"
	ThresholdCriticalLow  ThresholdType = "CRITICAL_LOW"
)

// Severity 根据越界类型推导告警级别
func (t ThresholdType) Severity() AlertSeverity {
	switch t {
	case ThresholdCriticalHigh, ThresholdCriticalLow:
		return AlertSeverityCritical
	default:
		return AlertSeverityWarning
	}
}

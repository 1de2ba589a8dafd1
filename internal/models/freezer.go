package models

// Freezer 冷柜信息（存储层级子系统拥有该表，这里只读）
type Freezer struct {
	FreezerID         string  `json:"freezer_id" db:"freezer_id"`
	Name              string  `json:"name" db:"name"`
	TargetTemperature float64 `json:"target_temperature" db:"target_temperature"`
	IsActive          bool    `json:"is_active" db:"is_active"`
}

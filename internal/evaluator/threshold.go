package evaluator

import (
	"coldwatch/internal/models"
)

// EvaluateStatus 阈值评估（纯函数，无任何 I/O）
// 规则：
// - profile 为空 → NORMAL（没有策略就没有违规）
// - 温度超出临界区间（< critical_min 或 > critical_max）→ CRITICAL
// - 温度触及警告边界（<= warning_min 或 >= warning_max，边界值含）→ WARNING
// - 湿度边界（如配置）按同样的含边界规则评估，只能升到 WARNING
func EvaluateStatus(temperature float64, humidity *float64, profile *models.ThresholdProfile) models.ReadingStatus {
	if profile == nil {
		return models.ReadingStatusNormal
	}

	if temperature < profile.CriticalMin || temperature > profile.CriticalMax {
		return models.ReadingStatusCritical
	}

	if temperature <= profile.WarningMin || temperature >= profile.WarningMax {
		return models.ReadingStatusWarning
	}

	// 湿度没有临界档，只能产生 WARNING
	if humidity != nil {
		if profile.HumidityWarningMin != nil && *humidity <= *profile.HumidityWarningMin {
			return models.ReadingStatusWarning
		}
		if profile.HumidityWarningMax != nil && *humidity >= *profile.HumidityWarningMax {
			return models.ReadingStatusWarning
		}
	}

	return models.ReadingStatusNormal
}

// DeriveThresholdType 推导越界类型和被越过的界线值
// 温度越界优先于湿度越界；返回 false 表示读数未越界
func DeriveThresholdType(temperature float64, humidity *float64, profile *models.ThresholdProfile) (models.ThresholdType, float64, bool) {
	if profile == nil {
		return "", 0, false
	}

	switch {
	case temperature < profile.CriticalMin:
		return models.ThresholdCriticalLow, profile.CriticalMin, true
	case temperature > profile.CriticalMax:
		return models.ThresholdCriticalHigh, profile.CriticalMax, true
	case temperature <= profile.WarningMin:
		return models.ThresholdWarningLow, profile.WarningMin, true
	case temperature >= profile.WarningMax:
		return models.ThresholdWarningHigh, profile.WarningMax, true
	}

	if humidity != nil {
		if profile.HumidityWarningMin != nil && *humidity <= *profile.HumidityWarningMin {
			return models.ThresholdWarningLow, *profile.HumidityWarningMin, true
		}
		if profile.HumidityWarningMax != nil && *humidity >= *profile.HumidityWarningMax {
			return models.ThresholdWarningHigh, *profile.HumidityWarningMax, true
		}
	}

	return "", 0, false
}

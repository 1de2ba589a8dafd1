package models

import (
	"time"
)

// CorrectiveActionStatus 整改单状态（单向状态机）
type CorrectiveActionStatus string

const (
	CorrectiveActionPending    CorrectiveActionStatus = "pending"
	CorrectiveActionInProgress CorrectiveActionStatus = "in_progress"
	CorrectiveActionCompleted  CorrectiveActionStatus = "completed"
)

// correctiveActionTransitions 整改单状态机转换表
// pending → in_progress → completed；in_progress → in_progress 允许（幂等更新）
// pending → completed 不允许，必须先进入 in_progress
var correctiveActionTransitions = map[CorrectiveActionStatus][]CorrectiveActionStatus{
	CorrectiveActionPending:    {CorrectiveActionInProgress},
	CorrectiveActionInProgress: {CorrectiveActionInProgress, CorrectiveActionCompleted},
	CorrectiveActionCompleted:  {},
}

// CanTransitionTo 判断状态转换是否合法
func (s CorrectiveActionStatus) CanTransitionTo(next CorrectiveActionStatus) bool {
	for _, allowed := range correctiveActionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsValid 判断是否为已知状态值
func (s CorrectiveActionStatus) IsValid() bool {
	switch s {
	case CorrectiveActionPending, CorrectiveActionInProgress, CorrectiveActionCompleted:
		return true
	}
	return false
}

// CorrectiveAction 整改工单（对应 corrective_actions 表）
// 与告警松耦合：仅通过 entity_id 关联，无外键约束
type CorrectiveAction struct {
	ActionID        string                 `json:"action_id" db:"action_id"`
	EntityID        string                 `json:"entity_id" db:"entity_id"`
	ActionType      string                 `json:"action_type" db:"action_type"`
	Description     string                 `json:"description" db:"description"`
	Status          CorrectiveActionStatus `json:"status" db:"status"`
	CreatedBy       string                 `json:"created_by" db:"created_by"`
	CreatedAt       time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at" db:"updated_at"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty" db:"completed_at"`
	CompletionNotes *string                `json:"completion_notes,omitempty" db:"completion_notes"`
}

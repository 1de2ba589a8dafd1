package models

import "errors"

// 错误分类（调用方通过 errors.Is 判断）
var (
	// ErrNotFound 引用的冷柜、阈值配置、告警或整改单不存在
	ErrNotFound = errors.New("not found")

	// ErrInvalidStateTransition 非法的状态机转换（如确认非 open 状态的告警）
	ErrInvalidStateTransition = errors.New("invalid state transition")
)

package service

import (
	"context"
	"fmt"
	"time"

	"coldwatch/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ActionStore 整改工单存储接口（由 repository.CorrectiveActionsRepository 实现）
type ActionStore interface {
	CreateAction(ctx context.Context, action *models.CorrectiveAction) error
	GetAction(ctx context.Context, actionID string) (*models.CorrectiveAction, error)
	UpdateAction(ctx context.Context, actionID string, updates map[string]interface{}) error
	ListActionsByEntity(ctx context.Context, entityID string) ([]*models.CorrectiveAction, error)
	ListActionsByStatus(ctx context.Context, status models.CorrectiveActionStatus) ([]*models.CorrectiveAction, error)
}

// CorrectiveActionService 整改工单服务层
// 状态机：pending → in_progress → completed（单向，不可跳级、不可回退）
type CorrectiveActionService struct {
	actions ActionStore
	logger  *zap.Logger
}

// NewCorrectiveActionService 创建整改工单服务
func NewCorrectiveActionService(actions ActionStore, logger *zap.Logger) *CorrectiveActionService {
	return &CorrectiveActionService{
		actions: actions,
		logger:  logger,
	}
}

// CreateCorrectiveAction 创建整改工单（初始状态固定为 pending）
func (s *CorrectiveActionService) CreateCorrectiveAction(
	ctx context.Context,
	entityID, actionType, description, createdBy string,
) (*models.CorrectiveAction, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity_id is required")
	}
	if description == "" {
		return nil, fmt.Errorf("description is required")
	}
	if createdBy == "" {
		return nil, fmt.Errorf("created_by is required")
	}

	now := time.Now()
	action := &models.CorrectiveAction{
		ActionID:    uuid.New().String(),
		EntityID:    entityID,
		ActionType:  actionType,
		Description: description,
		Status:      models.CorrectiveActionPending,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.actions.CreateAction(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to create corrective action: %w", err)
	}

	s.logger.Info("Corrective action created",
		zap.String("action_id", action.ActionID),
		zap.String("entity_id", entityID),
		zap.String("action_type", actionType),
	)

	return action, nil
}

// UpdateCorrectiveActionStatus 推进整改工单状态
// 业务规则：
// - 只接受 in_progress 作为目标状态（completed 必须走 CompleteCorrectiveAction）
// - pending → in_progress 合法；in_progress → in_progress 幂等
func (s *CorrectiveActionService) UpdateCorrectiveActionStatus(
	ctx context.Context,
	actionID string,
	next models.CorrectiveActionStatus,
) error {
	if actionID == "" {
		return fmt.Errorf("action_id is required")
	}
	if !next.IsValid() {
		return fmt.Errorf("invalid action status: %s", next)
	}
	if next == models.CorrectiveActionCompleted {
		return fmt.Errorf("completion requires notes, use CompleteCorrectiveAction: %w",
			models.ErrInvalidStateTransition)
	}

	action, err := s.actions.GetAction(ctx, actionID)
	if err != nil {
		return fmt.Errorf("failed to get corrective action: %w", err)
	}

	if !action.Status.CanTransitionTo(next) {
		return fmt.Errorf("cannot transition corrective action from %s to %s: %w",
			action.Status, next, models.ErrInvalidStateTransition)
	}

	updates := map[string]interface{}{
		"status": string(next),
	}

	if err := s.actions.UpdateAction(ctx, actionID, updates); err != nil {
		return fmt.Errorf("failed to update corrective action: %w", err)
	}

	s.logger.Info("Corrective action status updated",
		zap.String("action_id", actionID),
		zap.String("from", string(action.Status)),
		zap.String("to", string(next)),
	)

	return nil
}

// CompleteCorrectiveAction 完成整改工单
// 业务规则：
// - 只能从 in_progress 完成；pending 必须先进入 in_progress
// - 记录完成时间和完成说明
func (s *CorrectiveActionService) CompleteCorrectiveAction(
	ctx context.Context,
	actionID string,
	completionNotes *string,
) error {
	if actionID == "" {
		return fmt.Errorf("action_id is required")
	}

	action, err := s.actions.GetAction(ctx, actionID)
	if err != nil {
		return fmt.Errorf("failed to get corrective action: %w", err)
	}

	if !action.Status.CanTransitionTo(models.CorrectiveActionCompleted) {
		return fmt.Errorf("cannot complete corrective action from %s: %w",
			action.Status, models.ErrInvalidStateTransition)
	}

	updates := map[string]interface{}{
		"status":       string(models.CorrectiveActionCompleted),
		"completed_at": time.Now(),
	}
	if completionNotes != nil {
		updates["completion_notes"] = *completionNotes
	}

	if err := s.actions.UpdateAction(ctx, actionID, updates); err != nil {
		return fmt.Errorf("failed to complete corrective action: %w", err)
	}

	s.logger.Info("Corrective action completed",
		zap.String("action_id", actionID),
	)

	return nil
}

// GetCorrectiveAction 获取单个整改工单
func (s *CorrectiveActionService) GetCorrectiveAction(ctx context.Context, actionID string) (*models.CorrectiveAction, error) {
	if actionID == "" {
		return nil, fmt.Errorf("action_id is required")
	}
	return s.actions.GetAction(ctx, actionID)
}

// GetCorrectiveActionsByEntity 实体下的全部整改工单
func (s *CorrectiveActionService) GetCorrectiveActionsByEntity(ctx context.Context, entityID string) ([]*models.CorrectiveAction, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity_id is required")
	}
	return s.actions.ListActionsByEntity(ctx, entityID)
}

// GetCorrectiveActionsByStatus 按状态列出整改工单（工作队列视图）
func (s *CorrectiveActionService) GetCorrectiveActionsByStatus(ctx context.Context, status models.CorrectiveActionStatus) ([]*models.CorrectiveAction, error) {
	return s.actions.ListActionsByStatus(ctx, status)
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"coldwatch/internal/models"

	"go.uber.org/zap"
)

// CorrectiveActionsRepository 整改工单仓库
type CorrectiveActionsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCorrectiveActionsRepository 创建整改工单仓库
func NewCorrectiveActionsRepository(db *sql.DB, logger *zap.Logger) *CorrectiveActionsRepository {
	return &CorrectiveActionsRepository{
		db:     db,
		logger: logger,
	}
}

const actionColumns = `
		action_id,
		entity_id,
		action_type,
		description,
		status,
		created_by,
		created_at,
		updated_at,
		completed_at,
		completion_notes`

// scanAction 扫描单行整改工单（处理可空字段）
func scanAction(row interface {
	Scan(dest ...interface{}) error
}) (*models.CorrectiveAction, error) {
	var action models.CorrectiveAction
	var completedAt sql.NullTime
	var completionNotes sql.NullString

	err := row.Scan(
		&action.ActionID,
		&action.EntityID,
		&action.ActionType,
		&action.Description,
		&action.Status,
		&action.CreatedBy,
		&action.CreatedAt,
		&action.UpdatedAt,
		&completedAt,
		&completionNotes,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		action.CompletedAt = &completedAt.Time
	}
	if completionNotes.Valid {
		action.CompletionNotes = &completionNotes.String
	}

	return &action, nil
}

// CreateAction 创建整改工单
func (r *CorrectiveActionsRepository) CreateAction(ctx context.Context, action *models.CorrectiveAction) error {
	if action == nil {
		return fmt.Errorf("action is required")
	}
	if action.ActionID == "" {
		return fmt.Errorf("action_id is required")
	}
	if action.EntityID == "" {
		return fmt.Errorf("entity_id is required")
	}

	query := `
		INSERT INTO corrective_actions (
			action_id,
			entity_id,
			action_type,
			description,
			status,
			created_by,
			created_at,
			updated_at,
			completed_at,
			completion_notes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		action.ActionID,
		action.EntityID,
		action.ActionType,
		action.Description,
		action.Status,
		action.CreatedBy,
		action.CreatedAt,
		action.UpdatedAt,
		action.CompletedAt,
		action.CompletionNotes,
	)

	if err != nil {
		return fmt.Errorf("failed to create corrective action: %w", err)
	}

	return nil
}

// GetAction 根据 action_id 获取整改工单
func (r *CorrectiveActionsRepository) GetAction(ctx context.Context, actionID string) (*models.CorrectiveAction, error) {
	if actionID == "" {
		return nil, fmt.Errorf("action_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM corrective_actions
		WHERE action_id = $1
	`, actionColumns)

	action, err := scanAction(r.db.QueryRowContext(ctx, query, actionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("corrective action %s: %w", actionID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get corrective action: %w", err)
	}

	return action, nil
}

// UpdateAction 部分更新整改工单
// 业务规则：只允许更新白名单字段，状态迁移合法性由服务层保证
func (r *CorrectiveActionsRepository) UpdateAction(ctx context.Context, actionID string, updates map[string]interface{}) error {
	if actionID == "" {
		return fmt.Errorf("action_id is required")
	}
	if len(updates) == 0 {
		return fmt.Errorf("no fields to update")
	}

	allowedFields := map[string]bool{
		"status":           true,
		"description":      true,
		"completed_at":     true,
		"completion_notes": true,
	}

	setClauses := []string{}
	args := []interface{}{}
	argN := 1

	for field, value := range updates {
		if !allowedFields[field] {
			return fmt.Errorf("field %s is not allowed to update", field)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field, argN))
		args = append(args, value)
		argN++
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argN))
	args = append(args, time.Now())
	argN++

	args = append(args, actionID)

	query := fmt.Sprintf(`
		UPDATE corrective_actions
		SET %s
		WHERE action_id = $%d
	`, strings.Join(setClauses, ", "), argN)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update corrective action: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("corrective action %s: %w", actionID, models.ErrNotFound)
	}

	return nil
}

// ListActionsByEntity 实体下的全部整改工单（最早在前）
func (r *CorrectiveActionsRepository) ListActionsByEntity(ctx context.Context, entityID string) ([]*models.CorrectiveAction, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM corrective_actions
		WHERE entity_id = $1
		ORDER BY created_at, action_id
	`, actionColumns)

	return r.queryActions(ctx, query, entityID)
}

// ListActionsByStatus 按状态列出整改工单（工作队列视图）
func (r *CorrectiveActionsRepository) ListActionsByStatus(ctx context.Context, status models.CorrectiveActionStatus) ([]*models.CorrectiveAction, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid action status: %s", status)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM corrective_actions
		WHERE status = $1
		ORDER BY created_at, action_id
	`, actionColumns)

	return r.queryActions(ctx, query, string(status))
}

func (r *CorrectiveActionsRepository) queryActions(ctx context.Context, query string, args ...interface{}) ([]*models.CorrectiveAction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query corrective actions: %w", err)
	}
	defer rows.Close()

	actions := []*models.CorrectiveAction{}
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan corrective action: %w", err)
		}
		actions = append(actions, action)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate corrective actions: %w", err)
	}

	return actions, nil
}

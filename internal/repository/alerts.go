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

// AlertsRepository 告警仓库
type AlertsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertsRepository 创建告警仓库
func NewAlertsRepository(db *sql.DB, logger *zap.Logger) *AlertsRepository {
	return &AlertsRepository{
		db:     db,
		logger: logger,
	}
}

// AlertFilters 告警查询过滤条件
type AlertFilters struct {
	// 时间段过滤（created_at）
	StartTime *time.Time
	EndTime   *time.Time

	// 实体过滤
	EntityType *string
	EntityID   *string

	// 类型和级别过滤
	AlertType *string
	Severity  *string

	// 状态过滤
	Status   *string
	Statuses []string // IN 查询
}

const alertColumns = `
		alert_id,
		alert_type,
		entity_type,
		entity_id,
		severity,
		status,
		message,
		context_data,
		duplicate_count,
		last_duplicate_time,
		acknowledged_at,
		acknowledged_by,
		resolved_at,
		resolved_by,
		resolution_notes,
		end_time,
		created_at,
		updated_at`

// scanAlert 扫描单行告警（处理可空字段）
func scanAlert(row interface {
	Scan(dest ...interface{}) error
}) (*models.Alert, error) {
	var alert models.Alert
	var lastDuplicateTime, acknowledgedAt, resolvedAt, endTime sql.NullTime
	var acknowledgedBy, resolvedBy, resolutionNotes sql.NullString
	var contextData []byte

	err := row.Scan(
		&alert.AlertID,
		&alert.AlertType,
		&alert.EntityType,
		&alert.EntityID,
		&alert.Severity,
		&alert.Status,
		&alert.Message,
		&contextData,
		&alert.DuplicateCount,
		&lastDuplicateTime,
		&acknowledgedAt,
		&acknowledgedBy,
		&resolvedAt,
		&resolvedBy,
		&resolutionNotes,
		&endTime,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastDuplicateTime.Valid {
		alert.LastDuplicateTime = &lastDuplicateTime.Time
	}
	if acknowledgedAt.Valid {
		alert.AcknowledgedAt = &acknowledgedAt.Time
	}
	if acknowledgedBy.Valid {
		alert.AcknowledgedBy = &acknowledgedBy.String
	}
	if resolvedAt.Valid {
		alert.ResolvedAt = &resolvedAt.Time
	}
	if resolvedBy.Valid {
		alert.ResolvedBy = &resolvedBy.String
	}
	if resolutionNotes.Valid {
		alert.ResolutionNotes = &resolutionNotes.String
	}
	if endTime.Valid {
		alert.EndTime = &endTime.Time
	}

	if len(contextData) > 0 {
		alert.ContextData = string(contextData)
	} else {
		alert.ContextData = "{}"
	}

	return &alert, nil
}

// ============================================
// 基础 CRUD 操作
// ============================================

// CreateAlert 创建告警
func (r *AlertsRepository) CreateAlert(ctx context.Context, alert *models.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert is required")
	}
	if alert.AlertID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if alert.EntityType == "" || alert.EntityID == "" {
		return fmt.Errorf("entity_type and entity_id are required")
	}

	query := `
		INSERT INTO alerts (
			alert_id,
			alert_type,
			entity_type,
			entity_id,
			severity,
			status,
			message,
			context_data,
			duplicate_count,
			last_duplicate_time,
			acknowledged_at,
			acknowledged_by,
			resolved_at,
			resolved_by,
			resolution_notes,
			end_time,
			created_at,
			updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		alert.AlertID,
		alert.AlertType,
		alert.EntityType,
		alert.EntityID,
		alert.Severity,
		alert.Status,
		alert.Message,
		alert.ContextData,
		alert.DuplicateCount,
		alert.LastDuplicateTime,
		alert.AcknowledgedAt,
		alert.AcknowledgedBy,
		alert.ResolvedAt,
		alert.ResolvedBy,
		alert.ResolutionNotes,
		alert.EndTime,
		alert.CreatedAt,
		alert.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

// GetAlert 根据 alert_id 获取单个告警
func (r *AlertsRepository) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	if alertID == "" {
		return nil, fmt.Errorf("alert_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		WHERE alert_id = $1
	`, alertColumns)

	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, alertID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("alert %s: %w", alertID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	return alert, nil
}

// GetUnresolvedAlert 获取实体当前未解除的告警（去重检查用）
// 未解除 = status 为 open 或 acknowledged；没有时返回 (nil, nil)
func (r *AlertsRepository) GetUnresolvedAlert(ctx context.Context, entityType, entityID string, alertType models.AlertType) (*models.Alert, error) {
	if entityType == "" || entityID == "" {
		return nil, fmt.Errorf("entity_type and entity_id are required")
	}
	if alertType == "" {
		return nil, fmt.Errorf("alert_type is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		WHERE entity_type = $1
		  AND entity_id = $2
		  AND alert_type = $3
		  AND status <> 'resolved'
		ORDER BY created_at DESC, alert_id
		LIMIT 1
	`, alertColumns)

	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, entityType, entityID, alertType))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // 没有未解除的告警
		}
		return nil, fmt.Errorf("failed to query unresolved alert: %w", err)
	}

	return alert, nil
}

// IncrementDuplicate 重复违规计数 +1 并刷新 last_duplicate_time
// 仅作用于未解除的告警；告警身份、created_at、status 均不变
func (r *AlertsRepository) IncrementDuplicate(ctx context.Context, alertID string, at time.Time) error {
	if alertID == "" {
		return fmt.Errorf("alert_id is required")
	}

	query := `
		UPDATE alerts
		SET duplicate_count = duplicate_count + 1,
		    last_duplicate_time = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE alert_id = $2
		  AND status <> 'resolved'
	`

	result, err := r.db.ExecContext(ctx, query, at, alertID)
	if err != nil {
		return fmt.Errorf("failed to increment duplicate count: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("unresolved alert %s: %w", alertID, models.ErrNotFound)
	}

	return nil
}

// UpdateAlert 更新告警（部分更新，白名单字段）
func (r *AlertsRepository) UpdateAlert(ctx context.Context, alertID string, updates map[string]interface{}) error {
	if alertID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if len(updates) == 0 {
		return fmt.Errorf("updates cannot be empty")
	}

	// 允许更新的字段
	allowedFields := map[string]bool{
		"status":           true,
		"acknowledged_at":  true,
		"acknowledged_by":  true,
		"resolved_at":      true,
		"resolved_by":      true,
		"resolution_notes": true,
		"end_time":         true,
		"message":          true,
	}

	setParts := []string{}
	args := []interface{}{}
	argN := 1

	for field, value := range updates {
		if !allowedFields[field] {
			return fmt.Errorf("field '%s' is not allowed to update", field)
		}
		setParts = append(setParts, fmt.Sprintf("%s = $%d", field, argN))
		args = append(args, value)
		argN++
	}

	setParts = append(setParts, "updated_at = CURRENT_TIMESTAMP")

	args = append(args, alertID)
	query := fmt.Sprintf(`
		UPDATE alerts
		SET %s
		WHERE alert_id = $%d
	`, strings.Join(setParts, ", "), argN)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("alert %s: %w", alertID, models.ErrNotFound)
	}

	return nil
}

// ============================================
// 查询操作
// ============================================

// ListAlertsByEntity 获取实体的全部告警（任意状态），排序确定
func (r *AlertsRepository) ListAlertsByEntity(ctx context.Context, entityType, entityID string) ([]*models.Alert, error) {
	if entityType == "" || entityID == "" {
		return nil, fmt.Errorf("entity_type and entity_id are required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		WHERE entity_type = $1
		  AND entity_id = $2
		ORDER BY created_at DESC, alert_id
	`, alertColumns)

	rows, err := r.db.QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts by entity: %w", err)
	}
	defer rows.Close()

	alerts := []*models.Alert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return alerts, nil
}

// CountActiveAlerts 统计实体的活跃告警数量
// 活跃 = status 为 open；acknowledged 视为"处理中"，不计入
func (r *AlertsRepository) CountActiveAlerts(ctx context.Context, entityType, entityID string) (int, error) {
	if entityType == "" || entityID == "" {
		return 0, fmt.Errorf("entity_type and entity_id are required")
	}

	query := `
		SELECT COUNT(*)
		FROM alerts
		WHERE entity_type = $1
		  AND entity_id = $2
		  AND status = 'open'
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, entityType, entityID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active alerts: %w", err)
	}

	return count, nil
}

// buildWhereClause 构建 WHERE 子句（用于 SearchAlerts）
func (r *AlertsRepository) buildWhereClause(filters AlertFilters, args *[]interface{}, argN *int) []string {
	where := []string{}

	if filters.StartTime != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", *argN))
		*args = append(*args, *filters.StartTime)
		*argN++
	}
	if filters.EndTime != nil {
		where = append(where, fmt.Sprintf("created_at <= $%d", *argN))
		*args = append(*args, *filters.EndTime)
		*argN++
	}

	if filters.EntityType != nil {
		where = append(where, fmt.Sprintf("entity_type = $%d", *argN))
		*args = append(*args, *filters.EntityType)
		*argN++
	}
	if filters.EntityID != nil {
		where = append(where, fmt.Sprintf("entity_id = $%d", *argN))
		*args = append(*args, *filters.EntityID)
		*argN++
	}

	if filters.AlertType != nil {
		where = append(where, fmt.Sprintf("alert_type = $%d", *argN))
		*args = append(*args, *filters.AlertType)
		*argN++
	}
	if filters.Severity != nil {
		where = append(where, fmt.Sprintf("severity = $%d", *argN))
		*args = append(*args, *filters.Severity)
		*argN++
	}

	if filters.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", *argN))
		*args = append(*args, *filters.Status)
		*argN++
	}
	if len(filters.Statuses) > 0 {
		placeholders := make([]string, len(filters.Statuses))
		for i := range filters.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", *argN)
			*args = append(*args, filters.Statuses[i])
			*argN++
		}
		where = append(where, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}

	return where
}

// SearchAlerts 多条件告警检索（含已解除的历史告警），支持分页
func (r *AlertsRepository) SearchAlerts(ctx context.Context, filters AlertFilters, page, size int) ([]*models.Alert, int, error) {
	args := []interface{}{}
	argN := 1
	where := r.buildWhereClause(filters, &args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	// 计算总数
	queryCount := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM alerts
		%s
	`, whereClause)

	var total int
	err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	// 分页处理
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		%s
		ORDER BY created_at DESC, alert_id
		LIMIT $%d OFFSET $%d
	`, alertColumns, whereClause, argN, argN+1)

	args = append(args, size, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []*models.Alert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return alerts, total, nil
}

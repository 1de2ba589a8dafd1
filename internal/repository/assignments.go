package repository

import (
	"context"
	"database/sql"
	"fmt"

	"coldwatch/internal/models"

	"go.uber.org/zap"
)

// AssignmentsRepository 冷柜-策略分配仓库
type AssignmentsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAssignmentsRepository 创建分配仓库
func NewAssignmentsRepository(db *sql.DB, logger *zap.Logger) *AssignmentsRepository {
	return &AssignmentsRepository{
		db:     db,
		logger: logger,
	}
}

// CreateAssignment 创建分配记录（管理员操作）
func (r *AssignmentsRepository) CreateAssignment(ctx context.Context, assignment *models.DeviceProfileAssignment) error {
	if assignment == nil {
		return fmt.Errorf("assignment is required")
	}
	if assignment.AssignmentID == "" {
		return fmt.Errorf("assignment_id is required")
	}
	if assignment.FreezerID == "" {
		return fmt.Errorf("freezer_id is required")
	}
	if assignment.ProfileID == "" {
		return fmt.Errorf("profile_id is required")
	}

	query := `
		INSERT INTO device_profile_assignments (
			assignment_id,
			freezer_id,
			profile_id,
			effective_start,
			effective_end,
			is_default,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		assignment.AssignmentID,
		assignment.FreezerID,
		assignment.ProfileID,
		assignment.EffectiveStart,
		assignment.EffectiveEnd,
		assignment.IsDefault,
		assignment.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create profile assignment: %w", err)
	}

	return nil
}

// ListAssignmentsForFreezer 单次查询返回冷柜的全部分配记录
// 排序由解析器在内存中完成，这里只保证快照一致性
func (r *AssignmentsRepository) ListAssignmentsForFreezer(ctx context.Context, freezerID string) ([]models.DeviceProfileAssignment, error) {
	if freezerID == "" {
		return nil, fmt.Errorf("freezer_id is required")
	}

	query := `
		SELECT
			assignment_id,
			freezer_id,
			profile_id,
			effective_start,
			effective_end,
			is_default,
			created_at
		FROM device_profile_assignments
		WHERE freezer_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, freezerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query profile assignments: %w", err)
	}
	defer rows.Close()

	assignments := []models.DeviceProfileAssignment{}
	for rows.Next() {
		var assignment models.DeviceProfileAssignment
		var effectiveEnd sql.NullTime

		err := rows.Scan(
			&assignment.AssignmentID,
			&assignment.FreezerID,
			&assignment.ProfileID,
			&assignment.EffectiveStart,
			&effectiveEnd,
			&assignment.IsDefault,
			&assignment.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile assignment: %w", err)
		}

		if effectiveEnd.Valid {
			assignment.EffectiveEnd = &effectiveEnd.Time
		}

		assignments = append(assignments, assignment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profile assignments: %w", err)
	}

	return assignments, nil
}

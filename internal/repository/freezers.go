package repository

import (
	"context"
	"database/sql"
	"fmt"

	"coldwatch/internal/models"

	"go.uber.org/zap"
)

// FreezersRepository 冷柜信息仓库（freezers 表由存储层级子系统拥有，这里只读）
type FreezersRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFreezersRepository 创建冷柜信息仓库
func NewFreezersRepository(db *sql.DB, logger *zap.Logger) *FreezersRepository {
	return &FreezersRepository{
		db:     db,
		logger: logger,
	}
}

// GetFreezer 根据 freezer_id 获取冷柜信息
func (r *FreezersRepository) GetFreezer(ctx context.Context, freezerID string) (*models.Freezer, error) {
	if freezerID == "" {
		return nil, fmt.Errorf("freezer_id is required")
	}

	query := `
		SELECT freezer_id, name, target_temperature, is_active
		FROM freezers
		WHERE freezer_id = $1
	`

	var freezer models.Freezer
	err := r.db.QueryRowContext(ctx, query, freezerID).Scan(
		&freezer.FreezerID,
		&freezer.Name,
		&freezer.TargetTemperature,
		&freezer.IsActive,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("freezer %s: %w", freezerID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get freezer: %w", err)
	}

	return &freezer, nil
}

// ListActiveFreezers 列出全部在役冷柜
func (r *FreezersRepository) ListActiveFreezers(ctx context.Context) ([]*models.Freezer, error) {
	query := `
		SELECT freezer_id, name, target_temperature, is_active
		FROM freezers
		WHERE is_active = true
		ORDER BY name, freezer_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query freezers: %w", err)
	}
	defer rows.Close()

	freezers := []*models.Freezer{}
	for rows.Next() {
		var freezer models.Freezer
		err := rows.Scan(
			&freezer.FreezerID,
			&freezer.Name,
			&freezer.TargetTemperature,
			&freezer.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan freezer: %w", err)
		}
		freezers = append(freezers, &freezer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate freezers: %w", err)
	}

	return freezers, nil
}

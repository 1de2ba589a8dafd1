package repository

import (
	"context"
	"database/sql"
	"fmt"

	"coldwatch/internal/models"

	"go.uber.org/zap"
)

// ThresholdProfilesRepository 阈值策略仓库
type ThresholdProfilesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewThresholdProfilesRepository 创建阈值策略仓库
func NewThresholdProfilesRepository(db *sql.DB, logger *zap.Logger) *ThresholdProfilesRepository {
	return &ThresholdProfilesRepository{
		db:     db,
		logger: logger,
	}
}

const profileColumns = `
		profile_id,
		name,
		warning_min,
		warning_max,
		critical_min,
		critical_max,
		humidity_warning_min,
		humidity_warning_max,
		min_excursion_minutes,
		max_duration_minutes,
		created_at,
		updated_at`

// scanProfile 扫描单行阈值策略（处理可空湿度边界）
func scanProfile(row interface {
	Scan(dest ...interface{}) error
}) (*models.ThresholdProfile, error) {
	var profile models.ThresholdProfile
	var humidityMin, humidityMax sql.NullFloat64

	err := row.Scan(
		&profile.ProfileID,
		&profile.Name,
		&profile.WarningMin,
		&profile.WarningMax,
		&profile.CriticalMin,
		&profile.CriticalMax,
		&humidityMin,
		&humidityMax,
		&profile.MinExcursionMinutes,
		&profile.MaxDurationMinutes,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if humidityMin.Valid {
		profile.HumidityWarningMin = &humidityMin.Float64
	}
	if humidityMax.Valid {
		profile.HumidityWarningMax = &humidityMax.Float64
	}

	return &profile, nil
}

// CreateProfile 创建阈值策略（管理员操作）
func (r *ThresholdProfilesRepository) CreateProfile(ctx context.Context, profile *models.ThresholdProfile) error {
	if profile == nil {
		return fmt.Errorf("profile is required")
	}
	if profile.ProfileID == "" {
		return fmt.Errorf("profile_id is required")
	}
	if profile.Name == "" {
		return fmt.Errorf("name is required")
	}

	query := `
		INSERT INTO threshold_profiles (
			profile_id,
			name,
			warning_min,
			warning_max,
			critical_min,
			critical_max,
			humidity_warning_min,
			humidity_warning_max,
			min_excursion_minutes,
			max_duration_minutes,
			created_at,
			updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		profile.ProfileID,
		profile.Name,
		profile.WarningMin,
		profile.WarningMax,
		profile.CriticalMin,
		profile.CriticalMax,
		profile.HumidityWarningMin,
		profile.HumidityWarningMax,
		profile.MinExcursionMinutes,
		profile.MaxDurationMinutes,
		profile.CreatedAt,
		profile.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create threshold profile: %w", err)
	}

	return nil
}

// GetProfile 根据 profile_id 获取阈值策略
func (r *ThresholdProfilesRepository) GetProfile(ctx context.Context, profileID string) (*models.ThresholdProfile, error) {
	if profileID == "" {
		return nil, fmt.Errorf("profile_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM threshold_profiles
		WHERE profile_id = $1
	`, profileColumns)

	profile, err := scanProfile(r.db.QueryRowContext(ctx, query, profileID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("threshold profile %s: %w", profileID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get threshold profile: %w", err)
	}

	return profile, nil
}

// ListProfiles 列出全部阈值策略
func (r *ThresholdProfilesRepository) ListProfiles(ctx context.Context) ([]*models.ThresholdProfile, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM threshold_profiles
		ORDER BY name, profile_id
	`, profileColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query threshold profiles: %w", err)
	}
	defer rows.Close()

	profiles := []*models.ThresholdProfile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan threshold profile: %w", err)
		}
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate threshold profiles: %w", err)
	}

	return profiles, nil
}

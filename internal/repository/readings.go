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

// ReadingsRepository 读数仓库（readings 表只增不改）
type ReadingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReadingsRepository 创建读数仓库
func NewReadingsRepository(db *sql.DB, logger *zap.Logger) *ReadingsRepository {
	return &ReadingsRepository{
		db:     db,
		logger: logger,
	}
}

const readingColumns = `
		reading_id,
		freezer_id,
		recorded_at,
		temperature_celsius,
		humidity_percentage,
		transmission_ok,
		error_message,
		status,
		created_at`

// scanReading 扫描单行读数（处理可空字段）
func scanReading(row interface {
	Scan(dest ...interface{}) error
}) (*models.Reading, error) {
	var reading models.Reading
	var temperature, humidity sql.NullFloat64
	var errorMessage sql.NullString

	err := row.Scan(
		&reading.ReadingID,
		&reading.FreezerID,
		&reading.RecordedAt,
		&temperature,
		&humidity,
		&reading.TransmissionOK,
		&errorMessage,
		&reading.Status,
		&reading.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if temperature.Valid {
		reading.TemperatureCelsius = &temperature.Float64
	}
	if humidity.Valid {
		reading.HumidityPercentage = &humidity.Float64
	}
	if errorMessage.Valid {
		reading.ErrorMessage = &errorMessage.String
	}

	return &reading, nil
}

// CreateReading 写入读数（传输失败的读数也原样记录）
func (r *ReadingsRepository) CreateReading(ctx context.Context, reading *models.Reading) error {
	if reading == nil {
		return fmt.Errorf("reading is required")
	}
	if reading.ReadingID == "" {
		return fmt.Errorf("reading_id is required")
	}
	if reading.FreezerID == "" {
		return fmt.Errorf("freezer_id is required")
	}

	query := `
		INSERT INTO readings (
			reading_id,
			freezer_id,
			recorded_at,
			temperature_celsius,
			humidity_percentage,
			transmission_ok,
			error_message,
			status,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		reading.ReadingID,
		reading.FreezerID,
		reading.RecordedAt,
		reading.TemperatureCelsius,
		reading.HumidityPercentage,
		reading.TransmissionOK,
		reading.ErrorMessage,
		reading.Status,
		reading.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create reading: %w", err)
	}

	return nil
}

// GetReading 根据 reading_id 获取单条读数
func (r *ReadingsRepository) GetReading(ctx context.Context, readingID string) (*models.Reading, error) {
	if readingID == "" {
		return nil, fmt.Errorf("reading_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM readings
		WHERE reading_id = $1
	`, readingColumns)

	reading, err := scanReading(r.db.QueryRowContext(ctx, query, readingID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("reading %s: %w", readingID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get reading: %w", err)
	}

	return reading, nil
}

// GetLatestReading 获取冷柜最近一条读数；没有时返回 (nil, nil)
func (r *ReadingsRepository) GetLatestReading(ctx context.Context, freezerID string) (*models.Reading, error) {
	if freezerID == "" {
		return nil, fmt.Errorf("freezer_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM readings
		WHERE freezer_id = $1
		ORDER BY recorded_at DESC, reading_id
		LIMIT 1
	`, readingColumns)

	reading, err := scanReading(r.db.QueryRowContext(ctx, query, freezerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}

	return reading, nil
}

// ListReadingsByFreezer 时间段内的读数历史（分页，最新在前）
func (r *ReadingsRepository) ListReadingsByFreezer(ctx context.Context, freezerID string, from, to *time.Time, page, size int) ([]*models.Reading, int, error) {
	if freezerID == "" {
		return nil, 0, fmt.Errorf("freezer_id is required")
	}

	where := []string{"freezer_id = $1"}
	args := []interface{}{freezerID}
	argN := 2

	if from != nil {
		where = append(where, fmt.Sprintf("recorded_at >= $%d", argN))
		args = append(args, *from)
		argN++
	}
	if to != nil {
		where = append(where, fmt.Sprintf("recorded_at <= $%d", argN))
		args = append(args, *to)
		argN++
	}

	whereClause := "WHERE " + strings.Join(where, " AND ")

	// 计算总数
	queryCount := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM readings
		%s
	`, whereClause)

	var total int
	err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count readings: %w", err)
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
		FROM readings
		%s
		ORDER BY recorded_at DESC, reading_id
		LIMIT $%d OFFSET $%d
	`, readingColumns, whereClause, argN, argN+1)

	args = append(args, size, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	readings := []*models.Reading{}
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate readings: %w", err)
	}

	return readings, total, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"coldwatch/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockAlertsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *AlertsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewAlertsRepository(db, logger)

	return db, mock, repo
}

var alertColumnNames = []string{
	"alert_id", "alert_type", "entity_type", "entity_id", "severity",
	"status", "message", "context_data", "duplicate_count", "last_duplicate_time",
	"acknowledged_at", "acknowledged_by", "resolved_at", "resolved_by",
	"resolution_notes", "end_time", "created_at", "updated_at",
}

// ============================================
// 基础 CRUD 操作测试
// ============================================

func TestCreateAlert_Success(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	alertID := uuid.New().String()
	now := time.Now()

	alert := &models.Alert{
		AlertID:     alertID,
		AlertType:   models.AlertTypeFreezerTemperature,
		EntityType:  models.EntityTypeFreezer,
		EntityID:    "freezer-100",
		Severity:    models.AlertSeverityCritical,
		Status:      models.AlertStatusOpen,
		Message:     "temperature out of range",
		ContextData: `{"temperature": -55.0}`,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectExec(`INSERT INTO alerts`).
		WithArgs(
			alertID, models.AlertTypeFreezerTemperature, models.EntityTypeFreezer, "freezer-100",
			models.AlertSeverityCritical, models.AlertStatusOpen, "temperature out of range",
			`{"temperature": -55.0}`, 0, nil, nil, nil, nil, nil, nil, nil, now, now,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateAlert(ctx, alert)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAlert_MissingEntity(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	alert := &models.Alert{
		AlertID: uuid.New().String(),
	}

	err := repo.CreateAlert(ctx, alert)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "entity_type and entity_id are required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAlert_Success(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	alertID := uuid.New().String()
	now := time.Now()

	rows := sqlmock.NewRows(alertColumnNames).AddRow(
		alertID, "FREEZER_TEMPERATURE", "Freezer", "freezer-100", "CRITICAL",
		"open", "temperature out of range", []byte(`{"temperature": -55.0}`), 0, nil,
		nil, nil, nil, nil, nil, nil, now, now,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs(alertID).
		WillReturnRows(rows)

	alert, err := repo.GetAlert(ctx, alertID)

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, alertID, alert.AlertID)
	assert.Equal(t, models.AlertTypeFreezerTemperature, alert.AlertType)
	assert.Equal(t, models.AlertStatusOpen, alert.Status)
	assert.Equal(t, `{"temperature": -55.0}`, alert.ContextData)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAlert_NotFound(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	alertID := uuid.New().String()

	mock.ExpectQuery(`SELECT`).
		WithArgs(alertID).
		WillReturnError(sql.ErrNoRows)

	alert, err := repo.GetAlert(ctx, alertID)

	assert.Error(t, err)
	assert.Nil(t, alert)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// 去重查询测试
// ============================================

func TestGetUnresolvedAlert_Found(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	alertID := uuid.New().String()
	now := time.Now()

	rows := sqlmock.NewRows(alertColumnNames).AddRow(
		alertID, "FREEZER_TEMPERATURE", "Freezer", "freezer-100", "WARNING",
		"acknowledged", "temperature warning", []byte(`{}`), 3, now,
		now, "user-1", nil, nil, nil, nil, now, now,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs(models.EntityTypeFreezer, "freezer-100", models.AlertTypeFreezerTemperature).
		WillReturnRows(rows)

	alert, err := repo.GetUnresolvedAlert(ctx, models.EntityTypeFreezer, "freezer-100", models.AlertTypeFreezerTemperature)

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, alertID, alert.AlertID)
	assert.Equal(t, 3, alert.DuplicateCount)
	// 已确认但未解除的告警仍是去重目标
	assert.Equal(t, models.AlertStatusAcknowledged, alert.Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUnresolvedAlert_None(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectQuery(`SELECT`).
		WithArgs(models.EntityTypeFreezer, "freezer-100", models.AlertTypeFreezerTemperature).
		WillReturnError(sql.ErrNoRows)

	alert, err := repo.GetUnresolvedAlert(ctx, models.EntityTypeFreezer, "freezer-100", models.AlertTypeFreezerTemperature)

	require.NoError(t, err)
	assert.Nil(t, alert)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementDuplicate_Success(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	alertID := uuid.New().String()
	at := time.Now()

	mock.ExpectExec(`UPDATE alerts`).
		WithArgs(at, alertID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.IncrementDuplicate(ctx, alertID, at)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementDuplicate_AlreadyResolved(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	alertID := uuid.New().String()
	at := time.Now()

	// status <> 'resolved' 条件不满足时影响 0 行
	mock.ExpectExec(`UPDATE alerts`).
		WithArgs(at, alertID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.IncrementDuplicate(ctx, alertID, at)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// 更新操作测试
// ============================================

func TestUpdateAlert_Success(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	alertID := uuid.New().String()

	updates := map[string]interface{}{
		"status": string(models.AlertStatusAcknowledged),
	}

	mock.ExpectExec(`UPDATE alerts`).
		WithArgs("acknowledged", alertID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateAlert(ctx, alertID, updates)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAlert_DisallowedField(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	alertID := uuid.New().String()

	updates := map[string]interface{}{
		"duplicate_count": 99,
	}

	err := repo.UpdateAlert(ctx, alertID, updates)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed to update")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAlert_NotFound(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	alertID := uuid.New().String()

	updates := map[string]interface{}{
		"status": string(models.AlertStatusResolved),
	}

	mock.ExpectExec(`UPDATE alerts`).
		WithArgs("resolved", alertID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateAlert(ctx, alertID, updates)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// 查询操作测试
// ============================================

func TestListAlertsByEntity_Success(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	alertID1 := uuid.New().String()
	alertID2 := uuid.New().String()
	now := time.Now()

	rows := sqlmock.NewRows(alertColumnNames).
		AddRow(alertID1, "FREEZER_TEMPERATURE", "Freezer", "freezer-100", "CRITICAL",
			"open", "critical excursion", []byte(`{}`), 0, nil,
			nil, nil, nil, nil, nil, nil, now, now).
		AddRow(alertID2, "FREEZER_TEMPERATURE", "Freezer", "freezer-100", "WARNING",
			"resolved", "warning excursion", []byte(`{}`), 2, nil,
			now, "user-1", now, "user-1", "sensor recalibrated", now, now.Add(-time.Hour), now)

	mock.ExpectQuery(`SELECT`).
		WithArgs(models.EntityTypeFreezer, "freezer-100").
		WillReturnRows(rows)

	alerts, err := repo.ListAlertsByEntity(ctx, models.EntityTypeFreezer, "freezer-100")

	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, alertID1, alerts[0].AlertID)
	assert.Equal(t, models.AlertStatusResolved, alerts[1].Status)
	require.NotNil(t, alerts[1].ResolutionNotes)
	assert.Equal(t, "sensor recalibrated", *alerts[1].ResolutionNotes)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountActiveAlerts_Success(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(2)
	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs(models.EntityTypeFreezer, "freezer-100").
		WillReturnRows(countRows)

	count, err := repo.CountActiveAlerts(ctx, models.EntityTypeFreezer, "freezer-100")

	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchAlerts_WithFilters(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	entityID := "freezer-100"
	status := "resolved"
	startTime := time.Now().Add(-24 * time.Hour)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs(startTime, entityID, status).
		WillReturnRows(countRows)

	now := time.Now()
	listRows := sqlmock.NewRows(alertColumnNames).
		AddRow(uuid.New().String(), "FREEZER_TEMPERATURE", "Freezer", entityID, "WARNING",
			"resolved", "warning excursion", []byte(`{}`), 0, nil,
			now, "user-1", now, "user-1", nil, now, now, now)

	mock.ExpectQuery(`SELECT`).
		WithArgs(startTime, entityID, status, 20, 0).
		WillReturnRows(listRows)

	filters := AlertFilters{
		StartTime: &startTime,
		EntityID:  &entityID,
		Status:    &status,
	}
	alerts, total, err := repo.SearchAlerts(ctx, filters, 1, 20)

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, alerts, 1)
	assert.Equal(t, entityID, alerts[0].EntityID)

	require.NoError(t, mock.ExpectationsWereMet())
}

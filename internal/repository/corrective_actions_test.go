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

func setupMockActionsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *CorrectiveActionsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewCorrectiveActionsRepository(db, logger)

	return db, mock, repo
}

var actionColumnNames = []string{
	"action_id", "entity_id", "action_type", "description", "status",
	"created_by", "created_at", "updated_at", "completed_at", "completion_notes",
}

func TestCreateAction_Success(t *testing.T) {
	db, mock, repo := setupMockActionsDB(t)
	defer db.Close()

	ctx := context.Background()
	actionID := uuid.New().String()
	now := time.Now()

	action := &models.CorrectiveAction{
		ActionID:    actionID,
		EntityID:    "freezer-100",
		ActionType:  "RECALIBRATE_SENSOR",
		Description: "recalibrate the door sensor",
		Status:      models.CorrectiveActionPending,
		CreatedBy:   "user-1",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectExec(`INSERT INTO corrective_actions`).
		WithArgs(actionID, "freezer-100", "RECALIBRATE_SENSOR", "recalibrate the door sensor",
			models.CorrectiveActionPending, "user-1", now, now, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateAction(ctx, action)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAction_MissingEntityID(t *testing.T) {
	db, mock, repo := setupMockActionsDB(t)
	defer db.Close()

	ctx := context.Background()
	action := &models.CorrectiveAction{
		ActionID: uuid.New().String(),
	}

	err := repo.CreateAction(ctx, action)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "entity_id is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAction_Success(t *testing.T) {
	db, mock, repo := setupMockActionsDB(t)
	defer db.Close()

	ctx := context.Background()
	actionID := uuid.New().String()
	now := time.Now()

	rows := sqlmock.NewRows(actionColumnNames).AddRow(
		actionID, "freezer-100", "RECALIBRATE_SENSOR", "recalibrate the door sensor",
		"in_progress", "user-1", now, now, nil, nil,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs(actionID).
		WillReturnRows(rows)

	action, err := repo.GetAction(ctx, actionID)

	require.NoError(t, err)
	require.NotNil(t, action)
	assert.Equal(t, actionID, action.ActionID)
	assert.Equal(t, models.CorrectiveActionInProgress, action.Status)
	assert.Nil(t, action.CompletedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAction_NotFound(t *testing.T) {
	db, mock, repo := setupMockActionsDB(t)
	defer db.Close()

	ctx := context.Background()
	actionID := uuid.New().String()

	mock.ExpectQuery(`SELECT`).
		WithArgs(actionID).
		WillReturnError(sql.ErrNoRows)

	action, err := repo.GetAction(ctx, actionID)

	assert.Error(t, err)
	assert.Nil(t, action)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAction_Success(t *testing.T) {
	db, mock, repo := setupMockActionsDB(t)
	defer db.Close()

	ctx := context.Background()
	actionID := uuid.New().String()

	updates := map[string]interface{}{
		"status": string(models.CorrectiveActionInProgress),
	}

	mock.ExpectExec(`UPDATE corrective_actions`).
		WithArgs("in_progress", sqlmock.AnyArg(), actionID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateAction(ctx, actionID, updates)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAction_DisallowedField(t *testing.T) {
	db, mock, repo := setupMockActionsDB(t)
	defer db.Close()

	ctx := context.Background()
	actionID := uuid.New().String()

	updates := map[string]interface{}{
		"created_by": "someone-else",
	}

	err := repo.UpdateAction(ctx, actionID, updates)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed to update")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAction_NotFound(t *testing.T) {
	db, mock, repo := setupMockActionsDB(t)
	defer db.Close()

	ctx := context.Background()
	actionID := uuid.New().String()

	updates := map[string]interface{}{
		"status": string(models.CorrectiveActionInProgress),
	}

	mock.ExpectExec(`UPDATE corrective_actions`).
		WithArgs("in_progress", sqlmock.AnyArg(), actionID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateAction(ctx, actionID, updates)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListActionsByStatus_Success(t *testing.T) {
	db, mock, repo := setupMockActionsDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()

	rows := sqlmock.NewRows(actionColumnNames).
		AddRow(uuid.New().String(), "freezer-100", "RECALIBRATE_SENSOR", "recalibrate",
			"pending", "user-1", now, now, nil, nil).
		AddRow(uuid.New().String(), "freezer-200", "REPLACE_DOOR_SEAL", "replace the seal",
			"pending", "user-2", now, now, nil, nil)

	mock.ExpectQuery(`SELECT`).
		WithArgs("pending").
		WillReturnRows(rows)

	actions, err := repo.ListActionsByStatus(ctx, models.CorrectiveActionPending)

	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "freezer-100", actions[0].EntityID)
	assert.Equal(t, "freezer-200", actions[1].EntityID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListActionsByStatus_InvalidStatus(t *testing.T) {
	db, mock, repo := setupMockActionsDB(t)
	defer db.Close()

	ctx := context.Background()

	_, err := repo.ListActionsByStatus(ctx, models.CorrectiveActionStatus("cancelled"))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid action status")

	require.NoError(t, mock.ExpectationsWereMet())
}

package evaluator

import (
	"context"
	"testing"
	"time"

	"coldwatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAssignmentStore struct {
	assignments []models.DeviceProfileAssignment
	err         error
}

func (f *fakeAssignmentStore) ListAssignmentsForFreezer(ctx context.Context, freezerID string) ([]models.DeviceProfileAssignment, error) {
	return f.assignments, f.err
}

type fakeProfileStore struct {
	profiles map[string]*models.ThresholdProfile
}

func (f *fakeProfileStore) GetProfile(ctx context.Context, profileID string) (*models.ThresholdProfile, error) {
	p, ok := f.profiles[profileID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return p, nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestSelectAssignment_NoAssignments(t *testing.T) {
	assert.Nil(t, SelectAssignment(nil, time.Now()))
}

func TestSelectAssignment_OpenEndedWindow(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assignments := []models.DeviceProfileAssignment{
		{AssignmentID: "a1", ProfileID: "p1", EffectiveStart: start},
	}

	selected := SelectAssignment(assignments, start.Add(time.Hour))
	require.NotNil(t, selected)
	assert.Equal(t, "a1", selected.AssignmentID)

	// 生效时间之前不匹配
	assert.Nil(t, SelectAssignment(assignments, start.Add(-time.Hour)))
}

func TestSelectAssignment_OverrideBeatsDefault(t *testing.T) {
	// 临时覆盖策略（如除霜期间）胜过重叠的长期默认策略
	defaultStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	overrideStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	overrideEnd := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	assignments := []models.DeviceProfileAssignment{
		{AssignmentID: "default", ProfileID: "p-default", EffectiveStart: defaultStart, IsDefault: true},
		{AssignmentID: "override", ProfileID: "p-defrost", EffectiveStart: overrideStart, EffectiveEnd: timePtr(overrideEnd), IsDefault: false},
	}

	// 覆盖期内选中覆盖策略
	selected := SelectAssignment(assignments, overrideStart.Add(2*time.Hour))
	require.NotNil(t, selected)
	assert.Equal(t, "override", selected.AssignmentID)

	// 覆盖期结束后回到默认策略，无需删除默认分配
	selected = SelectAssignment(assignments, overrideEnd.Add(24*time.Hour))
	require.NotNil(t, selected)
	assert.Equal(t, "default", selected.AssignmentID)
}

func TestSelectAssignment_LatestStartWins(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	assignments := []models.DeviceProfileAssignment{
		{AssignmentID: "old", ProfileID: "p1", EffectiveStart: older},
		{AssignmentID: "new", ProfileID: "p2", EffectiveStart: newer},
	}

	selected := SelectAssignment(assignments, newer.Add(time.Hour))
	require.NotNil(t, selected)
	assert.Equal(t, "new", selected.AssignmentID)

	// 新分配生效前仍选旧分配
	selected = SelectAssignment(assignments, older.Add(time.Hour))
	require.NotNil(t, selected)
	assert.Equal(t, "old", selected.AssignmentID)
}

func TestSelectAssignment_FallbackToUnconstrainedDefault(t *testing.T) {
	future := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	assignments := []models.DeviceProfileAssignment{
		{AssignmentID: "future", ProfileID: "p1", EffectiveStart: future},
		{AssignmentID: "fallback", ProfileID: "p-default", IsDefault: true},
	}

	// 唯一时间窗分配尚未生效，回退到无日期约束的默认分配
	selected := SelectAssignment(assignments, future.Add(-24*time.Hour))
	require.NotNil(t, selected)
	assert.Equal(t, "fallback", selected.AssignmentID)
}

func TestResolveActiveProfile_Success(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assignments := &fakeAssignmentStore{
		assignments: []models.DeviceProfileAssignment{
			{AssignmentID: "a1", ProfileID: "p1", EffectiveStart: start},
		},
	}
	profiles := &fakeProfileStore{
		profiles: map[string]*models.ThresholdProfile{
			"p1": {ProfileID: "p1", Name: "ULT -80", WarningMin: -85, WarningMax: -70, CriticalMin: -90, CriticalMax: -60},
		},
	}

	resolver := NewProfileResolver(assignments, profiles, zap.NewNop())
	profile, err := resolver.ResolveActiveProfile(context.Background(), "freezer-100", start.Add(time.Hour))

	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "p1", profile.ProfileID)
}

func TestResolveActiveProfile_NoAssignment(t *testing.T) {
	resolver := NewProfileResolver(&fakeAssignmentStore{}, &fakeProfileStore{}, zap.NewNop())

	profile, err := resolver.ResolveActiveProfile(context.Background(), "freezer-100", time.Now())

	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestResolveActiveProfile_MissingFreezerID(t *testing.T) {
	resolver := NewProfileResolver(&fakeAssignmentStore{}, &fakeProfileStore{}, zap.NewNop())

	_, err := resolver.ResolveActiveProfile(context.Background(), "", time.Now())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "freezer_id is required")
}

func TestResolveActiveProfile_PastInstant(t *testing.T) {
	// 历史时刻的解析：旧分配已被新分配取代，但查询旧时刻仍返回旧策略
	oldStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	oldEnd := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assignments := &fakeAssignmentStore{
		assignments: []models.DeviceProfileAssignment{
			{AssignmentID: "old", ProfileID: "p-old", EffectiveStart: oldStart, EffectiveEnd: timePtr(oldEnd)},
			{AssignmentID: "new", ProfileID: "p-new", EffectiveStart: newStart},
		},
	}
	profiles := &fakeProfileStore{
		profiles: map[string]*models.ThresholdProfile{
			"p-old": {ProfileID: "p-old"},
			"p-new": {ProfileID: "p-new"},
		},
	}

	resolver := NewProfileResolver(assignments, profiles, zap.NewNop())

	profile, err := resolver.ResolveActiveProfile(context.Background(), "freezer-100", oldStart.AddDate(0, 6, 0))
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "p-old", profile.ProfileID)

	profile, err = resolver.ResolveActiveProfile(context.Background(), "freezer-100", newStart.AddDate(0, 6, 0))
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "p-new", profile.ProfileID)
}

package evaluator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"coldwatch/internal/models"

	"go.uber.org/zap"
)

// AssignmentStore 分配记录查询接口（由 repository.AssignmentsRepository 实现）
type AssignmentStore interface {
	// ListAssignmentsForFreezer 单次查询返回冷柜的全部分配记录（一致性快照）
	ListAssignmentsForFreezer(ctx context.Context, freezerID string) ([]models.DeviceProfileAssignment, error)
}

// ProfileStore 阈值策略查询接口（由 repository.ThresholdProfilesRepository 实现）
type ProfileStore interface {
	GetProfile(ctx context.Context, profileID string) (*models.ThresholdProfile, error)
}

// ProfileResolver 阈值策略解析器
// 给定冷柜和任意时刻，返回该时刻生效的阈值策略
type ProfileResolver struct {
	assignments AssignmentStore
	profiles    ProfileStore
	logger      *zap.Logger
}

// NewProfileResolver 创建策略解析器
func NewProfileResolver(assignments AssignmentStore, profiles ProfileStore, logger *zap.Logger) *ProfileResolver {
	return &ProfileResolver{
		assignments: assignments,
		profiles:    profiles,
		logger:      logger,
	}
}

// ResolveActiveProfile 解析指定时刻生效的阈值策略
// 没有任何匹配的分配时返回 (nil, nil)，调用方按 NORMAL 处理
func (r *ProfileResolver) ResolveActiveProfile(ctx context.Context, freezerID string, at time.Time) (*models.ThresholdProfile, error) {
	if freezerID == "" {
		return nil, fmt.Errorf("freezer_id is required")
	}

	assignments, err := r.assignments.ListAssignmentsForFreezer(ctx, freezerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profile assignments: %w", err)
	}

	selected := SelectAssignment(assignments, at)
	if selected == nil {
		r.logger.Debug("No profile assignment in force",
			zap.String("freezer_id", freezerID),
			zap.Time("at", at),
		)
		return nil, nil
	}

	profile, err := r.profiles.GetProfile(ctx, selected.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get threshold profile: %w", err)
	}

	return profile, nil
}

// SelectAssignment 分配排序选择（纯函数，不依赖数据库行序）
// 优先级：
// (a) 时间窗内的非默认分配优先于重叠的默认分配（临时覆盖策略胜过长期默认）
// (b) 仍有多个候选时，effective_start 最新者胜；同一起点时有界区间胜过开放区间
// (c) 无时间窗候选时，回退到无日期约束的默认分配
// (d) 都没有则返回 nil
func SelectAssignment(assignments []models.DeviceProfileAssignment, at time.Time) *models.DeviceProfileAssignment {
	var candidates []models.DeviceProfileAssignment
	for _, a := range assignments {
		if a.EffectiveStart.After(at) {
			continue
		}
		if a.EffectiveEnd != nil && a.EffectiveEnd.Before(at) {
			continue
		}
		candidates = append(candidates, a)
	}

	if len(candidates) > 0 {
		// 非默认分配优先
		var overrides []models.DeviceProfileAssignment
		for _, a := range candidates {
			if !a.IsDefault {
				overrides = append(overrides, a)
			}
		}
		if len(overrides) > 0 {
			candidates = overrides
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			if !candidates[i].EffectiveStart.Equal(candidates[j].EffectiveStart) {
				return candidates[i].EffectiveStart.After(candidates[j].EffectiveStart)
			}
			// 同一起点：有界区间更具体
			return candidates[i].EffectiveEnd != nil && candidates[j].EffectiveEnd == nil
		})
		return &candidates[0]
	}

	// 回退：无日期约束的默认分配
	for i := range assignments {
		a := assignments[i]
		if a.IsDefault && a.EffectiveStart.IsZero() && a.EffectiveEnd == nil {
			return &a
		}
	}

	return nil
}

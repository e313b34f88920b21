package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DeviceUsageRow is one device's activity in a window.
type DeviceUsageRow struct {
	DeviceID             uint   `json:"deviceId"`
	DeviceName           string `json:"deviceName"`
	DeviceType           string `json:"deviceType"`
	Status               string `json:"status"`
	ConversationCount    int64  `json:"conversationCount"`
	ActionTriggeredCount int64  `json:"actionTriggeredCount"`
	BoundActionsCount    int64  `json:"boundActionsCount"`
}

// ActionUsageRow is one bound action's trigger count in a window.
type ActionUsageRow struct {
	ActionID   uint    `json:"actionId"`
	ActionName string  `json:"actionName"`
	ActionType string  `json:"actionType"`
	Duration   float64 `json:"duration"`
	UsageCount int64   `json:"usageCount"`
}

// AnalyticsRepo runs the read-only aggregate queries.
type AnalyticsRepo interface {
	DeviceUsage(ctx context.Context, userID uint, since time.Time) ([]DeviceUsageRow, error)
	ActionUsage(ctx context.Context, userID uint, since time.Time) ([]ActionUsageRow, error)
	ConversationTimes(ctx context.Context, userID uint, since time.Time) ([]time.Time, error)
	DeviceActivity(ctx context.Context, userID uint, since time.Time) (total, active int64, err error)
	TriggerCounts(ctx context.Context, userID uint, since time.Time) (total, triggered int64, err error)
}

type analyticsRepo struct {
	db *gorm.DB
}

func NewAnalyticsRepo(db *gorm.DB) AnalyticsRepo {
	return &analyticsRepo{db: db}
}

const deviceUsageSQL = `
SELECT d.id AS device_id, d.device_name, d.device_type, d.status,
	(SELECT COUNT(*) FROM conversations c
		WHERE c.device_id = d.id AND c.user_id = @uid AND c.created_at > @since) AS conversation_count,
	(SELECT COUNT(*) FROM conversations c
		WHERE c.device_id = d.id AND c.user_id = @uid AND c.action_triggered IS NOT NULL AND c.created_at > @since) AS action_triggered_count,
	(SELECT COUNT(*) FROM device_actions da WHERE da.device_id = d.id) AS bound_actions_count
FROM devices d
WHERE d.user_id = @uid
ORDER BY d.id`

func (r *analyticsRepo) DeviceUsage(ctx context.Context, userID uint, since time.Time) ([]DeviceUsageRow, error) {
	var rows []DeviceUsageRow
	err := r.db.WithContext(ctx).
		Raw(deviceUsageSQL, map[string]any{"uid": userID, "since": since}).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query device usage: %w", err)
	}
	return rows, nil
}

const actionUsageSQL = `
SELECT a.id AS action_id, a.name AS action_name, a.type AS action_type, a.duration,
	(SELECT COUNT(*) FROM conversations c
		WHERE c.action_triggered = a.id AND c.user_id = @uid AND c.created_at > @since) AS usage_count
FROM actions a
WHERE a.id IN (
	SELECT DISTINCT da.action_id FROM device_actions da
	JOIN devices d ON d.id = da.device_id
	WHERE d.user_id = @uid)
ORDER BY usage_count DESC, a.id`

func (r *analyticsRepo) ActionUsage(ctx context.Context, userID uint, since time.Time) ([]ActionUsageRow, error) {
	var rows []ActionUsageRow
	err := r.db.WithContext(ctx).
		Raw(actionUsageSQL, map[string]any{"uid": userID, "since": since}).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query action usage: %w", err)
	}
	return rows, nil
}

func (r *analyticsRepo) ConversationTimes(ctx context.Context, userID uint, since time.Time) ([]time.Time, error) {
	var times []time.Time
	err := r.db.WithContext(ctx).Table("conversations").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Pluck("created_at", &times).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation trend: %w", err)
	}
	return times, nil
}

func (r *analyticsRepo) DeviceActivity(ctx context.Context, userID uint, since time.Time) (int64, int64, error) {
	var total, active int64
	if err := r.db.WithContext(ctx).Table("devices").Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count devices: %w", err)
	}
	err := r.db.WithContext(ctx).Table("devices").
		Where("user_id = ? AND id IN (?)", userID,
			r.db.Table("conversations").Select("DISTINCT device_id").Where("user_id = ? AND created_at > ?", userID, since)).
		Count(&active).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count active devices: %w", err)
	}
	return total, active, nil
}

func (r *analyticsRepo) TriggerCounts(ctx context.Context, userID uint, since time.Time) (int64, int64, error) {
	var total, triggered int64
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Table("conversations").Where("user_id = ? AND created_at > ?", userID, since)
	}
	if err := base().Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	if err := base().Where("action_triggered IS NOT NULL").Count(&triggered).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count triggered conversations: %w", err)
	}
	return total, triggered, nil
}

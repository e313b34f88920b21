package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/airobot/server/internal/model"
	"gorm.io/gorm"
)

// AuditRepo stores operation and anomaly logs.
type AuditRepo interface {
	CreateOperation(ctx context.Context, l *model.OperationLog) error
	ListOperations(ctx context.Context, p Page) ([]model.OperationLog, int64, error)
	// CountFailedLogins counts failed login operations for username or ip since the given time.
	CountFailedLogins(ctx context.Context, username, ip string, since time.Time) (int64, error)

	CreateAnomaly(ctx context.Context, a *model.AnomalyLog) error
	ListAnomalies(ctx context.Context, status string, p Page) ([]model.AnomalyLog, int64, error)
	ResolveAnomaly(ctx context.Context, id uint, status string, by uint, at time.Time) error
}

const OperationLogin = "login"

type auditRepo struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) AuditRepo {
	return &auditRepo{db: db}
}

func (r *auditRepo) CreateOperation(ctx context.Context, l *model.OperationLog) error {
	if err := r.db.WithContext(ctx).Create(l).Error; err != nil {
		return fmt.Errorf("failed to create operation log: %w", err)
	}
	return nil
}

func (r *auditRepo) ListOperations(ctx context.Context, p Page) ([]model.OperationLog, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.OperationLog{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count operation logs: %w", err)
	}
	var logs []model.OperationLog
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Offset(p.Offset()).Limit(p.Limit).Find(&logs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list operation logs: %w", err)
	}
	return logs, total, nil
}

func (r *auditRepo) CountFailedLogins(ctx context.Context, username, ip string, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.OperationLog{}).
		Where("operation = ? AND status = ? AND created_at >= ?", OperationLogin, model.OpFailed, since).
		Where("username = ? OR ip = ?", username, ip).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count failed logins: %w", err)
	}
	return n, nil
}

func (r *auditRepo) CreateAnomaly(ctx context.Context, a *model.AnomalyLog) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("failed to create anomaly log: %w", err)
	}
	return nil
}

func (r *auditRepo) ListAnomalies(ctx context.Context, status string, p Page) ([]model.AnomalyLog, int64, error) {
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.AnomalyLog{})
		if status != "" {
			q = q.Where("status = ?", status)
		}
		return q
	}
	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count anomalies: %w", err)
	}
	var out []model.AnomalyLog
	if err := scoped().Order("created_at DESC, id DESC").Offset(p.Offset()).Limit(p.Limit).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list anomalies: %w", err)
	}
	return out, total, nil
}

func (r *auditRepo) ResolveAnomaly(ctx context.Context, id uint, status string, by uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.AnomalyLog{}).Where("id = ?", id).
		Updates(map[string]any{"status": status, "resolved_by": by, "resolved_at": at})
	if res.Error != nil {
		return fmt.Errorf("failed to resolve anomaly: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to resolve anomaly: %w", ErrNotFound)
	}
	return nil
}

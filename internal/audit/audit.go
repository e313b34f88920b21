// Package audit records operation logs and security anomalies. Write
// failures are logged and never returned to the caller.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/model"
	"github.com/airobot/server/internal/repo"
	"go.uber.org/zap"
)

const (
	failedLoginWindow    = time.Hour
	failedLoginThreshold = 5
)

// Actor identifies who performed an operation and from where.
type Actor struct {
	UserID    *uint
	Username  string
	IP        string
	UserAgent string
}

// Entry is one operation log record.
type Entry struct {
	Actor
	Operation string
	Module    string
	Failed    bool
	Details   string
}

type Service struct {
	repo   repo.AuditRepo
	logger *zap.Logger
	now    func() time.Time
}

func NewService(r repo.AuditRepo, logger *zap.Logger) *Service {
	return &Service{repo: r, logger: logger.Named("audit"), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Record(ctx context.Context, e Entry) {
	status := model.OpSuccess
	if e.Failed {
		status = model.OpFailed
	}
	l := &model.OperationLog{
		UserID:    e.UserID,
		Username:  e.Username,
		Operation: e.Operation,
		Module:    e.Module,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		Status:    status,
		Details:   e.Details,
	}
	if err := s.repo.CreateOperation(ctx, l); err != nil {
		s.logger.Error("failed to write operation log", zap.String("operation", e.Operation), zap.Error(err))
	}
}

// RecordFailedLogin logs the failed attempt and raises an anomaly whose
// severity escalates once the hourly failure count reaches the threshold.
func (s *Service) RecordFailedLogin(ctx context.Context, a Actor, reason string) {
	s.Record(ctx, Entry{Actor: a, Operation: repo.OperationLogin, Module: "auth", Failed: true, Details: reason})

	count, err := s.repo.CountFailedLogins(ctx, a.Username, a.IP, s.now().Add(-failedLoginWindow))
	if err != nil {
		s.logger.Error("failed to count failed logins", zap.Error(err))
		count = 1
	}

	if count >= failedLoginThreshold {
		s.anomaly(ctx, a, model.EventMultipleLoginAttempts, model.SeverityHigh,
			fmt.Sprintf("%d failed logins within one hour", count))
		return
	}
	s.anomaly(ctx, a, model.EventFailedLogin, model.SeverityLow, reason)
}

func (s *Service) RecordMFAFailure(ctx context.Context, a Actor) {
	s.anomaly(ctx, a, model.EventMFAFailure, model.SeverityMedium, "mfa verification failed")
}

func (s *Service) RecordSuspicious(ctx context.Context, a Actor, details string) {
	s.anomaly(ctx, a, model.EventSuspiciousOperation, model.SeverityMedium, details)
}

func (s *Service) anomaly(ctx context.Context, a Actor, event, severity, details string) {
	l := &model.AnomalyLog{
		UserID:    a.UserID,
		Username:  a.Username,
		EventType: event,
		IP:        a.IP,
		UserAgent: a.UserAgent,
		Details:   details,
		Severity:  severity,
		Status:    model.AnomalyUnresolved,
	}
	if err := s.repo.CreateAnomaly(ctx, l); err != nil {
		s.logger.Error("failed to write anomaly log", zap.String("event", event), zap.Error(err))
		return
	}
	if severity == model.SeverityHigh {
		s.logger.Warn("security anomaly", zap.String("event", event), zap.String("username", a.Username), zap.String("ip", a.IP))
	}
}

// OperationPage is a page of operation logs.
type OperationPage struct {
	Logs  []model.OperationLog `json:"logs"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

func (s *Service) ListOperations(ctx context.Context, p repo.Page) (OperationPage, error) {
	p = p.Normalize(20, 100)
	logs, total, err := s.repo.ListOperations(ctx, p)
	if err != nil {
		return OperationPage{}, apperr.Internal("failed to list operation logs", err)
	}
	return OperationPage{Logs: logs, Total: total, Page: p.Page, Limit: p.Limit}, nil
}

// AnomalyPage is a page of anomaly logs.
type AnomalyPage struct {
	Anomalies []model.AnomalyLog `json:"anomalies"`
	Total     int64              `json:"total"`
	Page      int                `json:"page"`
	Limit     int                `json:"limit"`
}

func (s *Service) ListAnomalies(ctx context.Context, status string, p repo.Page) (AnomalyPage, error) {
	if status != "" && status != model.AnomalyUnresolved && status != model.AnomalyResolved && status != model.AnomalyIgnored {
		return AnomalyPage{}, apperr.InvalidInput("invalid anomaly status")
	}
	p = p.Normalize(50, 200)
	out, total, err := s.repo.ListAnomalies(ctx, status, p)
	if err != nil {
		return AnomalyPage{}, apperr.Internal("failed to list anomalies", err)
	}
	return AnomalyPage{Anomalies: out, Total: total, Page: p.Page, Limit: p.Limit}, nil
}

// ResolveAnomaly marks an anomaly resolved or ignored.
func (s *Service) ResolveAnomaly(ctx context.Context, id uint, status string, by uint) error {
	if status == "" {
		status = model.AnomalyResolved
	}
	if status != model.AnomalyResolved && status != model.AnomalyIgnored {
		return apperr.InvalidInput("status must be resolved or ignored")
	}
	if err := s.repo.ResolveAnomaly(ctx, id, status, by, s.now()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.NotFound("anomaly not found")
		}
		return apperr.Internal("failed to resolve anomaly", err)
	}
	return nil
}

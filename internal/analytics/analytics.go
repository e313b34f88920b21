// Package analytics computes per-user usage statistics over a trailing window
// of days. Results are cached and only expire; writes do not invalidate them.
package analytics

import (
	"context"
	"math"
	"time"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/cache"
	"github.com/airobot/server/internal/repo"
	"go.uber.org/zap"
)

const (
	DefaultDays = 30
	MaxDays     = 365

	dateLayout = "2006-01-02"
)

type TrendPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type ActivationRate struct {
	TotalDevices   int64   `json:"totalDevices"`
	ActiveDevices  int64   `json:"activeDevices"`
	ActivationRate float64 `json:"activationRate"`
}

type AIResponseStats struct {
	TotalConversations           int64   `json:"totalConversations"`
	ActionTriggeredConversations int64   `json:"actionTriggeredConversations"`
	ActionTriggerRate            float64 `json:"actionTriggerRate"`
}

// Report bundles every statistic for one window.
type Report struct {
	DeviceUsage          []repo.DeviceUsageRow `json:"deviceUsage"`
	ActionUsage          []repo.ActionUsageRow `json:"actionUsage"`
	ConversationTrend    []TrendPoint          `json:"conversationTrend"`
	DeviceActivationRate ActivationRate        `json:"deviceActivationRate"`
	AIResponseStats      AIResponseStats       `json:"aiResponseStats"`
}

type Service struct {
	repo   repo.AnalyticsRepo
	cache  cache.Cache
	logger *zap.Logger
	now    func() time.Time
}

func NewService(r repo.AnalyticsRepo, c cache.Cache, logger *zap.Logger) *Service {
	return &Service{repo: r, cache: c, logger: logger.Named("analytics"), now: time.Now}
}

// NormalizeDays applies the default window and rejects out of range values.
func NormalizeDays(days int) (int, error) {
	if days == 0 {
		return DefaultDays, nil
	}
	if days < 1 || days > MaxDays {
		return 0, apperr.InvalidInput("days must be between 1 and 365")
	}
	return days, nil
}

func cached[T any](ctx context.Context, s *Service, kind string, userID uint, days int, load func(since time.Time) (T, error)) (T, error) {
	var zero T
	days, err := NormalizeDays(days)
	if err != nil {
		return zero, err
	}
	key := cache.AnalyticsKey(kind, userID, days)
	var out T
	if s.cache.Get(ctx, key, &out) {
		return out, nil
	}
	since := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	out, err = load(since)
	if err != nil {
		return zero, apperr.Internal("failed to compute "+kind+" statistics", err)
	}
	s.cache.Set(ctx, key, out, cache.AnalyticsTTL)
	return out, nil
}

func (s *Service) DeviceUsage(ctx context.Context, userID uint, days int) ([]repo.DeviceUsageRow, error) {
	return cached(ctx, s, "device-usage", userID, days, func(since time.Time) ([]repo.DeviceUsageRow, error) {
		rows, err := s.repo.DeviceUsage(ctx, userID, since)
		if rows == nil && err == nil {
			rows = []repo.DeviceUsageRow{}
		}
		return rows, err
	})
}

func (s *Service) ActionUsage(ctx context.Context, userID uint, days int) ([]repo.ActionUsageRow, error) {
	return cached(ctx, s, "action-usage", userID, days, func(since time.Time) ([]repo.ActionUsageRow, error) {
		rows, err := s.repo.ActionUsage(ctx, userID, since)
		if rows == nil && err == nil {
			rows = []repo.ActionUsageRow{}
		}
		return rows, err
	})
}

// ConversationTrend returns one UTC day per entry, oldest first, ending today.
// Days without conversations count zero.
func (s *Service) ConversationTrend(ctx context.Context, userID uint, days int) ([]TrendPoint, error) {
	n, err := NormalizeDays(days)
	if err != nil {
		return nil, err
	}
	return cached(ctx, s, "conversation-trend", userID, n, func(since time.Time) ([]TrendPoint, error) {
		times, err := s.repo.ConversationTimes(ctx, userID, since)
		if err != nil {
			return nil, err
		}
		return buildTrend(s.now().UTC(), n, times), nil
	})
}

func buildTrend(today time.Time, days int, times []time.Time) []TrendPoint {
	points := make([]TrendPoint, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, i-days+1).Format(dateLayout)
		points[i] = TrendPoint{Date: date}
		index[date] = i
	}
	for _, t := range times {
		if i, ok := index[t.UTC().Format(dateLayout)]; ok {
			points[i].Count++
		}
	}
	return points
}

func (s *Service) ActivationRate(ctx context.Context, userID uint, days int) (ActivationRate, error) {
	return cached(ctx, s, "device-activation-rate", userID, days, func(since time.Time) (ActivationRate, error) {
		total, active, err := s.repo.DeviceActivity(ctx, userID, since)
		if err != nil {
			return ActivationRate{}, err
		}
		return ActivationRate{TotalDevices: total, ActiveDevices: active, ActivationRate: percent(active, total)}, nil
	})
}

func (s *Service) AIResponseStats(ctx context.Context, userID uint, days int) (AIResponseStats, error) {
	return cached(ctx, s, "ai-response-stats", userID, days, func(since time.Time) (AIResponseStats, error) {
		total, triggered, err := s.repo.TriggerCounts(ctx, userID, since)
		if err != nil {
			return AIResponseStats{}, err
		}
		return AIResponseStats{
			TotalConversations:           total,
			ActionTriggeredConversations: triggered,
			ActionTriggerRate:            percent(triggered, total),
		}, nil
	})
}

// Comprehensive computes every statistic for the window.
func (s *Service) Comprehensive(ctx context.Context, userID uint, days int) (Report, error) {
	days, err := NormalizeDays(days)
	if err != nil {
		return Report{}, err
	}
	var r Report
	if r.DeviceUsage, err = s.DeviceUsage(ctx, userID, days); err != nil {
		return Report{}, err
	}
	if r.ActionUsage, err = s.ActionUsage(ctx, userID, days); err != nil {
		return Report{}, err
	}
	if r.ConversationTrend, err = s.ConversationTrend(ctx, userID, days); err != nil {
		return Report{}, err
	}
	if r.DeviceActivationRate, err = s.ActivationRate(ctx, userID, days); err != nil {
		return Report{}, err
	}
	if r.AIResponseStats, err = s.AIResponseStats(ctx, userID, days); err != nil {
		return Report{}, err
	}
	return r, nil
}

// percent returns part/total*100 rounded to two decimals, or 0 for an empty total.
func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*100*100) / 100
}

package analytics

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/cache"
	"github.com/airobot/server/internal/model"
	"github.com/airobot/server/internal/repo"
	"github.com/airobot/server/internal/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type fakeRepo struct {
	times          []time.Time
	total, active  int64
	convs, trigger int64
	calls          int
	err            error
}

func (f *fakeRepo) DeviceUsage(context.Context, uint, time.Time) ([]repo.DeviceUsageRow, error) {
	f.calls++
	return []repo.DeviceUsageRow{{DeviceID: 1, DeviceName: "rex", ConversationCount: 3}}, f.err
}

func (f *fakeRepo) ActionUsage(context.Context, uint, time.Time) ([]repo.ActionUsageRow, error) {
	f.calls++
	return nil, f.err
}

func (f *fakeRepo) ConversationTimes(context.Context, uint, time.Time) ([]time.Time, error) {
	f.calls++
	return f.times, f.err
}

func (f *fakeRepo) DeviceActivity(context.Context, uint, time.Time) (int64, int64, error) {
	f.calls++
	return f.total, f.active, f.err
}

func (f *fakeRepo) TriggerCounts(context.Context, uint, time.Time) (int64, int64, error) {
	f.calls++
	return f.convs, f.trigger, f.err
}

func newFakeService(f *fakeRepo, now time.Time) *Service {
	s := NewService(f, cache.NewMemory(zap.NewNop()), zap.NewNop())
	s.now = func() time.Time { return now }
	return s
}

func TestBuildTrend(t *testing.T) {
	today := time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC)
	times := []time.Time{
		time.Date(2024, 3, 2, 1, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 2, 23, 59, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	trend := buildTrend(today, 3, times)
	assert.Equal(t, []TrendPoint{
		{Date: "2024-02-29", Count: 1},
		{Date: "2024-03-01", Count: 0},
		{Date: "2024-03-02", Count: 2},
	}, trend)

	assert.Len(t, buildTrend(today, 30, nil), 30)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, percent(0, 0))
	assert.Equal(t, 33.33, percent(1, 3))
	assert.Equal(t, 66.67, percent(2, 3))
	assert.Equal(t, 100.0, percent(4, 4))
}

func TestNormalizeDays(t *testing.T) {
	d, err := NormalizeDays(0)
	require.NoError(t, err)
	assert.Equal(t, DefaultDays, d)

	for _, bad := range []int{-1, 366} {
		_, err := NormalizeDays(bad)
		assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
	}
}

func TestRatesAndCaching(t *testing.T) {
	f := &fakeRepo{total: 3, active: 1, convs: 8, trigger: 3}
	s := newFakeService(f, time.Now())
	ctx := context.Background()

	rate, err := s.ActivationRate(ctx, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, 33.33, rate.ActivationRate)

	_, err = s.ActivationRate(ctx, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls, "second read is served from cache")

	stats, err := s.AIResponseStats(ctx, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, 37.5, stats.ActionTriggerRate)

	f.err = errors.New("db down")
	_, err = s.DeviceUsage(ctx, 2, 7)
	assert.True(t, apperr.Is(err, apperr.KindInternal))
}

func TestComprehensiveAndExport(t *testing.T) {
	now := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	f := &fakeRepo{times: []time.Time{now.Add(-time.Hour)}, total: 1, active: 1, convs: 1}
	s := newFakeService(f, now)
	ctx := context.Background()

	r, err := s.Comprehensive(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, r.ConversationTrend, DefaultDays)
	assert.EqualValues(t, 1, r.ConversationTrend[DefaultDays-1].Count)
	assert.NotNil(t, r.ActionUsage)
	assert.Equal(t, 100.0, r.DeviceActivationRate.ActivationRate)

	data, err := s.Export(ctx, 1, 0)
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, []string{"Summary", "Device Usage", "Action Usage", "Conversation Trend"}, wb.GetSheetList())

	name, err := wb.GetCellValue("Device Usage", "B2")
	require.NoError(t, err)
	assert.Equal(t, "rex", name)

	rows, err := wb.GetRows("Conversation Trend")
	require.NoError(t, err)
	assert.Len(t, rows, DefaultDays+1)
}

func TestService_sqlite(t *testing.T) {
	gdb := tests.OpenDB(t)
	ctx := context.Background()
	u := tests.SeedUser(t, gdb, "gina")
	d := tests.SeedDevice(t, gdb, u.ID, "rex")
	tests.SeedDevice(t, gdb, u.ID, "idle")

	one := uint(1)
	require.NoError(t, gdb.Create(&model.Conversation{UserID: u.ID, DeviceID: d.ID, Message: "go", Response: "ok", ActionTriggered: &one}).Error)
	require.NoError(t, gdb.Create(&model.Conversation{UserID: u.ID, DeviceID: d.ID, Message: "hi", Response: "hello"}).Error)
	require.NoError(t, gdb.Create(&model.Conversation{UserID: u.ID, DeviceID: d.ID, Message: "yo", Response: "hey"}).Error)

	s := NewService(repo.NewAnalyticsRepo(gdb), cache.NewMemory(zap.NewNop()), zap.NewNop())
	r, err := s.Comprehensive(ctx, u.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 50.0, r.DeviceActivationRate.ActivationRate)
	assert.Equal(t, 33.33, r.AIResponseStats.ActionTriggerRate)
	assert.Len(t, r.ConversationTrend, 7)
	assert.EqualValues(t, 3, r.ConversationTrend[6].Count)
}

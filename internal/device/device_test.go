package device

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/cache"
	"github.com/airobot/server/internal/model"
	"github.com/airobot/server/internal/repo"
	"github.com/airobot/server/internal/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type statusEvent struct {
	userID, deviceID uint
	status           string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []statusEvent
}

func (r *recordingNotifier) SendDeviceStatusUpdate(userID, deviceID uint, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, statusEvent{userID, deviceID, status})
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestService(t *testing.T) (*Service, *recordingNotifier, *cache.Memory, *gorm.DB) {
	t.Helper()
	gdb := tests.OpenDB(t)
	mem := cache.NewMemory(zap.NewNop())
	n := &recordingNotifier{}
	svc := NewService(repo.NewDeviceRepo(gdb), repo.NewGroupRepo(gdb), mem, n, zap.NewNop())
	return svc, n, mem, gdb
}

func TestHeartbeat_broadcastsOnce(t *testing.T) {
	svc, n, _, gdb := newTestService(t)
	ctx := context.Background()
	u := tests.SeedUser(t, gdb, "owner")
	d := tests.SeedDevice(t, gdb, u.ID, "rex")

	got, err := svc.Heartbeat(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeviceOnline, got.Status)
	require.NotNil(t, got.LastSeenAt)

	_, err = svc.Heartbeat(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n.count())
	assert.Equal(t, statusEvent{u.ID, d.ID, model.DeviceOnline}, n.events[0])

	_, err = svc.Offline(ctx, d.ID)
	require.NoError(t, err)
	_, err = svc.Offline(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n.count())

	_, err = svc.Heartbeat(ctx, 9999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSweepStale(t *testing.T) {
	svc, n, _, gdb := newTestService(t)
	ctx := context.Background()
	u := tests.SeedUser(t, gdb, "owner")
	fresh := tests.SeedDevice(t, gdb, u.ID, "fresh")
	stale := tests.SeedDevice(t, gdb, u.ID, "stale")

	_, err := svc.Heartbeat(ctx, fresh.ID)
	require.NoError(t, err)
	_, err = svc.Heartbeat(ctx, stale.ID)
	require.NoError(t, err)
	old := time.Now().UTC().Add(-10 * time.Minute)
	require.NoError(t, gdb.Model(&model.Device{}).Where("id = ?", stale.ID).Update("last_seen_at", old).Error)

	changed, err := svc.SweepStale(ctx, StaleAfter)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, 3, n.count())

	got, err := svc.Get(ctx, u.ID, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeviceOffline, got.Status)
}

func TestList_filtersAndCache(t *testing.T) {
	svc, _, mem, gdb := newTestService(t)
	ctx := context.Background()
	u := tests.SeedUser(t, gdb, "owner")

	for _, name := range []string{"Kitchen Rex", "Garden Rex", "Hall Bot"} {
		_, err := svc.Create(ctx, u.ID, CreateInput{Name: name, Type: "dog"})
		require.NoError(t, err)
	}

	res, err := svc.List(ctx, u.ID, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 20, res.Limit)
	assert.Equal(t, "Hall Bot", res.Devices[0].Name)

	var cached []model.Device
	require.True(t, mem.Get(ctx, cache.DeviceListKey(u.ID), &cached))
	assert.Len(t, cached, 3)

	res, err = svc.List(ctx, u.ID, Filter{Search: "rex", Limit: 1, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Devices, 1)
	assert.Equal(t, "Kitchen Rex", res.Devices[0].Name)

	res, err = svc.List(ctx, u.ID, Filter{Page: 5})
	require.NoError(t, err)
	assert.Empty(t, res.Devices)

	_, err = svc.Create(ctx, u.ID, CreateInput{Name: "New", Type: "cat"})
	require.NoError(t, err)
	assert.False(t, mem.Get(ctx, cache.DeviceListKey(u.ID), &cached))

	res, err = svc.List(ctx, u.ID, Filter{Type: "cat"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
}

func TestUpdateAndDelete(t *testing.T) {
	svc, n, mem, gdb := newTestService(t)
	ctx := context.Background()
	u := tests.SeedUser(t, gdb, "owner")
	other := tests.SeedUser(t, gdb, "other")
	d, err := svc.Create(ctx, u.ID, CreateInput{Name: "rex", Type: "dog"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, u.ID, d.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, other.ID, d.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "cached device must not leak to other users")

	name, online := "max", model.DeviceOnline
	updated, err := svc.Update(ctx, u.ID, d.ID, UpdateInput{Name: &name, Status: &online})
	require.NoError(t, err)
	assert.Equal(t, "max", updated.Name)
	assert.Equal(t, 1, n.count())

	var cached model.Device
	assert.False(t, mem.Get(ctx, cache.DeviceKey(d.ID), &cached))

	updated, err = svc.Update(ctx, u.ID, d.ID, UpdateInput{Status: &online})
	require.NoError(t, err)
	assert.Equal(t, 1, n.count(), "unchanged status is not broadcast")

	bad := "sleeping"
	_, err = svc.Update(ctx, u.ID, d.ID, UpdateInput{Status: &bad})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	_, err = svc.Update(ctx, other.ID, d.ID, UpdateInput{Name: &name})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, svc.Delete(ctx, u.ID, d.ID))
	assert.True(t, apperr.Is(svc.Delete(ctx, u.ID, d.ID), apperr.KindNotFound))
}

func TestBatchOperations(t *testing.T) {
	svc, n, _, gdb := newTestService(t)
	ctx := context.Background()
	u := tests.SeedUser(t, gdb, "owner")
	other := tests.SeedUser(t, gdb, "other")
	a := tests.SeedDevice(t, gdb, u.ID, "a")
	b := tests.SeedDevice(t, gdb, u.ID, "b")
	foreign := tests.SeedDevice(t, gdb, other.ID, "c")

	changed, err := svc.BatchUpdateStatus(ctx, u.ID, []uint{a.ID, b.ID, foreign.ID}, model.DeviceOnline)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{a.ID, b.ID}, changed)
	assert.Equal(t, 2, n.count())

	_, err = svc.BatchUpdateStatus(ctx, u.ID, []uint{a.ID}, "bogus")
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	deleted, err := svc.BatchDelete(ctx, u.ID, []uint{a.ID, foreign.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID}, deleted)

	_, err = svc.BatchDelete(ctx, u.ID, nil)
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

func TestGroups(t *testing.T) {
	svc, _, _, gdb := newTestService(t)
	ctx := context.Background()
	u := tests.SeedUser(t, gdb, "owner")
	other := tests.SeedUser(t, gdb, "other")
	d := tests.SeedDevice(t, gdb, u.ID, "rex")
	foreign := tests.SeedDevice(t, gdb, other.ID, "fido")

	g, err := svc.CreateGroup(ctx, u.ID, "Living room", "")
	require.NoError(t, err)

	require.NoError(t, svc.AddToGroup(ctx, u.ID, g.ID, d.ID))
	assert.True(t, apperr.Is(svc.AddToGroup(ctx, u.ID, g.ID, d.ID), apperr.KindConflict))
	assert.True(t, apperr.Is(svc.AddToGroup(ctx, u.ID, g.ID, foreign.ID), apperr.KindNotFound))

	got, err := svc.GetGroup(ctx, u.ID, g.ID)
	require.NoError(t, err)
	require.Len(t, got.Devices, 1)
	assert.Equal(t, "rex", got.Devices[0].Name)

	newName := "Lounge"
	got, err = svc.UpdateGroup(ctx, u.ID, g.ID, &newName, nil)
	require.NoError(t, err)
	assert.Equal(t, "Lounge", got.Name)

	require.NoError(t, svc.RemoveFromGroup(ctx, u.ID, g.ID, d.ID))
	assert.True(t, apperr.Is(svc.RemoveFromGroup(ctx, u.ID, g.ID, d.ID), apperr.KindNotFound))

	_, err = svc.GetGroup(ctx, other.ID, g.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, svc.DeleteGroup(ctx, u.ID, g.ID))
	groups, err := svc.ListGroups(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestExplicitOnlineSurvivesSweep(t *testing.T) {
	svc, n, _, gdb := newTestService(t)
	ctx := context.Background()
	u := tests.SeedUser(t, gdb, "owner")
	single := tests.SeedDevice(t, gdb, u.ID, "single")
	batched := tests.SeedDevice(t, gdb, u.ID, "batched")

	online := model.DeviceOnline
	got, err := svc.Update(ctx, u.ID, single.ID, UpdateInput{Status: &online})
	require.NoError(t, err)
	require.NotNil(t, got.LastSeenAt)

	_, err = svc.BatchUpdateStatus(ctx, u.ID, []uint{batched.ID}, model.DeviceOnline)
	require.NoError(t, err)
	assert.Equal(t, 2, n.count())

	changed, err := svc.SweepStale(ctx, StaleAfter)
	require.NoError(t, err)
	assert.Zero(t, changed)
	assert.Equal(t, 2, n.count())

	for _, id := range []uint{single.ID, batched.ID} {
		d, err := svc.Get(ctx, u.ID, id)
		require.NoError(t, err)
		assert.Equal(t, model.DeviceOnline, d.Status)
		require.NotNil(t, d.LastSeenAt)
	}
}

func TestRepeatHeartbeatRefreshesCache(t *testing.T) {
	svc, _, _, gdb := newTestService(t)
	ctx := context.Background()
	u := tests.SeedUser(t, gdb, "owner")
	d := tests.SeedDevice(t, gdb, u.ID, "rex")

	_, err := svc.Heartbeat(ctx, d.ID)
	require.NoError(t, err)
	_, err = svc.List(ctx, u.ID, Filter{})
	require.NoError(t, err)
	_, err = svc.Get(ctx, u.ID, d.ID)
	require.NoError(t, err)

	earlier := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, gdb.Model(&model.Device{}).Where("id = ?", d.ID).Update("last_seen_at", earlier).Error)
	_, err = svc.Heartbeat(ctx, d.ID)
	require.NoError(t, err)

	var stored model.Device
	require.NoError(t, gdb.First(&stored, d.ID).Error)
	require.NotNil(t, stored.LastSeenAt)

	list, err := svc.List(ctx, u.ID, Filter{})
	require.NoError(t, err)
	require.Len(t, list.Devices, 1)
	require.NotNil(t, list.Devices[0].LastSeenAt)
	assert.True(t, stored.LastSeenAt.Equal(*list.Devices[0].LastSeenAt))

	got, err := svc.Get(ctx, u.ID, d.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastSeenAt)
	assert.True(t, stored.LastSeenAt.Equal(*got.LastSeenAt))
	assert.True(t, got.LastSeenAt.After(earlier))
}

func TestList_hugePageIsClamped(t *testing.T) {
	svc, _, _, gdb := newTestService(t)
	ctx := context.Background()
	u := tests.SeedUser(t, gdb, "owner")
	tests.SeedDevice(t, gdb, u.ID, "rex")

	res, err := svc.List(ctx, u.ID, Filter{Page: math.MaxInt64 / 10, Limit: 100})
	require.NoError(t, err)
	assert.Empty(t, res.Devices)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, repo.MaxPage, res.Page)
}

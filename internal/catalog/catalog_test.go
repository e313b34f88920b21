package catalog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/cache"
	"github.com/airobot/server/internal/model"
	"github.com/airobot/server/internal/repo"
	"github.com/airobot/server/internal/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, *cache.Memory) {
	t.Helper()
	gdb := tests.OpenDB(t)
	mem := cache.NewMemory(zap.NewNop())
	return NewService(repo.NewActionRepo(gdb), mem, zap.NewNop()), mem
}

func ptr[T any](v T) *T { return &v }

func createBasic(t *testing.T, svc *Service, name string, duration float64) model.Action {
	t.Helper()
	a, err := svc.Create(context.Background(), Input{Name: ptr(name), Type: ptr(model.ActionBasic), Duration: ptr(duration)})
	require.NoError(t, err)
	return a
}

func TestCreate_basicDefaultsSteps(t *testing.T) {
	svc, _ := newTestService(t)

	a := createBasic(t, svc, "前进", 1)
	assert.NotZero(t, a.ID)
	assert.JSONEq(t, `["前进"]`, string(a.Steps))

	_, err := svc.Create(context.Background(), Input{Name: ptr("前进"), Type: ptr(model.ActionBasic), Duration: ptr(1.0)})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestCreate_validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, Input{Name: ptr("x"), Type: ptr("dance"), Duration: ptr(1.0)})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	_, err = svc.Create(ctx, Input{Name: ptr("  "), Type: ptr(model.ActionBasic), Duration: ptr(1.0)})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	_, err = svc.Create(ctx, Input{Name: ptr("wave"), Type: ptr(model.ActionCustom)})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput), "duration is required")

	_, err = svc.Create(ctx, Input{Type: ptr(model.ActionBasic), Duration: ptr(1.0)})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

func TestCreate_combination(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	n := createBasic(t, svc, "前进", 1)

	steps, _ := json.Marshal([]uint{n.ID, n.ID})
	combo, err := svc.Create(ctx, Input{Name: ptr("double step"), Type: ptr(model.ActionCombination), Steps: steps})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, combo.Duration, 1e-9)

	ids, err := combo.StepIDs()
	require.NoError(t, err)
	assert.Equal(t, []uint{n.ID, n.ID}, ids)

	steps, _ = json.Marshal([]uint{n.ID, n.ID, n.ID, n.ID})
	_, err = svc.Create(ctx, Input{Name: ptr("too long"), Type: ptr(model.ActionCombination), Steps: steps})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	_, err = svc.Create(ctx, Input{Name: ptr("ghost"), Type: ptr(model.ActionCombination), Steps: json.RawMessage(`[9999]`)})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	_, err = svc.Create(ctx, Input{Name: ptr("empty"), Type: ptr(model.ActionCombination), Steps: json.RawMessage(`[]`)})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

func TestCreate_combinationExactlyAtLimit(t *testing.T) {
	svc, _ := newTestService(t)

	// Seeded: forward (1s), turn left (0.5s), turn right (0.5s), stand up (1s).
	steps := json.RawMessage(`[1, 3, 4, 6]`)
	combo, err := svc.Create(context.Background(), Input{Name: ptr("routine"), Type: ptr(model.ActionCombination), Steps: steps})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, combo.Duration, 1e-9)
}

func TestUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := createBasic(t, svc, "wave", 1)
	createBasic(t, svc, "nod", 1)

	updated, err := svc.Update(ctx, a.ID, Input{Description: ptr("wave a paw"), Duration: ptr(2.0)})
	require.NoError(t, err)
	assert.Equal(t, "wave a paw", updated.Description)
	assert.Equal(t, 2.0, updated.Duration)

	_, err = svc.Update(ctx, a.ID, Input{Name: ptr("nod")})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.Update(ctx, 9999, Input{Description: ptr("x")})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdate_combinationCannotContainItself(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	combo, err := svc.Create(ctx, Input{Name: ptr("pair"), Type: ptr(model.ActionCombination), Steps: json.RawMessage(`[1, 2]`)})
	require.NoError(t, err)

	steps, _ := json.Marshal([]uint{1, combo.ID})
	_, err = svc.Update(ctx, combo.ID, Input{Steps: steps})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

func TestDelete_blockedWhileReferenced(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	n := createBasic(t, svc, "前进", 1)

	steps, _ := json.Marshal([]uint{n.ID, n.ID})
	combo, err := svc.Create(ctx, Input{Name: ptr("double step"), Type: ptr(model.ActionCombination), Steps: steps})
	require.NoError(t, err)

	err = svc.Delete(ctx, n.ID)
	require.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Contains(t, err.Error(), "double step")

	require.NoError(t, svc.Delete(ctx, combo.ID))
	require.NoError(t, svc.Delete(ctx, n.ID))

	err = svc.Delete(ctx, n.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListAndGet_cacheInvalidation(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 6)
	assert.Equal(t, 1, mem.Len())

	d, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "forward", d.Name)
	assert.Equal(t, 2, mem.Len())

	createBasic(t, svc, "wave", 1)
	assert.Equal(t, 0, mem.Len())

	list, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 7)

	_, err = svc.Get(ctx, 9999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestGet_combinationDetails(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	combo, err := svc.Create(ctx, Input{Name: ptr("pair"), Type: ptr(model.ActionCombination), Steps: json.RawMessage(`[2, 1, 2]`)})
	require.NoError(t, err)

	d, err := svc.Get(ctx, combo.ID)
	require.NoError(t, err)
	require.Len(t, d.CombinationDetails, 3)
	assert.Equal(t, "backward", d.CombinationDetails[0].Name)
	assert.Equal(t, "forward", d.CombinationDetails[1].Name)
}

func TestExecute(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	r, err := svc.Execute(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, r.Single)
	assert.Equal(t, "forward", r.Single.ActionName)

	combo, err := svc.Create(ctx, Input{Name: ptr("pair"), Type: ptr(model.ActionCombination), Steps: json.RawMessage(`[1, 3]`)})
	require.NoError(t, err)

	r, err = svc.Execute(ctx, combo.ID)
	require.NoError(t, err)
	require.NotNil(t, r.Combination)
	require.Len(t, r.Combination.Steps, 2)
	assert.Equal(t, "turn left", r.Combination.Steps[1].ActionName)
	assert.InDelta(t, 1.5, r.Combination.TotalDuration, 1e-9)

	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"combinationName":"pair"`)

	_, err = svc.Execute(ctx, 9999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdate_stepDurationDoesNotRevalidateCombinations(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	n := createBasic(t, svc, "前进", 1)

	steps, _ := json.Marshal([]uint{n.ID, n.ID})
	combo, err := svc.Create(ctx, Input{Name: ptr("double step"), Type: ptr(model.ActionCombination), Steps: steps})
	require.NoError(t, err)

	_, err = svc.Update(ctx, n.ID, Input{Duration: ptr(2.0)})
	require.NoError(t, err)

	got, err := svc.Get(ctx, combo.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got.Duration, 1e-9)

	_, err = svc.Update(ctx, combo.ID, Input{Name: ptr("double stride")})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

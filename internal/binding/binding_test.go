package binding

import (
	"context"
	"testing"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/repo"
	"github.com/airobot/server/internal/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBindingLifecycle(t *testing.T) {
	gdb := tests.OpenDB(t)
	ctx := context.Background()
	svc := NewService(repo.NewBindingRepo(gdb), repo.NewDeviceRepo(gdb), repo.NewActionRepo(gdb), zap.NewNop())

	owner := tests.SeedUser(t, gdb, "owner")
	other := tests.SeedUser(t, gdb, "other")
	d := tests.SeedDevice(t, gdb, owner.ID, "rex")

	v, err := svc.Add(ctx, owner.ID, d.ID, 1, "  go forward ")
	require.NoError(t, err)
	assert.Equal(t, "go forward", v.Prompt)
	assert.Equal(t, "forward", v.ActionName)

	_, err = svc.Add(ctx, owner.ID, d.ID, 1, "again")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.Add(ctx, owner.ID, d.ID, 9999, "x")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.Add(ctx, other.ID, d.ID, 2, "x")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.Add(ctx, owner.ID, d.ID, 2, "")
	require.NoError(t, err)

	list, err := svc.List(ctx, owner.ID, d.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Move forward", list[0].ActionDescription)

	cands, err := svc.Candidates(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, uint(1), cands[0].ActionID)
	assert.Equal(t, "backward", cands[1].Name)

	updated, err := svc.Update(ctx, owner.ID, v.ID, "march")
	require.NoError(t, err)
	assert.Equal(t, "march", updated.Prompt)

	_, err = svc.Update(ctx, other.ID, v.ID, "steal")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, svc.Delete(ctx, owner.ID, v.ID))
	err = svc.Delete(ctx, owner.ID, v.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

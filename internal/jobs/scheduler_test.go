package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler_AddRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	err := s.Add("not a schedule", "bad", func(context.Context) (int, error) { return 0, nil })
	assert.Error(t, err)
}

func TestScheduler_Run(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	var calls atomic.Int32

	s.run("ok", func(ctx context.Context) (int, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		calls.Add(1)
		return 3, nil
	})
	s.run("failing", func(context.Context) (int, error) {
		calls.Add(1)
		return 0, errors.New("boom")
	})
	assert.EqualValues(t, 2, calls.Load())

	require.NoError(t, s.Add("@every 1h", "sweep", func(context.Context) (int, error) { return 0, nil }))
	s.Start()
	s.Stop(context.Background())
}

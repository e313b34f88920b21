package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Requires a reachable redis server; set REDIS_ADDR to run.
func TestRedis_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis integration test")
	}
	ctx := context.Background()
	c, err := NewRedis(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	c.DelPattern(ctx, "test:*")

	c.Set(ctx, "test:a", sample{ID: 1, Name: "a"}, time.Minute)
	c.Set(ctx, "test:b", sample{ID: 2, Name: "b"}, time.Minute)

	var got sample
	require.True(t, c.Get(ctx, "test:a", &got))
	assert.Equal(t, "a", got.Name)

	c.DelPattern(ctx, "test:*")
	assert.False(t, c.Get(ctx, "test:a", &got))
	assert.False(t, c.Get(ctx, "test:b", &got))
}

func TestRedis_UnreachableIsMiss(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedis(ctx, "127.0.0.1:1", "", 0, zap.NewNop())
	require.Error(t, err)
}

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func exerciseCache(t *testing.T, c ports.Cache) {
	ctx := context.Background()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", []byte("alpha"), time.Minute))
	got, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, []byte("alpha"), got)

	require.NoError(t, c.Delete(ctx, "a"))
	_, ok = c.Get(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "b", []byte("beta"), time.Minute))
	require.NoError(t, c.Set(ctx, "c", []byte("gamma"), time.Minute))
	require.NoError(t, c.Clear(ctx))
	_, ok = c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "c")
	assert.False(t, ok)
}

func TestInMemoryCache(t *testing.T) {
	c := NewInMemoryCache(0)
	defer c.Close()
	exerciseCache(t, c)
}

func TestInMemoryCache_Expiry(t *testing.T) {
	c := NewInMemoryCache(0)
	defer c.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), time.Second))
	_, ok := c.Get(context.Background(), "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.Get(context.Background(), "k")
	assert.False(t, ok)

	c.removeExpired()
	assert.Equal(t, 0, c.Len())
}

func TestInMemoryCache_CopiesValues(t *testing.T) {
	c := NewInMemoryCache(0)
	defer c.Close()

	value := []byte("original")
	require.NoError(t, c.Set(context.Background(), "k", value, time.Minute))
	value[0] = 'X'

	got, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, "original", string(got))
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis cache tests")
	}

	c, err := NewRedisCache(context.Background(), addr, "", 0, "socialgraph-test:", zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	exerciseCache(t, c)
}

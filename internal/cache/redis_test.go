package cache

import (
	"context"
	"testing"

	"gorahrib/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRedis(t *testing.T) {
	t.Cleanup(func() { SetClient(nil) })
	mr := miniredis.RunT(t)

	for _, addr := range []string{mr.Addr(), "redis://" + mr.Addr() + "/0"} {
		c := InitRedis(addr)
		require.NotNil(t, c, addr)
		assert.Same(t, c, client)
		require.NoError(t, c.Set(context.Background(), "k", "v", 0).Err())
	}

	assert.Nil(t, InitRedis("redis://localhost:notaport"))
	assert.Nil(t, client, "an invalid URL disables the cache")

	mr.Close()
	assert.Nil(t, InitRedis(mr.Addr()), "unreachable redis is tolerated")
}

func TestErrorCounter_IgnoresMisses(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	before := testutil.ToFloat64(middleware.RedisErrors.WithLabelValues("get"))
	require.Error(t, client.Get(ctx, "missing").Err())
	assert.Equal(t, before, testutil.ToFloat64(middleware.RedisErrors.WithLabelValues("get")))

	mr.SetError("READONLY")
	require.Error(t, client.Get(ctx, "missing").Err())
	assert.Equal(t, before+1, testutil.ToFloat64(middleware.RedisErrors.WithLabelValues("get")))
}

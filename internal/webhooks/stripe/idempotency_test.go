package stripewebhook

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	redisclient "github.com/halcyon-wellness/storefront-api/pkg/redis"
)

func TestIdempotencyGuardClaimsOnce(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	raw := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	guard, err := NewIdempotencyGuard(redisclient.Wrap(raw), time.Hour)
	require.NoError(t, err)

	dup, err := guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	require.False(t, dup)

	dup, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	require.True(t, dup)

	require.NoError(t, guard.Release(ctx, "evt_1"))
	dup, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	require.False(t, dup)

	_, err = guard.CheckAndMark(ctx, "")
	require.Error(t, err)

	mr.FastForward(2 * time.Hour)
	dup, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	require.False(t, dup)
}

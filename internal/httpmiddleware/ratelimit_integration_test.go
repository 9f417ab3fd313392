//go:build integration

package httpmiddleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/testutil/containers"
)

func TestRedisLimiterIntegration(t *testing.T) {
	client := containers.NewRedis(t)
	l := NewRedisLimiter(client, 2)
	now := time.Date(2025, 9, 17, 14, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := t.Context()

	for i, want := range []bool{true, true, false} {
		ok, err := l.Allow(ctx, "ana@example.org")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "request %d", i+1)
	}
	ok, err := l.Allow(ctx, "bia@example.org")
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	ttl, err := client.TTL(ctx, "checkin:rl:ana@example.org:29301960").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	now = now.Add(time.Minute)
	ok, err = l.Allow(ctx, "ana@example.org")
	require.NoError(t, err)
	assert.True(t, ok, "a new window starts")
}

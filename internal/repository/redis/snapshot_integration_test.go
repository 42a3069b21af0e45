//go:build integration

package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotSlot_RoundTrip(t *testing.T) {
	addr := os.Getenv("IT_REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:16379"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := NewClient(ctx, Config{Addr: addr, Timeout: 2 * time.Second})
	require.NoError(t, err)
	defer client.Close()

	key := "it:flight-monitors:" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _ = client.Del(context.Background(), key).Err() })
	slot := NewSnapshotSlot(client, key)

	body, err := slot.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, body)

	require.NoError(t, slot.Save(ctx, []byte(`[{"id":"x"}]`)))
	body, err = slot.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"x"}]`, string(body))

	ttl, err := client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)
}

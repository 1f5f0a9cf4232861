//go:build integration

package kvs_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/iotgw/device-gateway/internal/gwconfig"
	"github.com/iotgw/device-gateway/internal/kvs"
)

// newTestRedis spins up a real Redis via testcontainers, the same way
// test/database/client.go spins up Postgres for pkg/database tests, and
// wires it through kvs.NewRedis so this exercises the actual go-redis
// adapter rather than the in-memory fake used by the unit tests.
func newTestRedis(t *testing.T) *kvs.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	port, err := strconv.Atoi(mappedPort.Port())
	require.NoError(t, err)

	rp, err := kvs.NewRedis(ctx, gwconfig.RedisConfig{IP: host, Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rp.Close() })

	return kvs.New(rp)
}

func TestRedisActivateAndQueryRoundTrip(t *testing.T) {
	c := newTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, c.Activate(ctx, "D1"))

	alive, err := c.IsAlive(ctx, "D1")
	require.NoError(t, err)
	assert.True(t, alive)

	count, err := c.AliveCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	require.NoError(t, c.Deactivate(ctx, "D1"))
	alive, err = c.IsAlive(ctx, "D1")
	require.NoError(t, err)
	assert.False(t, alive)
}

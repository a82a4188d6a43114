package sessionstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/lorrc/helpdesk-client/internal/adapters/secondary/sessionstore"
	"github.com/jonboulle/clockwork"
	apperrors "github.com/lorrc/helpdesk-client/internal/core/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "could not start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("could not terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedis(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	clk := clockwork.NewFakeClockAt(time.Date(2029, 12, 31, 23, 0, 0, 0, time.UTC))

	t.Run("round trip with ttl until expiry", func(t *testing.T) {
		store := sessionstore.NewRedis(client, "kiosk-1", clk)
		require.NoError(t, store.Ping(ctx))

		_, err := store.Load(ctx)
		require.ErrorIs(t, err, apperrors.ErrNoSession)

		require.NoError(t, store.Save(ctx, testSession()))

		loaded, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, testSession().Identity, loaded.Identity)
		assert.True(t, testSession().ExpiresAt.Equal(loaded.ExpiresAt))

		ttl, err := client.TTL(ctx, sessionstore.KeyPrefix+"kiosk-1").Result()
		require.NoError(t, err)
		assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 5)

		require.NoError(t, store.Clear(ctx))
		_, err = store.Load(ctx)
		assert.ErrorIs(t, err, apperrors.ErrNoSession)
	})

	t.Run("profiles are isolated", func(t *testing.T) {
		a := sessionstore.NewRedis(client, "a", clk)
		b := sessionstore.NewRedis(client, "b", clk)
		require.NoError(t, a.Save(ctx, testSession()))

		_, err := b.Load(ctx)
		assert.ErrorIs(t, err, apperrors.ErrNoSession)
	})

	t.Run("already expired sessions are not stored", func(t *testing.T) {
		late := clockwork.NewFakeClockAt(time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC))
		store := sessionstore.NewRedis(client, "late", late)

		require.NoError(t, store.Save(ctx, testSession()))
		_, err := store.Load(ctx)
		assert.ErrorIs(t, err, apperrors.ErrNoSession)
	})
}

//go:build integration

package mirror

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dyluth/osechi/pkg/box"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container for testing.
func setupRedis(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s", host, port.Port())
}

func connect(t *testing.T, url string) *box.Client {
	t.Helper()
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client, err := box.NewClient(opts, "integration")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// TestIntegration_TwoClientsConverge checks that writes from one client
// reach another client's snapshot through a real Redis server, and that
// concurrent writes to different slots do not clobber each other.
func TestIntegration_TwoClientsConverge(t *testing.T) {
	url := setupRedis(t)
	alice, bob := connect(t, url), connect(t, url)

	syncA := startSync(t, alice, Options{ResyncInterval: time.Second})
	syncB := startSync(t, bob, Options{ResyncInterval: time.Second})

	ctx := context.Background()
	done := make(chan error, 2)
	go func() { done <- alice.WriteSlot(ctx, 0, 0, newSlot("Datemaki")) }()
	go func() { done <- bob.WriteSlot(ctx, 0, 1, newSlot("Kazunoko")) }()
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	for _, s := range []*Synchronizer{syncA, syncB} {
		assert.Eventually(t, func() bool {
			snap := s.Snapshot()
			return snap.SlotAt(0, 0) != nil && snap.SlotAt(0, 1) != nil
		}, 5*time.Second, 20*time.Millisecond)
	}

	require.NoError(t, bob.ClearSlot(ctx, 0, 0))
	assert.Eventually(t, func() bool { return syncA.Snapshot().SlotAt(0, 0) == nil }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "Kazunoko", syncA.Snapshot().SlotAt(0, 1).Title)
}

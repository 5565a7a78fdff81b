package sessionpolicy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codeready-toolchain/ckdqa/pkg/database"
)

// newTestStore starts a real PostgreSQL container, mirroring
// pkg/database's own newTestClient helper, since RetentionSweeper's only
// job is to drive database.Store.DeleteExpiredSessions on a schedule.
func newTestStore(t *testing.T) *database.Store {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	client, err := database.NewClient(ctx, database.Config{
		Host: host, Port: port.Int(), User: "test", Password: "test", Database: "test",
		SSLMode: "disable", MaxOpenConns: 10, MaxIdleConns: 5,
		ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 15 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return database.NewStore(client)
}

func TestRetentionSweeperPurgesExpiredSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, store.UpsertSession(ctx, database.SessionRecord{
		SessionID: "sess-old", UserID: "user-1", RoomID: "room-1", CreatedAt: old, LastActivity: old,
	}))

	sweeper := NewRetentionSweeper(store, 24*time.Hour, 10*time.Millisecond)
	sweepCtx, cancel := context.WithCancel(ctx)
	go sweeper.Run(sweepCtx)

	require.Eventually(t, func() bool {
		_, err := store.GetSession(ctx, "sess-old")
		return err != nil
	}, time.Second, 10*time.Millisecond)

	cancel()
}

func TestRetentionSweeperDefaultsIntervalWhenNonPositive(t *testing.T) {
	sweeper := NewRetentionSweeper(nil, time.Hour, 0)
	assert.Equal(t, time.Hour, sweeper.interval)
}

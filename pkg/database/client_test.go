package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestClient starts a real PostgreSQL container and applies the embedded
// migrations through the same NewClient path production uses.
func newTestClient(t *testing.T) *Client {
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

	client, err := NewClient(ctx, Config{
		Host: host, Port: port.Int(), User: "test", Password: "test", Database: "test",
		SSLMode: "disable", MaxOpenConns: 10, MaxIdleConns: 5,
		ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 15 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestDatabaseClient_ConnectionPool(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	err := client.DB().PingContext(ctx)
	require.NoError(t, err)

	health, err := Health(ctx, client.DB())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Greater(t, health.MaxOpenConns, 0)
}

func TestStoreSessionLifecycle(t *testing.T) {
	client := newTestClient(t)
	store := NewStore(client)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	rec := SessionRecord{
		SessionID: "sess-1", UserID: "user-1", RoomID: "room-1",
		ActiveAgent: "nutrition", CreatedAt: now, LastActivity: now,
	}
	require.NoError(t, store.UpsertSession(ctx, rec))

	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "nutrition", got.ActiveAgent)

	require.NoError(t, store.DeleteSession(ctx, "sess-1"))
	_, err = store.GetSession(ctx, "sess-1")
	assert.Error(t, err)
}

func TestStoreConversationHistoryFullTextSearch(t *testing.T) {
	client := newTestClient(t)
	store := NewStore(client)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.UpsertSession(ctx, SessionRecord{
		SessionID: "sess-2", UserID: "user-2", RoomID: "room-2", CreatedAt: now, LastActivity: now,
	}))

	require.NoError(t, store.AppendHistory(ctx, HistoryRecord{
		SessionID: "sess-2", AgentType: "nutrition",
		UserInput: "what should I eat", AgentResponse: "avoid high potassium foods",
		CreatedAt: now,
	}))
	require.NoError(t, store.AppendHistory(ctx, HistoryRecord{
		SessionID: "sess-2", AgentType: "medical_welfare",
		UserInput: "what benefits exist", AgentResponse: "apply for the medical expense subsidy program",
		CreatedAt: now.Add(time.Second),
	}))

	hist, err := store.History(ctx, "sess-2", 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "nutrition", hist[0].AgentType)
	assert.Equal(t, "medical_welfare", hist[1].AgentType)

	results, err := store.SearchHistory(ctx, "potassium", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "nutrition", results[0].AgentType)
}

func TestStoreRoomsForUserAndSessionByRoom(t *testing.T) {
	client := newTestClient(t)
	store := NewStore(client)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.UpsertSession(ctx, SessionRecord{
		SessionID: "sess-4", UserID: "user-4", RoomID: "room-4", CreatedAt: now, LastActivity: now,
	}))
	require.NoError(t, store.AppendHistory(ctx, HistoryRecord{
		SessionID: "sess-4", AgentType: "quiz",
		UserInput: "quiz me", AgentResponse: "here is a CKD stage question", CreatedAt: now,
	}))

	rooms, err := store.RoomsForUser(ctx, "user-4")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "room-4", rooms[0].RoomID)
	assert.Equal(t, "here is a CKD stage question", rooms[0].LastMessage)

	byRoom, err := store.SessionByRoom(ctx, "room-4")
	require.NoError(t, err)
	assert.Equal(t, "sess-4", byRoom.SessionID)
}

func TestStoreTokenUsageAccumulates(t *testing.T) {
	client := newTestClient(t)
	store := NewStore(client)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.UpsertSession(ctx, SessionRecord{
		SessionID: "sess-3", UserID: "user-3", RoomID: "room-3", CreatedAt: now, LastActivity: now,
	}))

	require.NoError(t, store.RecordTokenUsage(ctx, "sess-3", "nutrition", 100))
	require.NoError(t, store.RecordTokenUsage(ctx, "sess-3", "nutrition", 50))
	require.NoError(t, store.RecordTokenUsage(ctx, "sess-3", "quiz", 25))

	total, err := store.TotalTokenUsage(ctx, "sess-3")
	require.NoError(t, err)
	assert.Equal(t, 175, total)
}

func TestDeleteExpiredSessionsRemovesOnlyOldRows(t *testing.T) {
	client := newTestClient(t)
	store := NewStore(client)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC()
	require.NoError(t, store.UpsertSession(ctx, SessionRecord{
		SessionID: "sess-old", UserID: "user-1", RoomID: "room-1", CreatedAt: old, LastActivity: old,
	}))
	require.NoError(t, store.UpsertSession(ctx, SessionRecord{
		SessionID: "sess-fresh", UserID: "user-1", RoomID: "room-2", CreatedAt: recent, LastActivity: recent,
	}))

	count, err := store.DeleteExpiredSessions(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = store.GetSession(ctx, "sess-old")
	assert.Error(t, err)
	_, err = store.GetSession(ctx, "sess-fresh")
	assert.NoError(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", SSLMode: "disable", MaxOpenConns: 10, MaxIdleConns: 5,
			},
			wantErr: false,
		},
		{
			name: "missing password",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "",
				Database: "test", MaxOpenConns: 10, MaxIdleConns: 5,
			},
			wantErr: true,
		},
		{
			name: "idle conns exceed max conns",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", MaxOpenConns: 5, MaxIdleConns: 10,
			},
			wantErr: true,
		},
		{
			name: "zero max open conns",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", MaxOpenConns: 0, MaxIdleConns: 0,
			},
			wantErr: true,
		},
		{
			name: "negative idle conns",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", MaxOpenConns: 10, MaxIdleConns: -1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

//go:build integration

package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"shrimp/internal/config"
	"shrimp/internal/database"
	"shrimp/internal/domain"
	"shrimp/internal/repository"
)

func newPostgresStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("shrimp"),
		postgres.WithUsername("shrimp"),
		postgres.WithPassword("shrimp"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	log := zap.NewNop()
	db, err := database.NewConnection(&config.Database{
		Driver:          database.DriverPostgres,
		DSN:             dsn,
		MaxIdleConns:    2,
		MaxOpenConns:    4,
		ConnMaxLifetime: "1h",
	}, "test", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db, log) })

	models := append(database.LinkModels(), database.StatsModels()...)
	require.NoError(t, database.AutoMigrate(db, log, models...))

	return New(db, log)
}

func TestPostgresLinkLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newPostgresStore(t)

	require.NoError(t, store.Ping(ctx))

	link := newLink("pg12345")
	require.NoError(t, store.CreateLink(ctx, link))
	assert.ErrorIs(t, store.CreateLink(ctx, newLink("pg12345")), repository.ErrSlugExists)

	resolved, err := store.ResolveAndRecordClick(ctx, "pg12345", testNow, domain.Visit{Referrer: "https://news.example", Country: "DE"})
	require.NoError(t, err)
	assert.Equal(t, link.ID, resolved.ID)

	clicks, err := store.CountClicks(ctx, link.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, clicks)

	require.NoError(t, store.DeleteLink(ctx, link.ID))
	_, err = store.GetLinkByID(ctx, link.ID)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}

func TestPostgresSessionUpsert(t *testing.T) {
	ctx := context.Background()
	store := newPostgresStore(t)

	five := int64(5)
	_, err := store.UpsertSession(ctx, domain.SessionUpdate{SessionID: "s1", MessagesCount: &five}, testNow)
	require.NoError(t, err)

	two := int64(2)
	session, err := store.UpsertSession(ctx, domain.SessionUpdate{SessionID: "s1", SubAgentsSpawned: &two}, testNow)
	require.NoError(t, err)
	assert.EqualValues(t, 5, session.MessagesCount)
	assert.EqualValues(t, 2, session.SubAgentsSpawned)

	totals, err := store.SessionTotals(ctx, domain.TimeFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, totals.Total)
	assert.EqualValues(t, 2, totals.SubAgentsSpawned)
}

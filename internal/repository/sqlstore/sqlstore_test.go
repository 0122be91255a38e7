package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shrimp/internal/clock"
	"shrimp/internal/config"
	"shrimp/internal/database"
	"shrimp/internal/domain"
	"shrimp/internal/repository"
)

var (
	_ repository.LinkStorage  = (*Store)(nil)
	_ repository.StatsStorage = (*Store)(nil)
	_ repository.Pinger       = (*Store)(nil)
)

var testNow = clock.FromTime(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

func newTestStore(t *testing.T) *Store {
	t.Helper()

	log := zap.NewNop()
	db, err := database.NewConnection(&config.Database{Driver: database.DriverSQLite, Path: database.MemoryPath}, "test", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db, log) })

	models := append(database.LinkModels(), database.StatsModels()...)
	require.NoError(t, database.AutoMigrate(db, log, models...))

	return New(db, log)
}

func newLink(slug string) *domain.Link {
	return &domain.Link{
		Slug:      slug,
		URL:       "https://example.org/" + slug,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}

func TestCreateAndGetLink(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	link := newLink("abc1234")
	link.ExpiresAt = testNow.Add(time.Hour).Ptr()
	require.NoError(t, store.CreateLink(ctx, link))
	assert.NotZero(t, link.ID)

	byID, err := store.GetLinkByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc1234", byID.Slug)
	assert.Equal(t, testNow, byID.CreatedAt)
	require.NotNil(t, byID.ExpiresAt)
	assert.Equal(t, testNow.Add(time.Hour), *byID.ExpiresAt)

	exists, err := store.SlugExists(ctx, "abc1234")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.SlugExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.GetLinkByID(ctx, link.ID+100)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	err = store.CreateLink(ctx, newLink("abc1234"))
	assert.ErrorIs(t, err, repository.ErrSlugExists)
}

func TestConcurrentCreateSameSlug(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	const writers = 8
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.CreateLink(ctx, newLink("samesame"))
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, repository.ErrSlugExists):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, writers-1, conflicts)
}

func TestResolveAndRecordClick(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	live := newLink("livelnk")
	require.NoError(t, store.CreateLink(ctx, live))

	expired := newLink("oldlink")
	expired.ExpiresAt = testNow.Add(-time.Minute).Ptr()
	require.NoError(t, store.CreateLink(ctx, expired))

	boundary := newLink("edgelnk")
	boundary.ExpiresAt = testNow.Ptr()
	require.NoError(t, store.CreateLink(ctx, boundary))

	disabled := newLink("offlink")
	disabled.Disabled = true
	require.NoError(t, store.CreateLink(ctx, disabled))

	visit := domain.Visit{Referrer: "https://news.example", UserAgent: "curl/8", IP: "10.0.0.1", Country: "NL", City: "Amsterdam"}

	got, err := store.ResolveAndRecordClick(ctx, "livelnk", testNow, visit)
	require.NoError(t, err)
	assert.Equal(t, live.URL, got.URL)

	clicks, err := store.RecentClicks(ctx, live.ID, 50)
	require.NoError(t, err)
	require.Len(t, clicks, 1)
	assert.Equal(t, "NL", clicks[0].Country)
	assert.Equal(t, "Amsterdam", clicks[0].City)
	assert.Equal(t, "10.0.0.1", clicks[0].IP)
	assert.Equal(t, testNow, clicks[0].ClickedAt)

	for _, l := range []*domain.Link{expired, boundary, disabled} {
		_, err := store.ResolveAndRecordClick(ctx, l.Slug, testNow, visit)
		assert.ErrorIs(t, err, repository.ErrLinkNotFound, l.Slug)

		n, err := store.CountClicks(ctx, l.ID)
		require.NoError(t, err)
		assert.Zero(t, n, l.Slug)
	}

	_, err = store.ResolveAndRecordClick(ctx, "nothere", testNow, visit)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}

func TestUpdateLink(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := newLink("first01")
	second := newLink("second1")
	require.NoError(t, store.CreateLink(ctx, first))
	require.NoError(t, store.CreateLink(ctx, second))

	first.Disabled = true
	first.URL = "https://changed.example"
	first.UpdatedAt = testNow.Add(time.Minute)
	require.NoError(t, store.UpdateLink(ctx, first))

	got, err := store.GetLinkByID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.Disabled)
	assert.Equal(t, "https://changed.example", got.URL)
	assert.Equal(t, testNow.Add(time.Minute), got.UpdatedAt)

	// zero values are written too
	first.Disabled = false
	require.NoError(t, store.UpdateLink(ctx, first))
	got, err = store.GetLinkByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, got.Disabled)

	first.Slug = "second1"
	assert.ErrorIs(t, store.UpdateLink(ctx, first), repository.ErrSlugExists)

	ghost := newLink("ghost01")
	ghost.ID = 9999
	assert.ErrorIs(t, store.UpdateLink(ctx, ghost), repository.ErrLinkNotFound)
}

func TestDeleteLinkRemovesClicks(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	link := newLink("doomed1")
	require.NoError(t, store.CreateLink(ctx, link))
	_, err := store.ResolveAndRecordClick(ctx, link.Slug, testNow, domain.Visit{})
	require.NoError(t, err)

	require.NoError(t, store.DeleteLink(ctx, link.ID))
	assert.ErrorIs(t, store.DeleteLink(ctx, link.ID), repository.ErrLinkNotFound)

	n, err := store.CountClicks(ctx, link.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListLinksAndAnalytics(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	older := newLink("older01")
	newer := newLink("newer01")
	newer.CreatedAt = testNow.Add(time.Hour)
	require.NoError(t, store.CreateLink(ctx, older))
	require.NoError(t, store.CreateLink(ctx, newer))

	visits := []domain.Visit{
		{Referrer: "https://a.example", Country: "US"},
		{Referrer: "https://a.example", Country: "US"},
		{Referrer: "https://b.example", Country: "DE"},
		{Referrer: "", Country: ""},
	}
	for _, v := range visits {
		_, err := store.ResolveAndRecordClick(ctx, older.Slug, testNow, v)
		require.NoError(t, err)
	}

	links, err := store.ListLinks(ctx)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "newer01", links[0].Slug)
	assert.Zero(t, links[0].ClickCount)
	assert.Equal(t, "older01", links[1].Slug)
	assert.Equal(t, int64(4), links[1].ClickCount)

	refs, err := store.TopReferrers(ctx, older.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, []domain.CountByKey{
		{Key: "https://a.example", Count: 2},
		{Key: "https://b.example", Count: 1},
	}, refs)

	countries, err := store.TopCountries(ctx, older.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []domain.CountByKey{{Key: "US", Count: 2}}, countries)
}

func TestMarkReported(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	link := newLink("report1")
	link.ExpiresAt = testNow.Add(-time.Hour).Ptr()
	require.NoError(t, store.CreateLink(ctx, link))

	require.NoError(t, store.MarkReported(ctx, "report1", testNow))
	got, err := store.GetLinkByID(ctx, link.ID)
	require.NoError(t, err)
	assert.True(t, got.Reported)

	assert.ErrorIs(t, store.MarkReported(ctx, "nothere", testNow), repository.ErrLinkNotFound)
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	stale := newLink("stale01")
	stale.ExpiresAt = testNow.Add(-48 * time.Hour).Ptr()
	recent := newLink("recent1")
	recent.ExpiresAt = testNow.Add(-time.Hour).Ptr()
	forever := newLink("forever")
	for _, l := range []*domain.Link{stale, recent, forever} {
		require.NoError(t, store.CreateLink(ctx, l))
	}

	removed, err := store.PurgeExpired(ctx, testNow.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = store.GetLinkByID(ctx, stale.ID)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	_, err = store.GetLinkByID(ctx, recent.ID)
	assert.NoError(t, err)
	_, err = store.GetLinkByID(ctx, forever.ID)
	assert.NoError(t, err)
}

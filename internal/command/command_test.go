package command

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shrimp/internal/clock"
	"shrimp/internal/config"
	"shrimp/internal/database"
	"shrimp/internal/domain"
	"shrimp/internal/repository/sqlstore"
)

func subcommands(cmd *cobra.Command) []string {
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	return names
}

func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yml"))
	t.Setenv("ENV", "test")
}

func TestCommandTrees(t *testing.T) {
	shrimp := NewShrimpCmd("1.2.3")
	assert.Equal(t, "1.2.3", shrimp.Version)
	assert.ElementsMatch(t, []string{"serve", "migrate", "purge"}, subcommands(shrimp))

	tide := NewTideChartsCmd("1.2.3")
	assert.ElementsMatch(t, []string{"serve", "migrate"}, subcommands(tide))
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateSQLite(t *testing.T) {
	isolateConfig(t)

	dir := t.TempDir()

	out, err := run(t, NewShrimpCmd("test"), "migrate", "--db", filepath.Join(dir, "shrimp.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")
	assert.FileExists(t, filepath.Join(dir, "shrimp.db"))

	out, err = run(t, NewTideChartsCmd("test"), "migrate", "--db", filepath.Join(dir, "tide.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")
}

func TestMigrateMemoryDriverRejected(t *testing.T) {
	isolateConfig(t)

	_, err := run(t, NewShrimpCmd("test"), "migrate", "--driver", "memory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to migrate")
}

func TestPurgeOnEmptyStore(t *testing.T) {
	isolateConfig(t)

	out, err := run(t, NewShrimpCmd("test"), "purge", "--driver", "MEMORY", "--retention", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 0 expired links")
}

func TestPurgeRemovesLongExpiredLinks(t *testing.T) {
	isolateConfig(t)
	path := filepath.Join(t.TempDir(), "shrimp.db")

	log := zap.NewNop()
	db, err := database.NewConnection(&config.Database{Driver: database.DriverSQLite, Path: path}, "test", log)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, log, database.LinkModels()...))

	ctx := context.Background()
	store := sqlstore.New(db, log)
	now := clock.FromTime(time.Now().UTC())
	for slug, expires := range map[string]clock.Stamp{
		"gone123": now.Add(-48 * time.Hour),
		"fresh12": now.Add(-30 * time.Minute),
		"live123": now.Add(time.Hour),
	} {
		require.NoError(t, store.CreateLink(ctx, &domain.Link{
			Slug: slug, URL: "https://example.com/" + slug,
			CreatedAt: now.Add(-72 * time.Hour), UpdatedAt: now, ExpiresAt: expires.Ptr(),
		}))
	}
	require.NoError(t, database.Close(db, log))

	out, err := run(t, NewShrimpCmd("test"), "purge", "--db", path, "--retention", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 1 expired links")
}

// Package command holds the cobra command trees of the shrimp and
// tide-charts binaries.
package command

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shrimp/internal/config"
	"shrimp/internal/database"
	"shrimp/internal/repository"
	"shrimp/internal/repository/memory"
	"shrimp/internal/repository/sqlstore"
	"shrimp/pkg/logger"
)

// Store is everything the services need from storage.
type Store interface {
	repository.LinkStorage
	repository.StatsStorage
	repository.Pinger
}

// app is the per-invocation state shared by subcommands.
type app struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

// addStorageFlags registers flags that override the storage config.
func addStorageFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "", "path to the YAML config file (overrides CONFIG_PATH)")
	cmd.PersistentFlags().String("driver", "", "storage driver: sqlite, postgres, libsql or memory")
	cmd.PersistentFlags().String("db", "", "SQLite database file")
	cmd.PersistentFlags().String("dsn", "", "database DSN for postgres or libsql")
}

// newApp loads configuration, applies flag overrides and builds the logger.
// defaultDBPath is used when no SQLite path is configured.
func newApp(cmd *cobra.Command, defaultDBPath string) (*app, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := os.Setenv("CONFIG_PATH", path); err != nil {
			return nil, fmt.Errorf("failed to set CONFIG_PATH: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	if v, _ := cmd.Flags().GetString("driver"); v != "" {
		cfg.Database.Driver = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.Database.Path = v
	}
	if v, _ := cmd.Flags().GetString("dsn"); v != "" {
		cfg.Database.DSN = v
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = defaultDBPath
	}
	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)

	return &app{cfg: cfg, log: logger.New(cfg.Env)}, nil
}

// openStore connects to the configured storage. Tables for models are
// created first when migrate is set.
func (a *app) openStore(migrate bool, models ...interface{}) (Store, error) {
	if a.cfg.Database.Driver == database.DriverMemory {
		a.log.Warn("using in-memory storage, data is lost on exit")
		return memory.New(), nil
	}

	db, err := database.NewConnection(&a.cfg.Database, a.cfg.Env, a.log)
	if err != nil {
		return nil, err
	}
	a.db = db

	if migrate {
		if err := database.AutoMigrate(db, a.log, models...); err != nil {
			return nil, err
		}
	} else {
		a.log.Info("skipping database migrations (auto_migrate: false)")
	}

	return sqlstore.New(db, a.log), nil
}

// close releases the database and flushes the logger.
func (a *app) close() {
	if a.db != nil {
		if err := database.Close(a.db, a.log); err != nil {
			a.log.Error("failed to close database connection", zap.Error(err))
		}
	}
	// stderr/stdout sinks return EINVAL on sync; nothing to do about it
	_ = a.log.Sync()
}

// migrateCmd creates the tables for models and exits.
func migrateCmd(defaultDBPath string, models func() []interface{}) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, defaultDBPath)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.Database.Driver == database.DriverMemory {
				return fmt.Errorf("nothing to migrate for driver %q", database.DriverMemory)
			}
			if _, err := a.openStore(true, models()...); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

package database

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // registers the "libsql" database/sql driver
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // registers the pure Go "sqlite" database/sql driver

	"shrimp/internal/config"
)

// Supported storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverLibSQL   = "libsql"
	DriverMemory   = "memory"
)

// MemoryPath opens a private in-memory SQLite database.
const MemoryPath = ":memory:"

// SQLiteDSN builds a modernc DSN for path with foreign keys enforced. File
// databases also get WAL and a busy timeout.
func SQLiteDSN(path string) string {
	if path == "" || path == MemoryPath {
		return "file::memory:?_pragma=foreign_keys(1)"
	}

	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + q.Encode()
}

func dialector(cfg *config.Database) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverSQLite, "":
		return sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: SQLiteDSN(cfg.Path)}), nil
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("database dsn is required for driver %q", cfg.Driver)
		}
		return postgres.Open(cfg.DSN), nil
	case DriverLibSQL:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("database dsn is required for driver %q", cfg.Driver)
		}
		return sqlite.New(sqlite.Config{DriverName: "libsql", DSN: cfg.DSN}), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func gormLogger(env string) logger.Interface {
	switch env {
	case "local", "dev":
		return logger.Default.LogMode(logger.Info)
	case "test":
		return logger.Default.LogMode(logger.Silent)
	default:
		return logger.Default.LogMode(logger.Warn)
	}
}

// NewConnection opens the configured database with GORM.
func NewConnection(cfg *config.Database, env string, log *zap.Logger) (*gorm.DB, error) {
	dial, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger:         gormLogger(env),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
	}

	driver := strings.ToLower(cfg.Driver)
	switch driver {
	case DriverSQLite, "":
		// one writer at a time; an in-memory database also lives and dies
		// with its only connection
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	default:
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

		connMaxLifetime, err := time.ParseDuration(cfg.ConnMaxLifetime)
		if err != nil {
			log.Warn("failed to parse conn_max_lifetime, using default 1h", zap.Error(err))
			connMaxLifetime = time.Hour
		}
		sqlDB.SetConnMaxLifetime(connMaxLifetime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("successfully connected to database",
		zap.String("driver", driver),
		zap.String("path", cfg.Path),
	)

	return db, nil
}

// Close closes the database connection.
func Close(db *gorm.DB, log *zap.Logger) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB instance: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	log.Info("database connection closed")
	return nil
}

// Package sqlstore implements the repository interfaces on top of GORM. The
// same code runs against SQLite (modernc or libsql) and Postgres.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"shrimp/internal/domain"
)

// postgres unique_violation
const pgUniqueViolation = "23505"

// Store implements repository.LinkStorage and repository.StatsStorage.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// New creates a store over an open connection.
func New(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{
		db:  db,
		log: log.Named("sqlstore"),
	}
}

// Ping checks that the underlying connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// rowLock takes a row lock where the dialect has one. The SQLite dialector
// drops locking clauses; its single connection already serializes writers.
func rowLock(strength string) clause.Locking {
	return clause.Locking{Strength: strength}
}

func since(q *gorm.DB, column string, f domain.TimeFilter) *gorm.DB {
	if f.Since == nil {
		return q
	}
	return q.Where(clause.Gte{Column: clause.Column{Name: column}, Value: *f.Since})
}

// orderBy sorts by a quoted column with id as tie-breaker; "timestamp" is a keyword in Postgres.
func orderBy(column string, desc bool) clause.OrderBy {
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: column}, Desc: desc},
		{Column: clause.Column{Name: "id"}, Desc: desc},
	}}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
		return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")
	}

	// libsql reports errors as plain strings from the remote server
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

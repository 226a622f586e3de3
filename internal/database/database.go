// Package database opens the SQL connection shared by the admission lock and the
// conversation store. A postgres:// DSN selects pgx, anything else is a SQLite path.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect names the SQL flavor behind a DB.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

const busyTimeoutMs = 5000

// Postgres error codes.
const (
	pgUndefinedTable  = "42P01"
	pgUndefinedColumn = "42703"
)

// DB wraps *sql.DB with its dialect and DSN.
type DB struct {
	*sql.DB
	dialect Dialect
	dsn     string
}

// DialectFor reports which dialect a DSN selects.
func DialectFor(dsn string) Dialect {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// Open connects to dsn and verifies the connection.
// SQLite paths get their parent directory created and WAL enabled.
func Open(ctx context.Context, dsn string) (*DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("database dsn is empty")
	}
	dialect := DialectFor(dsn)

	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case Postgres:
		db, err = sql.Open("pgx", dsn)
	default:
		path := sqlitePath(dsn)
		if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
			if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", mkErr)
			}
		}
		db, err = sql.Open("sqlite3", withBusyTimeout(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if dialect == SQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}
	return &DB{DB: db, dialect: dialect, dsn: dsn}, nil
}

func sqlitePath(dsn string) string {
	return strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "sqlite3://")
}

// FilePath returns the database file for a SQLite DSN, or "" for Postgres and
// in-memory databases.
func FilePath(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if DialectFor(dsn) != SQLite {
		return ""
	}
	path := sqlitePath(dsn)
	if strings.HasPrefix(path, "file:") || strings.Contains(path, ":memory:") {
		return ""
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

func withBusyTimeout(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_busy_timeout=" + strconv.Itoa(busyTimeoutMs)
}

// Dialect returns the SQL flavor.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// Identity is "dialect:dsn". Two DBs with the same identity share a schema.
func (d *DB) Identity() string {
	return string(d.dialect) + ":" + d.dsn
}

// Rebind rewrites ? placeholders to $n for Postgres. Queries must not contain
// literal question marks.
func (d *DB) Rebind(query string) string {
	if d.dialect != Postgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsMissingTable reports whether err means a referenced table does not exist.
func IsMissingTable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUndefinedTable
	}
	return strings.Contains(err.Error(), "no such table")
}

// IsMissingColumn reports whether err means a referenced column does not exist.
func IsMissingColumn(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUndefinedColumn
	}
	msg := err.Error()
	return strings.Contains(msg, "no such column") || strings.Contains(msg, "has no column named")
}

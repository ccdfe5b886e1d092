// Package sqldb stores jobs and tasks in SQLite or PostgreSQL. Each record
// is kept as a JSON body next to the columns used for lookup and ordering.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/kidandcat/jobtracker/internal/tracker"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

type DB struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &tracker.ConnectionError{Err: err}
	}
	// One writer at a time; the transactions below rely on it.
	conn.SetMaxOpenConns(1)
	return open(ctx, conn, SQLite)
}

// OpenPostgres connects through the pgx database/sql driver.
func OpenPostgres(ctx context.Context, url string) (*DB, error) {
	if url == "" {
		return nil, &tracker.ConnectionError{Err: fmt.Errorf("empty postgres url")}
	}
	conn, err := sql.Open("pgx", url)
	if err != nil {
		return nil, &tracker.ConnectionError{Err: err}
	}
	conn.SetMaxOpenConns(10)
	return open(ctx, conn, Postgres)
}

func open(ctx context.Context, conn *sql.DB, dialect Dialect) (*DB, error) {
	d := &DB{db: conn, dialect: dialect}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, &tracker.ConnectionError{Err: err}
	}
	if err := d.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

func (d *DB) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			created_at BIGINT NOT NULL,
			body TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS jobs_created_at ON jobs (created_at)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			created_at BIGINT NOT NULL,
			body TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS tasks_created_at ON tasks (created_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func (d *DB) Dialect() Dialect { return d.dialect }

func (d *DB) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return &tracker.ConnectionError{Err: err}
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Jobs() *JobStore { return &JobStore{d: d} }

func (d *DB) Tasks() *TaskStore { return &TaskStore{d: d} }

// rebind rewrites ? placeholders as $1, $2... for PostgreSQL.
func (d *DB) rebind(query string) string {
	if d.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// forUpdate locks the selected row until the transaction ends. SQLite has
// no row locks; the single connection serializes writers instead.
func (d *DB) forUpdate() string {
	if d.dialect == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

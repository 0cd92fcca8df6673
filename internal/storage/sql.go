package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"             // registers "sqlite" (pure go)
)

// Dialect describes one SQL backend
type Dialect struct {
	Name   string // config driver name
	Driver string // database/sql driver name
	ddl    string
	get    string
	put    string
	file   bool // DSN is a file path whose directory must exist
}

var (
	DialectSQLite = Dialect{
		Name:   "sqlite",
		Driver: "sqlite",
		ddl:    `CREATE TABLE IF NOT EXISTS state (bucket TEXT PRIMARY KEY, payload BLOB NOT NULL)`,
		get:    `SELECT payload FROM state WHERE bucket = ?`,
		put:    `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
		file:   true,
	}
	DialectSQLite3 = Dialect{
		Name:   "sqlite3",
		Driver: "sqlite3",
		ddl:    DialectSQLite.ddl,
		get:    DialectSQLite.get,
		put:    DialectSQLite.put,
		file:   true,
	}
	DialectPostgres = Dialect{
		Name:   "postgres",
		Driver: "pgx",
		ddl:    `CREATE TABLE IF NOT EXISTS state (bucket TEXT PRIMARY KEY, payload BYTEA NOT NULL)`,
		get:    `SELECT payload FROM state WHERE bucket = $1`,
		put:    `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`,
	}
)

// SQL keeps snapshots in a single state table, one row per key
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL opens dsn with the dialect's driver and ensures the state table exists
func OpenSQL(ctx context.Context, d Dialect, dsn string) (*SQL, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s: dsn required", d.Name)
	}
	if d.file {
		if err := os.MkdirAll(filepath.Dir(dsn), 0750); err != nil {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name, err)
	}
	if d.file {
		// one writer avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, err)
	}
	if _, err := db.ExecContext(ctx, d.ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &SQL{db: db, dialect: d}, nil
}

func (s *SQL) Name() string { return s.dialect.Name }

func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.dialect.get, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return payload, nil
}

func (s *SQL) Put(ctx context.Context, key string, data []byte) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.put, key, data); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// DB exposes the underlying handle for tests
func (s *SQL) DB() *sql.DB { return s.db }

func (s *SQL) Close() error { return s.db.Close() }

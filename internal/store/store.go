// Package store persists exam state as JSON values under string keys.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by typed lookups when the requested record is absent.
var ErrNotFound = errors.New("not found")

// KV is a durable key/value store. Get reports ok=false for absent keys.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// SQLStore keeps key/value pairs in a single table of a SQL database.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// New opens (creating if needed) a SQLite database at dbPath.
func New(dbPath string) (*SQLStore, error) {
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	return open("sqlite", dsn)
}

// NewSQL opens a key/value store on the given database/sql driver.
// Supported drivers are "sqlite" and "mysql".
func NewSQL(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case "sqlite":
		return New(dsn)
	case "mysql":
		return open("mysql", dsn)
	default:
		return nil, fmt.Errorf("unsupported SQL driver %q", driver)
	}
}

func open(driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == "sqlite" {
		// One writer at a time; also keeps :memory: databases on a single connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &SQLStore{db: db, dialect: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv_entries (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	if s.dialect == "mysql" {
		schema = `
	CREATE TABLE IF NOT EXISTS kv_entries (
		name VARCHAR(255) NOT NULL PRIMARY KEY,
		value LONGTEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`
	}
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the value stored under key.
func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE name = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the value stored under key.
func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	query := `INSERT INTO kv_entries (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(name) DO UPDATE SET value = ?, updated_at = CURRENT_TIMESTAMP`
	if s.dialect == "mysql" {
		query = `INSERT INTO kv_entries (name, value) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE value = ?`
	}
	if _, err := s.db.ExecContext(ctx, query, key, value, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *SQLStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE name = ?`, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

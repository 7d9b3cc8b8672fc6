package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb/v2"
)

const createKVTable = `CREATE TABLE IF NOT EXISTS kv (
	key VARCHAR PRIMARY KEY,
	value VARCHAR NOT NULL
)`

// InitDuckDB opens the database at path, creating parent directories and the kv table.
func InitDuckDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(createKVTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}
	return db, nil
}

// DuckDBBackend stores the blob as one row of the kv table.
type DuckDBBackend struct {
	path string
	db   *sql.DB
}

func NewDuckDBBackend(path string) *DuckDBBackend {
	return &DuckDBBackend{path: path}
}

func (d *DuckDBBackend) Init(context.Context) error {
	if d.db != nil {
		return nil
	}
	db, err := InitDuckDB(d.path)
	if err != nil {
		return err
	}
	d.db = db
	return nil
}

func (d *DuckDBBackend) Read(ctx context.Context) ([]byte, error) {
	if d.db == nil {
		return nil, ErrClosed
	}
	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, StorageKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (d *DuckDBBackend) Write(ctx context.Context, blob []byte) error {
	if d.db == nil {
		return ErrClosed
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		StorageKey, string(blob))
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (d *DuckDBBackend) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

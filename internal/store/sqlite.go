package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"divtrack/internal/errors"
)

const tokenKey = "auth_token"

// SQLiteTokenStore keeps the token in a key-value table of a local SQLite
// database.
type SQLiteTokenStore struct {
	db *sql.DB
}

// NewSQLiteTokenStore opens (or creates) the database at dbPath.
func NewSQLiteTokenStore(dbPath string) (*SQLiteTokenStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteTokenStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the key-value table.
func (s *SQLiteTokenStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteTokenStore) Close() error {
	return s.db.Close()
}

// Save upserts the token.
func (s *SQLiteTokenStore) Save(ctx context.Context, token string) error {
	query := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, tokenKey, token, time.Now().UTC()); err != nil {
		return errors.Wrap(errors.ErrTokenStoreFailure, err.Error())
	}
	return nil
}

// Load reads the token row.
func (s *SQLiteTokenStore) Load(ctx context.Context) (string, bool, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, tokenKey).Scan(&token)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(errors.ErrTokenStoreFailure, err.Error())
	}
	return token, token != "", nil
}

// Clear deletes the token row.
func (s *SQLiteTokenStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, tokenKey); err != nil {
		return errors.Wrap(errors.ErrTokenStoreFailure, err.Error())
	}
	return nil
}

package samples

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS samples (
	suite      TEXT NOT NULL,
	operation  TEXT NOT NULL,
	sample     TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (suite, operation)
);`

// SQLiteStore хранит samples в таблице samples(suite, operation, sample).
// Используется для записи samples с живого сервера (record mode).
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Writer = (*SQLiteStore)(nil)

// OpenSQLite открывает (и при необходимости создает) базу.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open samples db: %w", err)
	}
	// sqlite не любит конкурентных писателей
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init samples schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Location() string {
	return s.path
}

func (s *SQLiteStore) Lookup(ctx context.Context, suite, operation string) (json.RawMessage, bool, error) {
	var sample string
	err := s.db.QueryRowContext(ctx,
		`SELECT sample FROM samples WHERE suite = ? AND operation = ?`, suite, operation,
	).Scan(&sample)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		if strings.Contains(err.Error(), "no such column") || strings.Contains(err.Error(), "no such table") {
			return nil, false, fmt.Errorf("%w: %v", ErrKeyNotFound, err)
		}
		return nil, false, fmt.Errorf("query sample: %w", err)
	}

	value, err := compactJSON([]byte(sample))
	if err != nil {
		return nil, false, fmt.Errorf("sample %s/%s: %w", suite, operation, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, suite, operation string, value json.RawMessage) error {
	raw, err := compactJSON(value)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO samples (suite, operation, sample, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(suite, operation) DO UPDATE SET sample = excluded.sample, updated_at = excluded.updated_at`,
		suite, operation, string(raw), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save sample %s/%s: %w", suite, operation, err)
	}
	return nil
}

// Close закрывает базу.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

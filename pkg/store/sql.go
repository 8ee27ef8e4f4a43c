// Copyright 2026 The cms Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/pkg/content"
	_ "modernc.org/sqlite"
)

// SQLStore keeps one row per key in a SQLite database.
type SQLStore struct {
	db     *sql.DB
	dbPath string
}

var _ Store = &SQLStore{}

// OpenSQLStore creates or opens the database at dbPath. ":memory:" opens a
// private in-memory database.
func OpenSQLStore(dbPath string) (*SQLStore, error) {
	const op errors.Op = "store.sql.open"

	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, errors.E(op, errors.StorageUnavailable, fmt.Errorf("failed to create directory: %w", err))
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.E(op, errors.StorageUnavailable, fmt.Errorf("failed to open database: %w", err))
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	s := &SQLStore{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, errors.E(op, errors.StorageUnavailable, fmt.Errorf("failed to initialize schema: %w", err))
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLStore) Path() string {
	return s.dbPath
}

func (s *SQLStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		key TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		revision TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents(updated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLStore) Get(ctx context.Context, key content.Key) (content.Document, content.Revision, error) {
	const op errors.Op = "store.sql.get"
	if err := key.Validate(); err != nil {
		return nil, "", errors.E(op, err)
	}
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE key = ?`, key.FileName()).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, "", notFound(op, key)
	}
	if err != nil {
		return nil, "", errors.E(op, errors.Key(key), errors.StorageUnavailable, err)
	}
	return decode(op, key, []byte(body))
}

func (s *SQLStore) Put(ctx context.Context, key content.Key, doc content.Document, expected content.Revision) (content.Revision, error) {
	const op errors.Op = "store.sql.put"
	if err := key.Validate(); err != nil {
		return "", errors.E(op, err)
	}
	data, rev, err := encode(op, key, doc)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.E(op, errors.Key(key), errors.StorageUnavailable, err)
	}
	defer tx.Rollback()

	if expected != "" {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT revision FROM documents WHERE key = ?`, key.FileName()).Scan(&current)
		if err != nil && err != sql.ErrNoRows {
			return "", errors.E(op, errors.Key(key), errors.StorageUnavailable, err)
		}
		if content.Revision(current) != expected {
			return "", conflict(op, key, expected, content.Revision(current))
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (key, body, revision, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET body = excluded.body, revision = excluded.revision, updated_at = excluded.updated_at`,
		key.FileName(), string(data), string(rev), time.Now().UTC())
	if err != nil {
		return "", errors.E(op, errors.Key(key), errors.StorageUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return "", errors.E(op, errors.Key(key), errors.StorageUnavailable, err)
	}
	return rev, nil
}

func (s *SQLStore) Create(ctx context.Context, key content.Key, doc content.Document) (content.Revision, error) {
	const op errors.Op = "store.sql.create"
	if err := key.Validate(); err != nil {
		return "", errors.E(op, err)
	}
	data, rev, err := encode(op, key, doc)
	if err != nil {
		return "", err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (key, body, revision, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING`,
		key.FileName(), string(data), string(rev), time.Now().UTC())
	if err != nil {
		return "", errors.E(op, errors.Key(key), errors.StorageUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", errors.E(op, errors.Key(key), errors.StorageUnavailable, err)
	}
	if n == 0 {
		return "", exists(op, key)
	}
	return rev, nil
}

func (s *SQLStore) Delete(ctx context.Context, key content.Key) error {
	const op errors.Op = "store.sql.delete"
	if err := key.Validate(); err != nil {
		return errors.E(op, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, key.FileName()); err != nil {
		return errors.E(op, errors.Key(key), errors.StorageUnavailable, err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context) ([]content.Key, error) {
	const op errors.Op = "store.sql.list"
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM documents ORDER BY key`)
	if err != nil {
		return nil, errors.E(op, errors.StorageUnavailable, err)
	}
	defer rows.Close()

	var keys []content.Key
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.E(op, errors.StorageUnavailable, err)
		}
		keys = append(keys, content.Key(k))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.E(op, errors.StorageUnavailable, err)
	}
	return keys, nil
}

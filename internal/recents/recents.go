/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package recents keeps the recently opened documents and the position they
// were last read at, in a small per-user SQLite database. The store is derived
// state: losing it costs nothing but convenience, so corruption is handled by
// discarding and starting over.
package recents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"lektra/internal/config"
	applog "lektra/internal/log"
	"lektra/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	DBFileName = "recents.sqlite"

	// schemaVersion tracks the local SQLite schema. Bump on breaking changes
	// and add a migration step.
	schemaVersion = 2

	// DefaultLimit is how many entries Trim keeps when the caller passes 0.
	DefaultLimit = 20
)

// Entry is one remembered document.
type Entry struct {
	Path     string
	Page     int
	Zoom     float64
	Fit      string
	OpenedAt time.Time
}

// Store wraps the recents database.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// DBPath returns the per-user database location, next to the config file.
func DBPath() (string, error) {
	cfgPath, err := config.ConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(cfgPath), DBFileName), nil
}

// Open opens (or creates) the recents database at path, enables WAL mode, and
// brings the schema up to date.
func Open(path string) (*Store, error) {
	l := applog.WithOperation(applog.WithComponent("recents"), "open").With(
		slog.String("path", path),
	)
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create state dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := openAndInit(ctx, dsn)
	if err != nil {
		// The store is disposable; rebuild from scratch on a broken file.
		l.Warn("store init failed, recreating", slog.Any("err", err))
		_ = os.Remove(path)
		db, err = openAndInit(ctx, dsn)
		if err != nil {
			l.Error("store recreate failed", slog.Any("err", err))
			return nil, err
		}
	}

	l.Info("recents store ready")
	return &Store{db: db, log: applog.WithComponent("recents")}, nil
}

func openAndInit(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func (s *Store) Close() error { return s.db.Close() }

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS recents (
			path       TEXT PRIMARY KEY,
			page       INTEGER NOT NULL DEFAULT 0,
			zoom       REAL    NOT NULL DEFAULT 1.0,
			fit        TEXT    NOT NULL DEFAULT '',
			opened_at  TEXT    NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// never downgrade
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		var stmts []string
		switch next {
		case 2:
			// recency ordering without a table scan
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_recents_opened ON recents(opened_at DESC);`,
			}
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// Touch inserts or refreshes a document, keeping its stored reading position
// when none is given.
func (s *Store) Touch(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("document path is required")
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recents(path, opened_at) VALUES(?, ?)
		ON CONFLICT(path) DO UPDATE SET opened_at=excluded.opened_at`,
		filepath.Clean(path), now)
	if err != nil {
		return fmt.Errorf("touch recent: %w", err)
	}
	return nil
}

// SavePosition records where a document was left off.
func (s *Store) SavePosition(ctx context.Context, path string, page int, zoom float64, fit string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recents(path, page, zoom, fit, opened_at) VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET page=excluded.page, zoom=excluded.zoom, fit=excluded.fit, opened_at=excluded.opened_at`,
		filepath.Clean(path), page, zoom, fit, now)
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

// Lookup returns the stored entry for a document.
func (s *Store) Lookup(ctx context.Context, path string) (Entry, bool, error) {
	var e Entry
	var openedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT path, page, zoom, fit, opened_at FROM recents WHERE path=?`,
		filepath.Clean(path)).Scan(&e.Path, &e.Page, &e.Zoom, &e.Fit, &openedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("lookup recent: %w", err)
	}
	e.OpenedAt, _ = time.Parse(time.RFC3339, openedAt)
	return e, true, nil
}

// List returns entries most recent first, at most limit (0 means DefaultLimit).
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, page, zoom, fit, opened_at FROM recents ORDER BY opened_at DESC, path LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recents: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var openedAt string
		if err := rows.Scan(&e.Path, &e.Page, &e.Zoom, &e.Fit, &openedAt); err != nil {
			return nil, fmt.Errorf("scan recent: %w", err)
		}
		e.OpenedAt, _ = time.Parse(time.RFC3339, openedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Remove drops one entry.
func (s *Store) Remove(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recents WHERE path=?`, filepath.Clean(path)); err != nil {
		return fmt.Errorf("remove recent: %w", err)
	}
	return nil
}

// Trim deletes everything beyond the newest limit entries (0 means
// DefaultLimit).
func (s *Store) Trim(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = DefaultLimit
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM recents WHERE path NOT IN (
			SELECT path FROM recents ORDER BY opened_at DESC, path LIMIT ?
		)`, limit)
	if err != nil {
		return fmt.Errorf("trim recents: %w", err)
	}
	return nil
}

// Clear empties the store.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recents`); err != nil {
		return fmt.Errorf("clear recents: %w", err)
	}
	return nil
}

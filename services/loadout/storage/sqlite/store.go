// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqlite provides a SQLite-backed loadout history.
//
// Payloads are stored as JSON text and decoded with history.Decode, so rows
// written by older tooling in the legacy [loadout, ok] shape are accepted.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AleutianAI/LoadoutForge/services/loadout"
	"github.com/AleutianAI/LoadoutForge/services/loadout/history"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists history rows in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the database at path and applies the embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite history path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite history: %w", err)
	}
	if err := migrate(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run history migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func migrate(db *sql.DB) error {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	slices.Sort(names)
	for _, name := range names {
		body, err := migrationsFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := db.Exec(string(body)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get implements history.Repository.
func (s *Store) Get(ctx context.Context, key string) (history.Entry, error) {
	var payload string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT payload FROM loadout_history WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return history.Invalid, nil
	}
	if err != nil {
		return history.Invalid, fmt.Errorf("sqlite history get %q: %w", key, err)
	}
	return history.Decode([]byte(payload)), nil
}

// Put implements history.Repository.
func (s *Store) Put(ctx context.Context, key string, l loadout.Loadout) error {
	payload, err := history.Encode(l)
	if err != nil {
		return fmt.Errorf("encode history %q: %w", key, err)
	}
	return s.PutRaw(ctx, key, payload)
}

// PutRaw stores an already-encoded payload as is.
func (s *Store) PutRaw(ctx context.Context, key string, payload []byte) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO loadout_history (key, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		key, string(payload), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlite history put %q: %w", key, err)
	}
	return nil
}

// All implements history.Repository.
func (s *Store) All(ctx context.Context) (map[string]history.Entry, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT key, payload FROM loadout_history`)
	if err != nil {
		return nil, fmt.Errorf("sqlite history scan: %w", err)
	}
	defer rows.Close()

	out := make(map[string]history.Entry)
	for rows.Next() {
		var key, payload string
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, fmt.Errorf("sqlite history row: %w", err)
		}
		out[key] = history.Decode([]byte(payload))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite history rows: %w", err)
	}
	return out, nil
}

var _ history.Repository = (*Store)(nil)

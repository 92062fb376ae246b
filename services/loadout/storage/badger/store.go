// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/AleutianAI/LoadoutForge/services/loadout"
	"github.com/AleutianAI/LoadoutForge/services/loadout/history"
)

const keyPrefix = "history/"

// record is the stored value. Loadout fields reuse their JSON names.
type record struct {
	Loadout  loadout.Loadout `json:"loadout"`
	StoredAt int64           `json:"stored_at"`
}

// Store is a history.Repository backed by BadgerDB.
//
// # Thread Safety
//
// Safe for concurrent use.
type Store struct {
	db     *badger.DB
	gc     *gcRunner
	logger *slog.Logger
}

// Open opens the store and starts the GC runner for persistent databases.
//
// # Inputs
//
//   - cfg: Database configuration. Path is required unless InMemory is set.
//
// # Outputs
//
//   - *Store: Call Close when done.
//   - error: Non-nil if the database cannot be opened.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := open(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, logger: logger.With(slog.String("component", "history_badger"))}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		gc, err := newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, s.logger)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create history GC runner: %w", err)
		}
		s.gc = gc
		gc.start()
	}
	return s, nil
}

// OpenInMemory opens a store that keeps nothing on disk.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Close stops the GC runner and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

// Get implements history.Repository.
func (s *Store) Get(ctx context.Context, key string) (history.Entry, error) {
	entry := history.Invalid
	err := withReadTxn(ctx, s.db, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			entry = s.decode(key, val)
			return nil
		})
	})
	if err != nil {
		return history.Invalid, fmt.Errorf("badger history get %q: %w", key, err)
	}
	return entry, nil
}

// Put implements history.Repository.
func (s *Store) Put(ctx context.Context, key string, l loadout.Loadout) error {
	val, err := encode(record{Loadout: l, StoredAt: time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("encode history %q: %w", key, err)
	}
	err = withTxn(ctx, s.db, func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), val)
	})
	if err != nil {
		return fmt.Errorf("badger history put %q: %w", key, err)
	}
	return nil
}

// All implements history.Repository.
func (s *Store) All(ctx context.Context) (map[string]history.Entry, error) {
	out := make(map[string]history.Entry)
	err := withReadTxn(ctx, s.db, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), keyPrefix)
			err := item.Value(func(val []byte) error {
				out[key] = s.decode(key, val)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger history scan: %w", err)
	}
	return out, nil
}

// decode turns a stored value into an Entry. Undecodable values are Invalid.
func (s *Store) decode(key string, val []byte) history.Entry {
	var rec record
	dec := msgpack.NewDecoder(bytes.NewReader(val))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&rec); err != nil {
		s.logger.Warn("discarding undecodable history value",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return history.Invalid
	}
	return history.Valid(rec.Loadout)
}

func encode(rec record) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ history.Repository = (*Store)(nil)

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps a BadgerDB instance behind small transaction
// helpers so callers never hold a raw *badger.DB. Used for service-local
// caches (upstream market data) — embedded, no network dependency, with
// native TTL expiry doing the invalidation work.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// DB is an opened BadgerDB instance plus the service logger.
//
// Thread Safety: Safe for concurrent use. BadgerDB transactions are
// per-goroutine; the helpers create one per call.
type DB struct {
	db     *dgbadger.DB
	logger *slog.Logger
}

// Open opens (creating if needed) a BadgerDB at dir. An empty dir opens
// an in-memory instance, used by tests and by deployments that do not
// configure a cache directory.
func Open(dir string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var opts dgbadger.Options
	if dir == "" {
		opts = dgbadger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = dgbadger.DefaultOptions(dir)
	}
	// Badger's default logger prints to stderr outside slog; silence it
	// and surface problems through returned errors instead.
	opts = opts.WithLogger(nil)

	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	return &DB{db: db, logger: logger}, nil
}

// Close releases the underlying BadgerDB. Call once at shutdown.
func (d *DB) Close() error {
	return d.db.Close()
}

// WithReadTxn runs fn inside a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}

// WithUpdateTxn runs fn inside a read-write transaction.
func (d *DB) WithUpdateTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(fn)
}

// SetWithTTL writes one key with an expiry. Expired keys behave exactly
// like absent keys on read.
func (d *DB) SetWithTTL(ctx context.Context, key, value []byte, ttl time.Duration) error {
	return d.WithUpdateTxn(ctx, func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry(key, value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Get reads one key. Returns (nil, false, nil) when the key is absent or
// expired.
func (d *DB) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	var value []byte
	found := false
	err := d.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get %q: %w", key, err)
		}
		value, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value for %q: %w", key, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

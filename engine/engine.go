/*
Business Source License 1.1

Parameters
Licensor:             Autobit Software Services Private Limited
Licensed Work:        ONQL (Database Engine)
The Licensed Work is (c) 2025 Autobit Software Services Private Limited.
Change Date:          2028-01-01
Change License:       GNU General Public License, version 3 or later

Terms
The Business Source License (this “License”) grants you the right to copy,
modify, and redistribute the Licensed Work, provided that you do not use the
Licensed Work for a Commercial Use.

“Commercial Use” means offering the Licensed Work to third parties as a
paid service, product, or part of a service or product for which you or a
third party receives payment or other consideration.

You may make use of the Licensed Work for internal use, research, evaluation,
education, and non-commercial purposes, and you may contribute modifications
back to the Licensor under the same License.

Before the Change Date, use of the Licensed Work in violation of this License
automatically terminates your rights.  After the Change Date, the Licensed Work
will be governed by the Change License.

The Licensor may make an Additional Use Grant allowing specific commercial
uses by prior written permission.

THE LICENSED WORK IS PROVIDED “AS IS” AND WITHOUT WARRANTY OF ANY KIND,
EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO WARRANTIES OF
MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE, OR NON-INFRINGEMENT.

This License does not grant trademark rights.  The ONQL name and logo are
trademarks of Autobit Software Services Private Limited and may not be used
without written permission.

For more details see: https://mariadb.com/bsl11/
*/

package engine

import (
	"time"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"minidbms/common"
	"minidbms/logger"
)

// Badger wraps a BadgerDB instance behind the key/value operations the
// record and catalog layers need.
type Badger struct {
	db   *badger.DB
	done chan struct{}
}

// OpenBadger opens a BadgerDB at path. An empty path opens an in-memory instance.
func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable default logger for cleaner output
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open badger at %q", path)
	}
	return &Badger{db: db, done: make(chan struct{})}, nil
}

// Close stops the GC loop and closes the underlying BadgerDB instance.
func (b *Badger) Close() error {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
	return b.db.Close()
}

// Set stores a key-value pair in its own read-write transaction.
func (b *Badger) Set(key, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Get returns a copy of the value stored under key, or common.ErrNotFound.
func (b *Badger) Get(key []byte) ([]byte, error) {
	var valCopy []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		valCopy, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, common.ErrNotFound
	}
	return valCopy, err
}

// Exists reports whether key is present.
func (b *Badger) Exists(key []byte) (bool, error) {
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Delete removes key and reports whether it was present. The lookup and the
// delete share one transaction.
func (b *Badger) Delete(key []byte) (bool, error) {
	removed := false
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		removed = true
		return txn.Delete(key)
	})
	return removed, err
}

// IteratePrefix calls fn for every key with the given prefix, in key order.
// Iteration stops if fn returns an error.
func (b *Badger) IteratePrefix(prefix []byte, fn func(k, v []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)
			err := item.Value(func(v []byte) error {
				return fn(k, v)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// DropPrefix removes every key under the given prefixes. Keys are deleted
// through write batches rather than badger's DropPrefix, which blocks all
// writers and rejects overlapping calls.
func (b *Badger) DropPrefix(prefixes ...[]byte) error {
	var g errgroup.Group
	for _, prefix := range prefixes {
		prefix := prefix
		g.Go(func() error {
			return b.dropPrefix(prefix)
		})
	}
	return g.Wait()
}

func (b *Badger) dropPrefix(prefix []byte) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := wb.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "collect keys under %q", prefix)
	}
	return errors.Wrapf(wb.Flush(), "delete keys under %q", prefix)
}

// RunGC runs value log garbage collection every interval until Close.
func (b *Badger) RunGC(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			for {
				if err := b.db.RunValueLogGC(0.7); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						logger.Warn("value log gc failed", "error", err)
					}
					break
				}
			}
		}
	}
}

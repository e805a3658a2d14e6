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

package catalog

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"minidbms/common"
	"minidbms/logger"
)

// Persister loads and saves the whole catalog document.
type Persister interface {
	Load(ctx context.Context) (*Catalog, error)
	Save(ctx context.Context, c *Catalog) error
}

// Store serializes access to the catalog. Writers get exclusive access and
// work on a clone that is validated and saved before it replaces the cached
// copy, so a failed command leaves both memory and disk untouched.
type Store struct {
	mu        sync.RWMutex
	persister Persister
	current   *Catalog
	tables    *lru.Cache[string, *Table]
}

// NewStore creates a Store. The catalog is loaded on first use.
func NewStore(p Persister, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[string, *Table](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{persister: p, tables: cache}, nil
}

// WithCatalog runs fn against the catalog. Read-only calls share the catalog
// with other readers and fn must not modify it. Otherwise fn receives a
// private copy that is persisted only if fn returns nil.
func (s *Store) WithCatalog(ctx context.Context, readOnly bool, fn func(c *Catalog) error) error {
	if readOnly {
		s.mu.RLock()
		if s.current != nil {
			defer s.mu.RUnlock()
			return fn(s.current)
		}
		s.mu.RUnlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	if readOnly {
		return fn(cur)
	}

	next := cur.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return common.Wrap(common.KindCatalogConflict, err, "catalog invariant violated")
	}
	if err := s.persister.Save(ctx, next); err != nil {
		logger.Error("catalog save failed", "error", err)
		return common.Wrap(common.KindCatalogUnavailable, err, "Failed to save catalog")
	}
	s.current = next
	s.tables.Purge()
	return nil
}

// Table resolves a table definition for record operations. The result is a
// private copy; lookups are cached until the next catalog write.
func (s *Store) Table(ctx context.Context, dbName, tableName string) (*Table, error) {
	key := dbName + "\x00" + tableName
	if t, ok := s.tables.Get(key); ok {
		return t.Clone(), nil
	}

	var found *Table
	err := s.WithCatalog(ctx, true, func(c *Catalog) error {
		db := c.Database(dbName)
		if db == nil {
			return common.Errorf(common.KindNotFound, "Database %s does not exist.", dbName)
		}
		t := db.Table(tableName)
		if t == nil {
			return common.Errorf(common.KindNotFound, "Table %s does not exist in database %s.", tableName, dbName)
		}
		found = t.Clone()
		// Cached while the catalog lock is held so a concurrent write cannot
		// purge before this entry lands.
		s.tables.Add(key, t.Clone())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *Store) loadLocked(ctx context.Context) (*Catalog, error) {
	if s.current != nil {
		return s.current, nil
	}
	c, err := s.persister.Load(ctx)
	if err != nil {
		logger.Error("catalog load failed", "error", err)
		return nil, common.Wrap(common.KindCatalogUnavailable, err, "Failed to load catalog")
	}
	if err := c.Validate(); err != nil {
		logger.Error("catalog document invalid", "error", err)
		return nil, common.Wrap(common.KindCatalogUnavailable, err, "Failed to load catalog")
	}
	s.current = c
	return c, nil
}

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

package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrCollectionNotFound is returned by DropCollection when the backend holds
// no collection of that name.
var ErrCollectionNotFound = errors.New("collection not found")

// RecordStore is the record storage backend: one namespace per database and
// one collection per table, holding string values under string keys.
type RecordStore interface {
	// CreateNamespace is idempotent.
	CreateNamespace(ctx context.Context, ns string) error
	DropNamespace(ctx context.Context, ns string) error
	DropCollection(ctx context.Context, ns, coll string) error

	Put(ctx context.Context, ns, coll, key, value string) error
	Get(ctx context.Context, ns, coll, key string) (string, bool, error)
	Exists(ctx context.Context, ns, coll, key string) (bool, error)
	// Delete returns the number of records removed.
	Delete(ctx context.Context, ns, coll, key string) (int, error)
	// Scan visits every record of a collection in key order.
	Scan(ctx context.Context, ns, coll string, fn func(key, value string) error) error

	Close() error
}

// Engine interface abstracts the underlying key-value storage.
// This allows swapping the storage backend (BadgerDB or memory) without changing KVStore.
type Engine interface {
	Set(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Exists(key []byte) (bool, error)
	Delete(key []byte) (bool, error)
	IteratePrefix(prefix []byte, fn func(k, v []byte) error) error
	// DropPrefix must not block writes to keys outside the prefixes.
	DropPrefix(prefixes ...[]byte) error
	Close() error
}

// Key generation helpers. Names never contain ':' because the interpreter
// only accepts identifiers, so the prefixes below cannot collide.

// NamespaceKey marks a namespace as created.
// Format: NS:<ns>
func NamespaceKey(ns string) []byte {
	return []byte(fmt.Sprintf("NS:%s", ns))
}

// CollectionKey registers a collection inside a namespace.
// Format: COLL:<ns>:<coll>
func CollectionKey(ns, coll string) []byte {
	return []byte(fmt.Sprintf("COLL:%s:%s", ns, coll))
}

// CollectionPrefix covers every collection key of a namespace.
func CollectionPrefix(ns string) []byte {
	return []byte(fmt.Sprintf("COLL:%s:", ns))
}

// DataKey generates the key for storing a record.
// Format: DATA:<ns>:<coll>:<key>
func DataKey(ns, coll, key string) []byte {
	return []byte(fmt.Sprintf("DATA:%s:%s:%s", ns, coll, key))
}

// DataPrefix covers every record of a collection.
func DataPrefix(ns, coll string) []byte {
	return []byte(fmt.Sprintf("DATA:%s:%s:", ns, coll))
}

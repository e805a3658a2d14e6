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
	"bytes"
	"context"

	"github.com/pkg/errors"

	"minidbms/common"
)

// KVStore lays namespaces, collections and records out as prefixed keys in a
// single key/value Engine.
type KVStore struct {
	engine Engine
}

func NewKVStore(eng Engine) *KVStore {
	return &KVStore{engine: eng}
}

func (s *KVStore) CreateNamespace(ctx context.Context, ns string) error {
	return errors.Wrapf(s.engine.Set(NamespaceKey(ns), []byte{1}), "create namespace %s", ns)
}

// DropNamespace drops the records of every collection registered under ns,
// then the collection markers and the namespace marker.
func (s *KVStore) DropNamespace(ctx context.Context, ns string) error {
	colls, err := s.collections(ns)
	if err != nil {
		return err
	}

	prefixes := make([][]byte, 0, len(colls))
	for _, coll := range colls {
		prefixes = append(prefixes, DataPrefix(ns, coll))
	}
	if err := s.engine.DropPrefix(prefixes...); err != nil {
		return errors.Wrapf(err, "drop namespace %s", ns)
	}
	if err := s.engine.DropPrefix(CollectionPrefix(ns)); err != nil {
		return errors.Wrapf(err, "drop namespace %s", ns)
	}
	_, err = s.engine.Delete(NamespaceKey(ns))
	return errors.Wrapf(err, "drop namespace %s", ns)
}

func (s *KVStore) DropCollection(ctx context.Context, ns, coll string) error {
	present, err := s.engine.Delete(CollectionKey(ns, coll))
	if err != nil {
		return errors.Wrapf(err, "drop collection %s.%s", ns, coll)
	}
	if err := s.engine.DropPrefix(DataPrefix(ns, coll)); err != nil {
		return errors.Wrapf(err, "drop collection %s.%s", ns, coll)
	}
	if !present {
		return ErrCollectionNotFound
	}
	return nil
}

// Put writes a record and registers its collection.
func (s *KVStore) Put(ctx context.Context, ns, coll, key, value string) error {
	if err := s.engine.Set(CollectionKey(ns, coll), []byte{1}); err != nil {
		return errors.Wrapf(err, "register collection %s.%s", ns, coll)
	}
	return errors.Wrapf(s.engine.Set(DataKey(ns, coll, key), []byte(value)), "put %s.%s[%s]", ns, coll, key)
}

func (s *KVStore) Get(ctx context.Context, ns, coll, key string) (string, bool, error) {
	val, err := s.engine.Get(DataKey(ns, coll, key))
	if errors.Is(err, common.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "get %s.%s[%s]", ns, coll, key)
	}
	return string(val), true, nil
}

func (s *KVStore) Exists(ctx context.Context, ns, coll, key string) (bool, error) {
	ok, err := s.engine.Exists(DataKey(ns, coll, key))
	return ok, errors.Wrapf(err, "exists %s.%s[%s]", ns, coll, key)
}

func (s *KVStore) Delete(ctx context.Context, ns, coll, key string) (int, error) {
	removed, err := s.engine.Delete(DataKey(ns, coll, key))
	if err != nil {
		return 0, errors.Wrapf(err, "delete %s.%s[%s]", ns, coll, key)
	}
	if removed {
		return 1, nil
	}
	return 0, nil
}

func (s *KVStore) Scan(ctx context.Context, ns, coll string, fn func(key, value string) error) error {
	prefix := DataPrefix(ns, coll)
	return s.engine.IteratePrefix(prefix, func(k, v []byte) error {
		return fn(string(bytes.TrimPrefix(k, prefix)), string(v))
	})
}

func (s *KVStore) Close() error {
	return s.engine.Close()
}

func (s *KVStore) collections(ns string) ([]string, error) {
	prefix := CollectionPrefix(ns)
	var colls []string
	err := s.engine.IteratePrefix(prefix, func(k, v []byte) error {
		colls = append(colls, string(bytes.TrimPrefix(k, prefix)))
		return nil
	})
	return colls, errors.Wrapf(err, "list collections of %s", ns)
}

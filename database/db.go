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

package database

import (
	"context"
	"fmt"
	"strings"

	"minidbms/catalog"
	"minidbms/config"
	"minidbms/engine"
	"minidbms/executor"
	"minidbms/interpreter"
	"minidbms/logger"
	"minidbms/mirror"
	"minidbms/storage"
)

// DB represents the high-level database instance.
// It wires the record store, the catalog store, the executor and the
// interpreter together according to the configuration.
type DB struct {
	records storage.RecordStore
	interp  *interpreter.Interpreter
}

// New creates and initializes a new DB instance.
func New(ctx context.Context, cfg *config.Config) (*DB, error) {
	records, kv, err := openRecords(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var persister catalog.Persister
	switch strings.ToLower(cfg.CatalogStore) {
	case "engine":
		if kv == nil {
			records.Close()
			return nil, fmt.Errorf("CATALOG_STORE=engine needs a key/value storage backend, got %s", cfg.StorageBackend)
		}
		persister = catalog.NewEnginePersister(kv)
	case "file", "":
		persister = catalog.NewFilePersister(cfg.CatalogPath)
	default:
		records.Close()
		return nil, fmt.Errorf("unknown catalog store %q", cfg.CatalogStore)
	}

	store, err := catalog.NewStore(persister, cfg.SchemaCacheSize)
	if err != nil {
		records.Close()
		return nil, err
	}

	exec := executor.New(store, records, mirror.New(cfg.ExportDir, records))
	logger.Info("database initialized", "backend", cfg.StorageBackend, "catalog", cfg.CatalogStore)
	return &DB{
		records: records,
		interp:  interpreter.New(exec),
	}, nil
}

// openRecords builds the record store. For key/value backends the engine is
// returned as well so the catalog can live next to the records.
func openRecords(ctx context.Context, cfg *config.Config) (storage.RecordStore, catalog.KV, error) {
	switch strings.ToLower(cfg.StorageBackend) {
	case "badger", "":
		eng, err := engine.OpenBadger(cfg.DataPath)
		if err != nil {
			return nil, nil, err
		}
		if cfg.GCInterval > 0 {
			go eng.RunGC(cfg.GCInterval)
		}
		return storage.NewKVStore(eng), eng, nil
	case "memory":
		eng := engine.NewMemory()
		return storage.NewKVStore(eng), eng, nil
	case "postgres":
		pg, err := storage.OpenPGStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// Interpreter returns the command interpreter sessions execute against.
func (db *DB) Interpreter() *interpreter.Interpreter {
	return db.interp
}

// Close shuts down the database and the underlying storage.
func (db *DB) Close() error {
	return db.records.Close()
}

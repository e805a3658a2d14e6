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
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const undefinedTable = "42P01"

// PGStore maps namespaces to Postgres schemas and collections to two-column
// tables (key text primary key, value text).
type PGStore struct {
	pool *pgxpool.Pool
}

// OpenPGStore connects a pool to dsn and verifies the connection.
func OpenPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	return &PGStore{pool: pool}, nil
}

func table(ns, coll string) string {
	return pgx.Identifier{ns, coll}.Sanitize()
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedTable
}

func (s *PGStore) CreateNamespace(ctx context.Context, ns string) error {
	_, err := s.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{ns}.Sanitize())
	return errors.Wrapf(err, "create schema %s", ns)
}

func (s *PGStore) DropNamespace(ctx context.Context, ns string) error {
	_, err := s.pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+pgx.Identifier{ns}.Sanitize()+" CASCADE")
	return errors.Wrapf(err, "drop schema %s", ns)
}

func (s *PGStore) DropCollection(ctx context.Context, ns, coll string) error {
	var exists bool
	err := s.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", table(ns, coll)).Scan(&exists)
	if err != nil {
		return errors.Wrapf(err, "lookup table %s.%s", ns, coll)
	}
	if !exists {
		return ErrCollectionNotFound
	}
	_, err = s.pool.Exec(ctx, "DROP TABLE IF EXISTS "+table(ns, coll))
	return errors.Wrapf(err, "drop table %s.%s", ns, coll)
}

// Put upserts the record, creating the collection table on first use.
func (s *PGStore) Put(ctx context.Context, ns, coll, key, value string) error {
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (key text PRIMARY KEY, value text NOT NULL)", table(ns, coll))
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return errors.Wrapf(err, "create table %s.%s", ns, coll)
	}
	q := fmt.Sprintf("INSERT INTO %s (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value", table(ns, coll))
	_, err := s.pool.Exec(ctx, q, key, value)
	return errors.Wrapf(err, "put %s.%s[%s]", ns, coll, key)
}

func (s *PGStore) Get(ctx context.Context, ns, coll, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT value FROM %s WHERE key = $1", table(ns, coll)), key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) || isUndefinedTable(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "get %s.%s[%s]", ns, coll, key)
	}
	return value, true, nil
}

func (s *PGStore) Exists(ctx context.Context, ns, coll, key string) (bool, error) {
	_, ok, err := s.Get(ctx, ns, coll, key)
	return ok, err
}

func (s *PGStore) Delete(ctx context.Context, ns, coll, key string) (int, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE key = $1", table(ns, coll)), key)
	if isUndefinedTable(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "delete %s.%s[%s]", ns, coll, key)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PGStore) Scan(ctx context.Context, ns, coll string, fn func(key, value string) error) error {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT key, value FROM %s ORDER BY key", table(ns, coll)))
	if isUndefinedTable(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "scan %s.%s", ns, coll)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil && !isUndefinedTable(err) {
		return errors.Wrapf(err, "scan %s.%s", ns, coll)
	}
	return nil
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

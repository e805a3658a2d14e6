// Package mirror keeps a human-readable JSON copy of each table's records
// next to the database. It is a convenience for inspection; the record store
// stays the source of truth.
package mirror

import (
	"context"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"

	"minidbms/storage"
)

// Record is one mirrored entry.
type Record struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Mirror writes <dir>/<database>/<table>.json. A nil Mirror or an empty dir
// disables every operation.
type Mirror struct {
	dir   string
	store storage.RecordStore
}

func New(dir string, store storage.RecordStore) *Mirror {
	return &Mirror{dir: dir, store: store}
}

func (m *Mirror) Enabled() bool {
	return m != nil && m.dir != ""
}

// Path returns the mirror file of a table.
func (m *Mirror) Path(db, table string) string {
	return filepath.Join(m.dir, db, table+".json")
}

// WriteTable rewrites the mirror file of a table from the record store.
func (m *Mirror) WriteTable(ctx context.Context, db, table string) error {
	if !m.Enabled() {
		return nil
	}
	records := []Record{}
	err := m.store.Scan(ctx, db, table, func(key, value string) error {
		records = append(records, Record{Key: key, Value: value})
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "mirror %s.%s", db, table)
	}

	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encode mirror")
	}
	path := m.Path(db, table)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create mirror dir")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "write mirror %s", path)
}

// RemoveTable deletes the mirror file of a table, if any.
func (m *Mirror) RemoveTable(db, table string) error {
	if !m.Enabled() {
		return nil
	}
	err := os.Remove(m.Path(db, table))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// RemoveDatabase deletes every mirror file of a database.
func (m *Mirror) RemoveDatabase(db string) error {
	if !m.Enabled() {
		return nil
	}
	return os.RemoveAll(filepath.Join(m.dir, db))
}

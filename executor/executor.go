// Package executor applies DDL and DML commands to the catalog and the record
// store. Every operation returns a Result; validation failures never escape as
// Go errors.
package executor

import (
	"fmt"

	"minidbms/catalog"
	"minidbms/common"
	"minidbms/mirror"
	"minidbms/storage"
)

// Result is the outcome of one command: a status kind and a single
// human-readable message.
type Result struct {
	Kind    common.Kind
	Message string
}

func (r Result) OK() bool { return r.Kind == common.KindOK }

func (r Result) String() string {
	return r.Kind.String() + ": " + r.Message
}

func ok(format string, args ...any) Result {
	return Result{Kind: common.KindOK, Message: fmt.Sprintf(format, args...)}
}

// fail renders err. Unclassified errors come from the backend.
func fail(err error) Result {
	kind := common.KindOf(err)
	if kind == common.KindInternal {
		kind = common.KindStorage
	}
	return Result{Kind: kind, Message: err.Error()}
}

const noDatabaseSelected = "No database selected. Use 'USE <database_name>' to select a database."

// Executor owns the catalog store, the record store, and the per-table locks
// that make insert's duplicate check and write one step.
type Executor struct {
	catalog *catalog.Store
	records storage.RecordStore
	mirror  *mirror.Mirror
	locks   common.KeyMutex
}

func New(cat *catalog.Store, records storage.RecordStore, m *mirror.Mirror) *Executor {
	return &Executor{catalog: cat, records: records, mirror: m}
}

// Catalog exposes the catalog store to callers that only read it.
func (e *Executor) Catalog() *catalog.Store {
	return e.catalog
}

func lockKey(db, table string) string {
	return db + "\x00" + table
}

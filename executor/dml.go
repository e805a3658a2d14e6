package executor

import (
	"context"

	"minidbms/codec"
	"minidbms/common"
	"minidbms/logger"
)

// Insert stores one record. The table lock is held from schema resolution to
// the write, so two inserts of the same key cannot both pass the duplicate
// check and a concurrent DROP TABLE cannot slip in between.
func (e *Executor) Insert(ctx context.Context, dbName, tableName string, fields []codec.Field) Result {
	if dbName == "" {
		return Result{Kind: common.KindNoDatabaseSelected, Message: noDatabaseSelected}
	}

	unlock := e.locks.Lock(lockKey(dbName, tableName))
	defer unlock()

	table, err := e.catalog.Table(ctx, dbName, tableName)
	if err != nil {
		return fail(err)
	}
	key, value, err := codec.Encode(table, fields)
	if err != nil {
		return fail(err)
	}

	exists, err := e.records.Exists(ctx, dbName, tableName, key)
	if err != nil {
		return fail(common.Wrap(common.KindStorage, err, "Error inserting record"))
	}
	if exists {
		return Result{Kind: common.KindDuplicateKey, Message: "Error: Record with this primary key already exists."}
	}
	if err := e.records.Put(ctx, dbName, tableName, key, value); err != nil {
		return fail(common.Wrap(common.KindStorage, err, "Error inserting record"))
	}

	e.refreshMirror(ctx, dbName, tableName)
	return ok("Record inserted successfully into table %s.", tableName)
}

// Delete removes the record stored under an encoded composite key.
func (e *Executor) Delete(ctx context.Context, dbName, tableName, key string) Result {
	if dbName == "" {
		return Result{Kind: common.KindNoDatabaseSelected, Message: noDatabaseSelected}
	}

	unlock := e.locks.Lock(lockKey(dbName, tableName))
	defer unlock()

	if _, err := e.catalog.Table(ctx, dbName, tableName); err != nil {
		return fail(err)
	}
	removed, err := e.records.Delete(ctx, dbName, tableName, key)
	if err != nil {
		return fail(common.Wrap(common.KindStorage, err, "Error deleting record"))
	}
	if removed == 0 {
		return Result{Kind: common.KindRecordNotFound, Message: "No record found with the given primary key."}
	}

	e.refreshMirror(ctx, dbName, tableName)
	return ok("Record with key %s deleted successfully from table %s.", key, tableName)
}

// Get looks a record up by its encoded composite key and renders it.
func (e *Executor) Get(ctx context.Context, dbName, tableName, key string) Result {
	if dbName == "" {
		return Result{Kind: common.KindNoDatabaseSelected, Message: noDatabaseSelected}
	}
	table, err := e.catalog.Table(ctx, dbName, tableName)
	if err != nil {
		return fail(err)
	}
	value, found, err := e.records.Get(ctx, dbName, tableName, key)
	if err != nil {
		return fail(common.Wrap(common.KindStorage, err, "Error reading record"))
	}
	if !found {
		return Result{Kind: common.KindRecordNotFound, Message: "No record found with the given primary key."}
	}
	return ok("Record in %s: %s", tableName, codec.Format(codec.Decode(table, key, value)))
}

// refreshMirror runs with the table lock held so mirror files are written in
// the same order as the records.
func (e *Executor) refreshMirror(ctx context.Context, dbName, tableName string) {
	if err := e.mirror.WriteTable(ctx, dbName, tableName); err != nil {
		logger.Warn("mirror update failed", "db", dbName, "table", tableName, "error", err)
	}
}

package executor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"minidbms/catalog"
	"minidbms/common"
	"minidbms/logger"
	"minidbms/storage"
)

// TableDef is a parsed CREATE TABLE.
type TableDef struct {
	Name        string
	Columns     []catalog.Column
	PrimaryKey  []string
	ForeignKeys []catalog.ForeignKey
}

// IndexDef is a parsed CREATE INDEX.
type IndexDef struct {
	Name   string
	Table  string
	Column string
	Unique bool
	Kind   catalog.IndexKind
}

const indexKeyLength = 30

func (e *Executor) CreateDatabase(ctx context.Context, name string) Result {
	err := e.catalog.WithCatalog(ctx, false, func(c *catalog.Catalog) error {
		if c.Database(name) != nil {
			return common.Errorf(common.KindAlreadyExists, "Database %s already exists.", name)
		}
		c.AddDatabase(name)
		return nil
	})
	if err != nil {
		return fail(err)
	}

	if err := e.records.CreateNamespace(ctx, name); err != nil {
		logger.Error("catalog and storage diverged", "op", "create database", "db", name, "error", err)
		return Result{
			Kind:    common.KindPartialFailure,
			Message: fmt.Sprintf("Database %s added to catalog but its storage namespace could not be created: %v", name, err),
		}
	}
	return ok("Database %s created successfully.", name)
}

// errTablesChanged restarts DropDatabase when a table was created or dropped
// between listing the tables and locking them.
var errTablesChanged = errors.New("table set changed")

// DropDatabase locks every table of the database, removes the database from
// the catalog, then drops its storage.
func (e *Executor) DropDatabase(ctx context.Context, name string) Result {
	for {
		var tables []string
		err := e.catalog.WithCatalog(ctx, true, func(c *catalog.Catalog) error {
			db := c.Database(name)
			if db == nil {
				return common.Errorf(common.KindNotFound, "Database %s does not exist in catalog.", name)
			}
			tables = db.TableNames()
			return nil
		})
		if err != nil {
			return fail(err)
		}

		sort.Strings(tables)
		unlock := e.lockTables(name, tables)
		err = e.catalog.WithCatalog(ctx, false, func(c *catalog.Catalog) error {
			db := c.Database(name)
			if db == nil {
				return common.Errorf(common.KindNotFound, "Database %s does not exist in catalog.", name)
			}
			current := db.TableNames()
			sort.Strings(current)
			if !slices.Equal(current, tables) {
				return errTablesChanged
			}
			c.RemoveDatabase(name)
			return nil
		})
		if errors.Is(err, errTablesChanged) {
			unlock()
			continue
		}
		if err != nil {
			unlock()
			return fail(err)
		}

		res := e.dropNamespace(ctx, name)
		unlock()
		return res
	}
}

func (e *Executor) dropNamespace(ctx context.Context, name string) Result {
	if err := e.records.DropNamespace(ctx, name); err != nil {
		logger.Error("catalog and storage diverged", "op", "drop database", "db", name, "error", err)
		return Result{
			Kind:    common.KindPartialFailure,
			Message: fmt.Sprintf("Database %s removed from catalog but dropping its storage failed: %v", name, err),
		}
	}
	if err := e.mirror.RemoveDatabase(name); err != nil {
		logger.Warn("mirror cleanup failed", "db", name, "error", err)
	}
	return ok("Database %s dropped successfully.", name)
}

// lockTables takes the record locks of tables in the given order and returns
// a function releasing all of them.
func (e *Executor) lockTables(db string, tables []string) func() {
	unlocks := make([]func(), 0, len(tables))
	for _, t := range tables {
		unlocks = append(unlocks, e.locks.Lock(lockKey(db, t)))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

func (e *Executor) ListDatabases(ctx context.Context) Result {
	var names []string
	err := e.catalog.WithCatalog(ctx, true, func(c *catalog.Catalog) error {
		names = c.DatabaseNames()
		return nil
	})
	if err != nil {
		return fail(err)
	}
	if len(names) == 0 {
		return ok("No databases found.")
	}
	return ok("Databases: %s", strings.Join(names, ", "))
}

// DatabaseExists is used by USE to validate the target.
func (e *Executor) DatabaseExists(ctx context.Context, name string) Result {
	err := e.catalog.WithCatalog(ctx, true, func(c *catalog.Catalog) error {
		if c.Database(name) == nil {
			return common.Errorf(common.KindNotFound, "Database %s does not exist.", name)
		}
		return nil
	})
	if err != nil {
		return fail(err)
	}
	return ok("Switched to database %s.", name)
}

func (e *Executor) ListTables(ctx context.Context, dbName string) Result {
	if dbName == "" {
		return Result{Kind: common.KindNoDatabaseSelected, Message: noDatabaseSelected}
	}
	var names []string
	err := e.catalog.WithCatalog(ctx, true, func(c *catalog.Catalog) error {
		db := c.Database(dbName)
		if db == nil {
			return common.Errorf(common.KindNotFound, "Database %s does not exist.", dbName)
		}
		names = db.TableNames()
		return nil
	})
	if err != nil {
		return fail(err)
	}
	if len(names) == 0 {
		return ok("No tables found in %s.", dbName)
	}
	return ok("Tables in %s: %s", dbName, strings.Join(names, ", "))
}

func (e *Executor) CreateTable(ctx context.Context, dbName string, def TableDef) Result {
	if dbName == "" {
		return Result{Kind: common.KindNoDatabaseSelected, Message: noDatabaseSelected}
	}
	err := e.catalog.WithCatalog(ctx, false, func(c *catalog.Catalog) error {
		db := c.Database(dbName)
		if db == nil {
			return common.Errorf(common.KindNotFound, "Database %s does not exist.", dbName)
		}
		if db.Table(def.Name) != nil {
			return common.Errorf(common.KindAlreadyExists, "Table %s already exists in database %s.", def.Name, dbName)
		}

		for _, fk := range def.ForeignKeys {
			ref := db.Table(fk.RefTable)
			if ref == nil {
				return common.Errorf(common.KindUnknownReference, "Referenced table %s does not exist for foreign key.", fk.RefTable)
			}
			if !ref.IsPrimaryKey(fk.RefColumn) {
				return common.Errorf(common.KindInvalidForeignKey, "Referenced column %s is not a primary key in table %s.", fk.RefColumn, fk.RefTable)
			}
		}

		table := &catalog.Table{
			Name:        def.Name,
			FileName:    def.Name + ".bin",
			Columns:     append([]catalog.Column(nil), def.Columns...),
			PrimaryKey:  append([]string(nil), def.PrimaryKey...),
			ForeignKeys: append([]catalog.ForeignKey(nil), def.ForeignKeys...),
		}

		if len(table.PrimaryKey) == 0 {
			return common.Errorf(common.KindInvalidPrimaryKey, "Error: Table %s has no primary key.", def.Name)
		}
		keyCols := make(map[string]bool, len(table.PrimaryKey))
		for _, pk := range table.PrimaryKey {
			if table.Column(pk) == nil {
				return common.Errorf(common.KindInvalidPrimaryKey, "Error: Primary key '%s' does not exist in column definitions.", pk)
			}
			if keyCols[pk] {
				return common.Errorf(common.KindInvalidPrimaryKey, "Error: Column '%s' appears more than once in the primary key.", pk)
			}
			keyCols[pk] = true
		}
		for _, fk := range table.ForeignKeys {
			if table.Column(fk.Column) == nil {
				return common.Errorf(common.KindInvalidForeignKey, "Can't assign nonexistent field '%s' as foreign key.", fk.Column)
			}
		}

		seen := make(map[string]bool, len(table.Columns))
		for i := range table.Columns {
			col := &table.Columns[i]
			if seen[col.Name] {
				return common.Errorf(common.KindInvalidCommand, "Error: Column '%s' declared more than once.", col.Name)
			}
			seen[col.Name] = true
			if !col.Type.Sized() {
				col.Length = 0
			}
			if table.IsPrimaryKey(col.Name) {
				col.Nullable = false
			}
		}
		table.RowLength = table.ComputeRowLength()

		db.Tables = append(db.Tables, table)
		return nil
	})
	if err != nil {
		return fail(err)
	}
	return ok("Table %s created successfully in database %s.", def.Name, dbName)
}

// DropTable refuses while another table's foreign key points at one of this
// table's primary-key columns.
func (e *Executor) DropTable(ctx context.Context, dbName, name string) Result {
	if dbName == "" {
		return Result{Kind: common.KindNoDatabaseSelected, Message: noDatabaseSelected}
	}

	// Held from the catalog change through the storage drop; a table
	// recreated under this name waits for both.
	unlock := e.locks.Lock(lockKey(dbName, name))
	defer unlock()

	err := e.catalog.WithCatalog(ctx, false, func(c *catalog.Catalog) error {
		db := c.Database(dbName)
		if db == nil {
			return common.Errorf(common.KindNotFound, "Database '%s' does not exist.", dbName)
		}
		table := db.Table(name)
		if table == nil {
			return common.Errorf(common.KindNotFound, "Table '%s' does not exist in database '%s'.", name, dbName)
		}
		if other, col := db.ReferencingTable(table); other != nil {
			return common.Errorf(common.KindReferentialIntegrity,
				"Cannot drop table '%s'; it is referenced by a foreign key in table '%s', column '%s'.", name, other.Name, col)
		}
		db.RemoveTable(name)
		return nil
	})
	if err != nil {
		return fail(err)
	}

	err = e.records.DropCollection(ctx, dbName, name)
	if errors.Is(err, storage.ErrCollectionNotFound) {
		return ok("Table '%s' dropped successfully from database '%s' (no stored records were found for it).", name, dbName)
	}
	if err != nil {
		logger.Error("catalog and storage diverged", "op", "drop table", "db", dbName, "table", name, "error", err)
		return Result{
			Kind:    common.KindPartialFailure,
			Message: fmt.Sprintf("Table '%s' removed from catalog but dropping its records failed: %v", name, err),
		}
	}
	if err := e.mirror.RemoveTable(dbName, name); err != nil {
		logger.Warn("mirror cleanup failed", "db", dbName, "table", name, "error", err)
	}
	return ok("Table '%s' dropped successfully from database '%s'.", name, dbName)
}

// CreateIndex registers index metadata only. No physical index is built and
// lookups never consult it.
func (e *Executor) CreateIndex(ctx context.Context, dbName string, def IndexDef) Result {
	if dbName == "" {
		return Result{Kind: common.KindNoDatabaseSelected, Message: noDatabaseSelected}
	}
	if def.Kind == "" {
		def.Kind = catalog.IndexBTree
	}
	err := e.catalog.WithCatalog(ctx, false, func(c *catalog.Catalog) error {
		db := c.Database(dbName)
		if db == nil {
			return common.Errorf(common.KindNotFound, "Database %s does not exist.", dbName)
		}
		table := db.Table(def.Table)
		if table == nil {
			return common.Errorf(common.KindNotFound, "Table %s does not exist in database %s.", def.Table, dbName)
		}
		if table.Index(def.Name) != nil {
			return common.Errorf(common.KindAlreadyExists, "Index %s already exists on table %s.", def.Name, def.Table)
		}
		if table.Column(def.Column) == nil {
			return common.Errorf(common.KindUnknownColumn, "Column %s does not exist in table %s.", def.Column, def.Table)
		}
		table.Indexes = append(table.Indexes, catalog.Index{
			Name:      def.Name,
			FileName:  def.Name + ".ind",
			Column:    def.Column,
			Unique:    def.Unique,
			Kind:      def.Kind,
			KeyLength: indexKeyLength,
		})
		return nil
	})
	if err != nil {
		return fail(err)
	}
	return ok("Index %s on %s created successfully for table %s.", def.Name, def.Column, def.Table)
}

// DescribeTable renders a table's schema on one line.
func (e *Executor) DescribeTable(ctx context.Context, dbName, name string) Result {
	if dbName == "" {
		return Result{Kind: common.KindNoDatabaseSelected, Message: noDatabaseSelected}
	}
	t, err := e.catalog.Table(ctx, dbName, name)
	if err != nil {
		return fail(err)
	}

	cols := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		s := col.Name + " " + string(col.Type)
		if col.Length > 0 {
			s += fmt.Sprintf("(%d)", col.Length)
		}
		if !col.Nullable {
			s += " NOT NULL"
		}
		cols[i] = s
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Table %s (%s) PRIMARY KEY (%s)", t.Name, strings.Join(cols, ", "), strings.Join(t.PrimaryKey, ", "))
	for _, fk := range t.ForeignKeys {
		fmt.Fprintf(&b, " FOREIGN KEY (%s) REFERENCES %s(%s)", fk.Column, fk.RefTable, fk.RefColumn)
	}
	for _, ix := range t.Indexes {
		unique := ""
		if ix.Unique {
			unique = "UNIQUE "
		}
		fmt.Fprintf(&b, " %sINDEX %s ON (%s) USING %s", unique, ix.Name, ix.Column, ix.Kind)
	}
	return ok("%s", b.String())
}

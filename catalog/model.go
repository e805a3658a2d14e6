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
	"fmt"
	"strings"
)

// ColumnType is the declared type of a column.
type ColumnType string

const (
	TypeInt     ColumnType = "INT"
	TypeFloat   ColumnType = "FLOAT"
	TypeVarchar ColumnType = "VARCHAR"
	TypeChar    ColumnType = "CHAR"
	TypeBool    ColumnType = "BOOL"
	TypeDate    ColumnType = "DATE"
)

var columnTypes = map[string]ColumnType{
	"INT":     TypeInt,
	"INTEGER": TypeInt,
	"FLOAT":   TypeFloat,
	"DOUBLE":  TypeFloat,
	"VARCHAR": TypeVarchar,
	"CHAR":    TypeChar,
	"BOOL":    TypeBool,
	"BOOLEAN": TypeBool,
	"DATE":    TypeDate,
}

// ParseColumnType resolves a type name case-insensitively.
func ParseColumnType(name string) (ColumnType, bool) {
	t, ok := columnTypes[strings.ToUpper(name)]
	return t, ok
}

// Sized reports whether the type carries a length.
func (t ColumnType) Sized() bool {
	return t == TypeVarchar || t == TypeChar
}

// IndexKind is the declared structure of an index.
type IndexKind string

const (
	IndexBTree IndexKind = "BTREE"
	IndexHash  IndexKind = "HASH"
)

// ParseIndexKind resolves an index kind case-insensitively.
func ParseIndexKind(name string) (IndexKind, bool) {
	switch IndexKind(strings.ToUpper(name)) {
	case IndexBTree:
		return IndexBTree, true
	case IndexHash:
		return IndexHash, true
	}
	return "", false
}

// Catalog is the root of all schema state and the unit of load/save.
type Catalog struct {
	Databases []*Database `json:"databases"`
}

// Database is a named, ordered set of tables.
type Database struct {
	Name   string   `json:"name"`
	Tables []*Table `json:"tables"`
}

// Table is owned by exactly one Database.
type Table struct {
	Name        string       `json:"name"`
	FileName    string       `json:"fileName"`
	RowLength   int          `json:"rowLength"`
	Columns     []Column     `json:"columns"`
	PrimaryKey  []string     `json:"primaryKey"`
	ForeignKeys []ForeignKey `json:"foreignKeys,omitempty"`
	Indexes     []Index      `json:"indexes,omitempty"`
}

type Column struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Length   int        `json:"length,omitempty"`
	Nullable bool       `json:"nullable"`
}

// ForeignKey links a local column to a primary-key column of another table
// in the same database.
type ForeignKey struct {
	Column    string `json:"column"`
	RefTable  string `json:"refTable"`
	RefColumn string `json:"refColumn"`
}

// Index records an intended index structure. Nothing builds or consults it.
type Index struct {
	Name      string    `json:"name"`
	FileName  string    `json:"fileName"`
	Column    string    `json:"column"`
	Unique    bool      `json:"unique"`
	Kind      IndexKind `json:"kind"`
	KeyLength int       `json:"keyLength"`
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{Databases: []*Database{}}
}

// Database returns the database named name, or nil.
func (c *Catalog) Database(name string) *Database {
	for _, db := range c.Databases {
		if db.Name == name {
			return db
		}
	}
	return nil
}

// AddDatabase appends an empty database.
func (c *Catalog) AddDatabase(name string) *Database {
	db := &Database{Name: name, Tables: []*Table{}}
	c.Databases = append(c.Databases, db)
	return db
}

// RemoveDatabase removes the named database and reports whether it existed.
func (c *Catalog) RemoveDatabase(name string) bool {
	for i, db := range c.Databases {
		if db.Name == name {
			c.Databases = append(c.Databases[:i], c.Databases[i+1:]...)
			return true
		}
	}
	return false
}

// DatabaseNames lists database names in catalog order.
func (c *Catalog) DatabaseNames() []string {
	names := make([]string, 0, len(c.Databases))
	for _, db := range c.Databases {
		names = append(names, db.Name)
	}
	return names
}

// Table returns the named table, or nil.
func (d *Database) Table(name string) *Table {
	for _, t := range d.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// RemoveTable removes the named table and reports whether it existed.
func (d *Database) RemoveTable(name string) bool {
	for i, t := range d.Tables {
		if t.Name == name {
			d.Tables = append(d.Tables[:i], d.Tables[i+1:]...)
			return true
		}
	}
	return false
}

// TableNames lists table names in catalog order.
func (d *Database) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for _, t := range d.Tables {
		names = append(names, t.Name)
	}
	return names
}

// ReferencingTable returns the first other table holding a foreign key that
// points at a primary-key column of table, with the referenced column.
func (d *Database) ReferencingTable(table *Table) (*Table, string) {
	for _, other := range d.Tables {
		if other.Name == table.Name {
			continue
		}
		for _, fk := range other.ForeignKeys {
			if fk.RefTable == table.Name && table.IsPrimaryKey(fk.RefColumn) {
				return other, fk.RefColumn
			}
		}
	}
	return nil, ""
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// IsPrimaryKey reports whether name is part of the table's primary key.
func (t *Table) IsPrimaryKey(name string) bool {
	for _, pk := range t.PrimaryKey {
		if pk == name {
			return true
		}
	}
	return false
}

// Index returns the named index, or nil.
func (t *Table) Index(name string) *Index {
	for i := range t.Indexes {
		if t.Indexes[i].Name == name {
			return &t.Indexes[i]
		}
	}
	return nil
}

// ComputeRowLength sums the declared lengths of sized columns.
func (t *Table) ComputeRowLength() int {
	total := 0
	for _, col := range t.Columns {
		if col.Length > 0 {
			total += col.Length
		}
	}
	return total
}

// Clone returns a deep copy that shares no slices with c.
func (c *Catalog) Clone() *Catalog {
	out := &Catalog{Databases: make([]*Database, 0, len(c.Databases))}
	for _, db := range c.Databases {
		cp := &Database{Name: db.Name, Tables: make([]*Table, 0, len(db.Tables))}
		for _, t := range db.Tables {
			cp.Tables = append(cp.Tables, t.Clone())
		}
		out.Databases = append(out.Databases, cp)
	}
	return out
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	cp := *t
	cp.Columns = append([]Column(nil), t.Columns...)
	cp.PrimaryKey = append([]string(nil), t.PrimaryKey...)
	cp.ForeignKeys = append([]ForeignKey(nil), t.ForeignKeys...)
	cp.Indexes = append([]Index(nil), t.Indexes...)
	return &cp
}

// Validate checks every catalog invariant and returns the first violation.
func (c *Catalog) Validate() error {
	dbs := make(map[string]bool, len(c.Databases))
	for _, db := range c.Databases {
		if db.Name == "" {
			return fmt.Errorf("database with empty name")
		}
		if dbs[db.Name] {
			return fmt.Errorf("duplicate database %s", db.Name)
		}
		dbs[db.Name] = true
		if err := db.validate(); err != nil {
			return fmt.Errorf("database %s: %w", db.Name, err)
		}
	}
	return nil
}

func (d *Database) validate() error {
	tables := make(map[string]bool, len(d.Tables))
	for _, t := range d.Tables {
		if tables[t.Name] {
			return fmt.Errorf("duplicate table %s", t.Name)
		}
		tables[t.Name] = true
	}
	for _, t := range d.Tables {
		if err := t.validate(d); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (t *Table) validate(db *Database) error {
	cols := make(map[string]bool, len(t.Columns))
	for _, col := range t.Columns {
		if cols[col.Name] {
			return fmt.Errorf("duplicate column %s", col.Name)
		}
		cols[col.Name] = true
	}
	if len(t.PrimaryKey) == 0 {
		return fmt.Errorf("empty primary key")
	}
	keyCols := make(map[string]bool, len(t.PrimaryKey))
	for _, pk := range t.PrimaryKey {
		if !cols[pk] {
			return fmt.Errorf("primary key column %s not declared", pk)
		}
		if keyCols[pk] {
			return fmt.Errorf("primary key column %s repeated", pk)
		}
		keyCols[pk] = true
	}
	for _, fk := range t.ForeignKeys {
		if !cols[fk.Column] {
			return fmt.Errorf("foreign key column %s not declared", fk.Column)
		}
		ref := db.Table(fk.RefTable)
		if ref == nil {
			return fmt.Errorf("foreign key references missing table %s", fk.RefTable)
		}
		if !ref.IsPrimaryKey(fk.RefColumn) {
			return fmt.Errorf("foreign key references non-key column %s.%s", fk.RefTable, fk.RefColumn)
		}
	}
	idx := make(map[string]bool, len(t.Indexes))
	for _, ix := range t.Indexes {
		if idx[ix.Name] {
			return fmt.Errorf("duplicate index %s", ix.Name)
		}
		idx[ix.Name] = true
		if !cols[ix.Column] {
			return fmt.Errorf("index %s on undeclared column %s", ix.Name, ix.Column)
		}
	}
	return nil
}

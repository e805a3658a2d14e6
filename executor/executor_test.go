package executor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minidbms/catalog"
	"minidbms/codec"
	"minidbms/common"
	"minidbms/engine"
	"minidbms/mirror"
	"minidbms/storage"
)

func newExecutor(t *testing.T, wrap func(storage.RecordStore) storage.RecordStore) *Executor {
	t.Helper()
	cat, err := catalog.NewStore(catalog.NewFilePersister(filepath.Join(t.TempDir(), "Database.json")), 16)
	require.NoError(t, err)
	var records storage.RecordStore = storage.NewKVStore(engine.NewMemory())
	if wrap != nil {
		records = wrap(records)
	}
	return New(cat, records, nil)
}

func studentDef() TableDef {
	return TableDef{
		Name: "student",
		Columns: []catalog.Column{
			{Name: "id", Type: catalog.TypeInt},
			{Name: "name", Type: catalog.TypeVarchar, Length: 20, Nullable: true},
		},
		PrimaryKey: []string{"id"},
	}
}

func ordersDef() TableDef {
	return TableDef{
		Name: "orders",
		Columns: []catalog.Column{
			{Name: "oid", Type: catalog.TypeInt},
			{Name: "sid", Type: catalog.TypeInt, Nullable: true},
		},
		PrimaryKey:  []string{"oid"},
		ForeignKeys: []catalog.ForeignKey{{Column: "sid", RefTable: "student", RefColumn: "id"}},
	}
}

func setupSchool(t *testing.T, e *Executor) {
	t.Helper()
	ctx := context.Background()
	require.True(t, e.CreateDatabase(ctx, "school").OK())
	require.True(t, e.CreateTable(ctx, "school", studentDef()).OK())
}

func TestExecutor_DatabaseLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t, nil)

	assert.Equal(t, "No databases found.", e.ListDatabases(ctx).Message)

	res := e.CreateDatabase(ctx, "school")
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, "Database school created successfully.", res.Message)

	res = e.CreateDatabase(ctx, "school")
	assert.Equal(t, common.KindAlreadyExists, res.Kind)

	require.True(t, e.CreateDatabase(ctx, "archive").OK())
	assert.Equal(t, "Databases: school, archive", e.ListDatabases(ctx).Message)

	assert.True(t, e.DatabaseExists(ctx, "school").OK())
	assert.Equal(t, common.KindNotFound, e.DatabaseExists(ctx, "nope").Kind)

	res = e.DropDatabase(ctx, "archive")
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, common.KindNotFound, e.DropDatabase(ctx, "archive").Kind)
	assert.Equal(t, "Databases: school", e.ListDatabases(ctx).Message)
}

func TestExecutor_CreateTableValidation(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t, nil)
	setupSchool(t, e)

	assert.Equal(t, common.KindNoDatabaseSelected, e.CreateTable(ctx, "", studentDef()).Kind)
	assert.Equal(t, common.KindNotFound, e.CreateTable(ctx, "nope", studentDef()).Kind)
	assert.Equal(t, common.KindAlreadyExists, e.CreateTable(ctx, "school", studentDef()).Kind)

	noKey := studentDef()
	noKey.Name = "nokey"
	noKey.PrimaryKey = nil
	assert.Equal(t, common.KindInvalidPrimaryKey, e.CreateTable(ctx, "school", noKey).Kind)

	badKey := studentDef()
	badKey.Name = "badkey"
	badKey.PrimaryKey = []string{"ghost"}
	assert.Equal(t, common.KindInvalidPrimaryKey, e.CreateTable(ctx, "school", badKey).Kind)

	repeatedKey := studentDef()
	repeatedKey.Name = "repeated"
	repeatedKey.PrimaryKey = []string{"id", "id"}
	assert.Equal(t, common.KindInvalidPrimaryKey, e.CreateTable(ctx, "school", repeatedKey).Kind)

	missingRef := ordersDef()
	missingRef.ForeignKeys[0].RefTable = "professor"
	assert.Equal(t, common.KindUnknownReference, e.CreateTable(ctx, "school", missingRef).Kind)

	nonKeyRef := ordersDef()
	nonKeyRef.ForeignKeys[0].RefColumn = "name"
	assert.Equal(t, common.KindInvalidForeignKey, e.CreateTable(ctx, "school", nonKeyRef).Kind)

	ghostCol := ordersDef()
	ghostCol.ForeignKeys[0].Column = "ghost"
	assert.Equal(t, common.KindInvalidForeignKey, e.CreateTable(ctx, "school", ghostCol).Kind)

	assert.Equal(t, "Tables in school: student", e.ListTables(ctx, "school").Message)

	tbl, err := e.Catalog().Table(ctx, "school", "student")
	require.NoError(t, err)
	assert.Equal(t, "student.bin", tbl.FileName)
	assert.False(t, tbl.Column("id").Nullable)
	assert.Equal(t, tbl.ComputeRowLength(), tbl.RowLength)
}

func TestExecutor_DropTableReferentialIntegrity(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t, nil)
	setupSchool(t, e)
	require.True(t, e.CreateTable(ctx, "school", ordersDef()).OK())

	res := e.DropTable(ctx, "school", "student")
	assert.Equal(t, common.KindReferentialIntegrity, res.Kind)
	assert.Contains(t, res.Message, "orders")
	assert.Equal(t, "Tables in school: student, orders", e.ListTables(ctx, "school").Message)

	require.True(t, e.DropTable(ctx, "school", "orders").OK())
	require.True(t, e.DropTable(ctx, "school", "student").OK())
	assert.Equal(t, common.KindNotFound, e.DropTable(ctx, "school", "student").Kind)
	assert.Equal(t, "No tables found in school.", e.ListTables(ctx, "school").Message)
}

func TestExecutor_CreateIndex(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t, nil)
	setupSchool(t, e)

	res := e.CreateIndex(ctx, "school", IndexDef{Name: "by_name", Table: "student", Column: "name", Unique: true})
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, common.KindAlreadyExists,
		e.CreateIndex(ctx, "school", IndexDef{Name: "by_name", Table: "student", Column: "id"}).Kind)
	assert.Equal(t, common.KindUnknownColumn,
		e.CreateIndex(ctx, "school", IndexDef{Name: "by_age", Table: "student", Column: "age"}).Kind)
	assert.Equal(t, common.KindNotFound,
		e.CreateIndex(ctx, "school", IndexDef{Name: "x", Table: "professor", Column: "id"}).Kind)

	tbl, err := e.Catalog().Table(ctx, "school", "student")
	require.NoError(t, err)
	ix := tbl.Index("by_name")
	require.NotNil(t, ix)
	assert.Equal(t, catalog.IndexBTree, ix.Kind)
	assert.Equal(t, "by_name.ind", ix.FileName)
	assert.True(t, ix.Unique)

	desc := e.DescribeTable(ctx, "school", "student")
	require.True(t, desc.OK())
	assert.Contains(t, desc.Message, "Table student (id INT NOT NULL, name VARCHAR(20)) PRIMARY KEY (id)")
	assert.Contains(t, desc.Message, "UNIQUE INDEX by_name ON (name) USING BTREE")
}

func TestExecutor_RecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t, nil)
	setupSchool(t, e)

	fields := []codec.Field{{Name: "id", Value: "1"}, {Name: "name", Value: "Ann"}}
	res := e.Insert(ctx, "school", "student", fields)
	require.True(t, res.OK(), res.Message)

	res = e.Insert(ctx, "school", "student", fields)
	assert.Equal(t, common.KindDuplicateKey, res.Kind)

	res = e.Get(ctx, "school", "student", "1")
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, "Record in student: id=1, $1=Ann", res.Message)

	res = e.Delete(ctx, "school", "student", "1")
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, common.KindRecordNotFound, e.Delete(ctx, "school", "student", "1").Kind)
	assert.Equal(t, common.KindRecordNotFound, e.Get(ctx, "school", "student", "1").Kind)

	// The key is free again after the delete.
	assert.True(t, e.Insert(ctx, "school", "student", fields).OK())
}

func TestExecutor_InsertRejectsBadRecords(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t, nil)
	setupSchool(t, e)

	cases := map[string]struct {
		fields []codec.Field
		kind   common.Kind
	}{
		"unknown field": {[]codec.Field{{Name: "id", Value: "1"}, {Name: "age", Value: "3"}}, common.KindUnknownField},
		"missing key":   {[]codec.Field{{Name: "name", Value: "Ann"}}, common.KindMissingKeyField},
		"bad int":       {[]codec.Field{{Name: "id", Value: "one"}}, common.KindInvalidValue},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.kind, e.Insert(ctx, "school", "student", tc.fields).Kind)
		})
	}

	assert.Equal(t, common.KindNotFound,
		e.Insert(ctx, "school", "professor", []codec.Field{{Name: "id", Value: "1"}}).Kind)
	assert.Equal(t, common.KindNoDatabaseSelected,
		e.Insert(ctx, "", "student", []codec.Field{{Name: "id", Value: "1"}}).Kind)
}

func TestExecutor_ConcurrentInsertsOfOneKey(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t, nil)
	setupSchool(t, e)

	const n = 16
	results := make([]Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Insert(ctx, "school", "student", []codec.Field{{Name: "id", Value: "7"}})
		}(i)
	}
	wg.Wait()

	inserted := 0
	for _, res := range results {
		if res.OK() {
			inserted++
		} else {
			assert.Equal(t, common.KindDuplicateKey, res.Kind)
		}
	}
	assert.Equal(t, 1, inserted)
}

func TestExecutor_DropDatabaseRemovesRecords(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t, nil)
	setupSchool(t, e)
	require.True(t, e.Insert(ctx, "school", "student", []codec.Field{{Name: "id", Value: "1"}}).OK())

	require.True(t, e.DropDatabase(ctx, "school").OK())
	setupSchool(t, e)
	assert.Equal(t, common.KindRecordNotFound, e.Get(ctx, "school", "student", "1").Kind)
}

type brokenDrops struct {
	storage.RecordStore
}

var errDiskGone = errors.New("disk gone")

func (brokenDrops) DropCollection(ctx context.Context, ns, coll string) error { return errDiskGone }
func (brokenDrops) DropNamespace(ctx context.Context, ns string) error        { return errDiskGone }

func TestExecutor_StorageFailureAfterCatalogChange(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t, func(s storage.RecordStore) storage.RecordStore { return brokenDrops{s} })
	setupSchool(t, e)

	res := e.DropTable(ctx, "school", "student")
	assert.Equal(t, common.KindPartialFailure, res.Kind)
	assert.Contains(t, res.Message, "disk gone")
	assert.Equal(t, common.KindNotFound, e.DescribeTable(ctx, "school", "student").Kind)

	res = e.DropDatabase(ctx, "school")
	assert.Equal(t, common.KindPartialFailure, res.Kind)
	assert.Equal(t, "No databases found.", e.ListDatabases(ctx).Message)
}

func TestExecutor_MirrorFollowsRecords(t *testing.T) {
	ctx := context.Background()
	cat, err := catalog.NewStore(catalog.NewFilePersister(filepath.Join(t.TempDir(), "Database.json")), 16)
	require.NoError(t, err)
	records := storage.NewKVStore(engine.NewMemory())
	m := mirror.New(t.TempDir(), records)
	e := New(cat, records, m)
	setupSchool(t, e)

	require.True(t, e.Insert(ctx, "school", "student", []codec.Field{{Name: "id", Value: "1"}, {Name: "name", Value: "Ann"}}).OK())
	assert.FileExists(t, m.Path("school", "student"))

	require.True(t, e.DropTable(ctx, "school", "student").OK())
	assert.NoFileExists(t, m.Path("school", "student"))
}

func TestExecutor_DropTableWaitsForRecordWriters(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t, nil)
	setupSchool(t, e)

	unlock := e.locks.Lock(lockKey("school", "student"))
	done := make(chan Result)
	go func() { done <- e.DropTable(ctx, "school", "student") }()

	// While a writer holds the table, the drop must not touch the catalog.
	time.Sleep(50 * time.Millisecond)
	assert.True(t, e.DescribeTable(ctx, "school", "student").OK())

	unlock()
	res := <-done
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, common.KindNotFound, e.DescribeTable(ctx, "school", "student").Kind)
}

func TestExecutor_DropDatabaseWaitsForRecordWriters(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t, nil)
	setupSchool(t, e)

	unlock := e.locks.Lock(lockKey("school", "student"))
	done := make(chan Result)
	go func() { done <- e.DropDatabase(ctx, "school") }()

	time.Sleep(50 * time.Millisecond)
	assert.True(t, e.DatabaseExists(ctx, "school").OK())

	unlock()
	res := <-done
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, common.KindNotFound, e.DatabaseExists(ctx, "school").Kind)
}

func TestExecutor_DropDatabaseSeesTablesCreatedMeanwhile(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t, nil)
	setupSchool(t, e)

	// DropDatabase lists student, then blocks on its lock; orders appears
	// before the lock is released.
	unlock := e.locks.Lock(lockKey("school", "student"))
	done := make(chan Result)
	go func() { done <- e.DropDatabase(ctx, "school") }()
	time.Sleep(50 * time.Millisecond)
	require.True(t, e.CreateTable(ctx, "school", ordersDef()).OK())
	require.True(t, e.Insert(ctx, "school", "orders", []codec.Field{{Name: "oid", Value: "1"}}).OK())
	unlock()

	res := <-done
	require.True(t, res.OK(), res.Message)
	setupSchool(t, e)
	require.True(t, e.CreateTable(ctx, "school", ordersDef()).OK())
	assert.Equal(t, common.KindRecordNotFound, e.Get(ctx, "school", "orders", "1").Kind)
}

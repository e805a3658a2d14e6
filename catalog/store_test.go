package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minidbms/common"
	"minidbms/engine"
)

func newFileStore(t *testing.T) (*Store, *FilePersister) {
	t.Helper()
	p := NewFilePersister(filepath.Join(t.TempDir(), "Database.json"))
	s, err := NewStore(p, 8)
	require.NoError(t, err)
	return s, p
}

func addDatabase(name string) func(c *Catalog) error {
	return func(c *Catalog) error {
		c.AddDatabase(name)
		return nil
	}
}

func TestStore_WritePersists(t *testing.T) {
	ctx := context.Background()
	s, p := newFileStore(t)

	require.NoError(t, s.WithCatalog(ctx, false, addDatabase("school")))

	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"school"}, loaded.DatabaseNames())

	// A fresh store over the same file sees the same catalog.
	s2, err := NewStore(p, 8)
	require.NoError(t, err)
	require.NoError(t, s2.WithCatalog(ctx, true, func(c *Catalog) error {
		assert.NotNil(t, c.Database("school"))
		return nil
	}))
}

func TestStore_FailedWriteLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	s, p := newFileStore(t)
	require.NoError(t, s.WithCatalog(ctx, false, addDatabase("school")))

	boom := errors.New("boom")
	err := s.WithCatalog(ctx, false, func(c *Catalog) error {
		c.AddDatabase("half")
		c.RemoveDatabase("school")
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.WithCatalog(ctx, true, func(c *Catalog) error {
		assert.Equal(t, []string{"school"}, c.DatabaseNames())
		return nil
	}))
	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"school"}, loaded.DatabaseNames())
}

func TestStore_InvariantViolationIsConflict(t *testing.T) {
	ctx := context.Background()
	s, p := newFileStore(t)

	err := s.WithCatalog(ctx, false, func(c *Catalog) error {
		db := c.AddDatabase("school")
		db.Tables = append(db.Tables, &Table{Name: "broken", Columns: []Column{{Name: "id"}}})
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, common.KindCatalogConflict, common.KindOf(err))

	_, statErr := os.Stat(p.Path)
	assert.True(t, os.IsNotExist(statErr), "nothing should have been saved")
}

func TestStore_UnavailableCatalogRecovers(t *testing.T) {
	ctx := context.Background()
	s, p := newFileStore(t)
	require.NoError(t, os.WriteFile(p.Path, []byte("{not json"), 0644))

	err := s.WithCatalog(ctx, true, func(c *Catalog) error { return nil })
	require.Error(t, err)
	assert.Equal(t, common.KindCatalogUnavailable, common.KindOf(err))

	err = s.WithCatalog(ctx, false, addDatabase("school"))
	assert.Equal(t, common.KindCatalogUnavailable, common.KindOf(err))

	// Once the document is readable again the next command succeeds.
	require.NoError(t, os.WriteFile(p.Path, []byte(`{"databases":[]}`), 0644))
	require.NoError(t, s.WithCatalog(ctx, false, addDatabase("school")))
}

func TestStore_TableLookupSeesWrites(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)
	require.NoError(t, s.WithCatalog(ctx, false, func(c *Catalog) error {
		db := c.AddDatabase("school")
		db.Tables = append(db.Tables, &Table{
			Name:       "student",
			Columns:    []Column{{Name: "id", Type: TypeInt}},
			PrimaryKey: []string{"id"},
		})
		return nil
	}))

	tbl, err := s.Table(ctx, "school", "student")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, tbl.PrimaryKey)

	// Mutating a returned copy touches neither the catalog nor the cache,
	// whether the lookup missed or hit the cache.
	for i := 0; i < 3; i++ {
		tbl.PrimaryKey[0] = "mutated"
		tbl.Columns[0].Name = "mutated"
		tbl, err = s.Table(ctx, "school", "student")
		require.NoError(t, err)
		assert.Equal(t, []string{"id"}, tbl.PrimaryKey)
		assert.Equal(t, "id", tbl.Columns[0].Name)
	}
	require.NoError(t, s.WithCatalog(ctx, true, func(c *Catalog) error {
		assert.Equal(t, []string{"id"}, c.Database("school").Table("student").PrimaryKey)
		return nil
	}))

	require.NoError(t, s.WithCatalog(ctx, false, func(c *Catalog) error {
		c.Database("school").RemoveTable("student")
		return nil
	}))
	_, err = s.Table(ctx, "school", "student")
	assert.Equal(t, common.KindNotFound, common.KindOf(err))

	_, err = s.Table(ctx, "nope", "student")
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
}

func TestStore_ConcurrentWritersAreSerialized(t *testing.T) {
	ctx := context.Background()
	s, p := newFileStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.WithCatalog(ctx, false, func(c *Catalog) error {
				if c.Database("shared") != nil {
					return common.Errorf(common.KindAlreadyExists, "exists")
				}
				c.AddDatabase("shared")
				return nil
			})
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.Equal(t, common.KindAlreadyExists, common.KindOf(err))
		}
	}
	assert.Equal(t, 1, succeeded)

	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"shared"}, loaded.DatabaseNames())
}

func TestEnginePersister_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := engine.NewMemory()
	p := NewEnginePersister(kv)

	empty, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.Databases)

	c := schoolCatalog()
	require.NoError(t, p.Save(ctx, c))

	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
}

func TestFilePersister_MissingFileIsEmptyCatalog(t *testing.T) {
	p := NewFilePersister(filepath.Join(t.TempDir(), "nested", "Database.json"))
	c, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, c.Databases)

	require.NoError(t, p.Save(context.Background(), schoolCatalog()))
	loaded, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, schoolCatalog(), loaded)
}

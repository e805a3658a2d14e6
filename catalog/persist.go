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
	"context"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"

	"minidbms/common"
)

// CatalogKey is where EnginePersister keeps the catalog document.
var CatalogKey = []byte("META:CATALOG")

func decode(data []byte) (*Catalog, error) {
	c := New()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "catalog document is not well-formed")
	}
	if c.Databases == nil {
		c.Databases = []*Database{}
	}
	for _, db := range c.Databases {
		if db == nil {
			return nil, errors.New("catalog document has an empty database entry")
		}
		if db.Tables == nil {
			db.Tables = []*Table{}
		}
	}
	return c, nil
}

func encode(c *Catalog) ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// FilePersister keeps the catalog as an indented JSON document on disk.
type FilePersister struct {
	Path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{Path: path}
}

// Load reads the document. A missing file is an empty catalog.
func (p *FilePersister) Load(ctx context.Context) (*Catalog, error) {
	data, err := os.ReadFile(p.Path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read catalog %s", p.Path)
	}
	return decode(data)
}

// Save replaces the document through a temp file and rename so a crash never
// leaves a half-written catalog behind.
func (p *FilePersister) Save(ctx context.Context, c *Catalog) error {
	data, err := encode(c)
	if err != nil {
		return errors.Wrap(err, "encode catalog")
	}
	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "create catalog dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".catalog-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp catalog")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp catalog")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync temp catalog")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp catalog")
	}
	return errors.Wrap(os.Rename(tmp.Name(), p.Path), "replace catalog")
}

// KV is the slice of a key/value engine EnginePersister needs.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
}

// EnginePersister keeps the catalog document under CatalogKey in a KV engine,
// next to the records it describes.
type EnginePersister struct {
	kv KV
}

func NewEnginePersister(kv KV) *EnginePersister {
	return &EnginePersister{kv: kv}
}

func (p *EnginePersister) Load(ctx context.Context) (*Catalog, error) {
	data, err := p.kv.Get(CatalogKey)
	if errors.Is(err, common.ErrNotFound) {
		return New(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read catalog key")
	}
	return decode(data)
}

func (p *EnginePersister) Save(ctx context.Context, c *Catalog) error {
	data, err := encode(c)
	if err != nil {
		return errors.Wrap(err, "encode catalog")
	}
	return errors.Wrap(p.kv.Set(CatalogKey, data), "write catalog key")
}

package memstore

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/ridge/quarry/indices"
)

const (
	idIndex      = "id"
	updatedIndex = "updated"
	indexPrefix  = "idx_"
)

// record is the stored form of a model: the encoded document plus the index
// keys computed when it was written. Records are immutable once inserted.
type record struct {
	ID        string
	Document  []byte
	Keys      map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func indexName(name string) string {
	return indexPrefix + name
}

// keyIndexer indexes records by the precomputed composite key of one index.
// Keys are terminated by the delimiter, so a lookup never matches a key that
// merely starts with the same segments as long as results are compared
// exactly (see Store.lookup).
type keyIndexer struct {
	name string
}

func (ki keyIndexer) FromArgs(args ...any) ([]byte, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("index %s expects one argument", ki.name)
	}
	key, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("index %s expects a string key, got %T", ki.name, args[0])
	}
	return []byte(key + indices.Delimiter), nil
}

func (ki keyIndexer) FromObject(obj any) (bool, []byte, error) {
	key, ok := obj.(*record).Keys[ki.name]
	if !ok {
		return false, nil, nil
	}
	return true, []byte(key + indices.Delimiter), nil
}

// updatedIndexer orders records by update time, then by id
type updatedIndexer struct{}

func (updatedIndexer) FromArgs(args ...any) ([]byte, error) {
	return nil, fmt.Errorf("index %s does not support lookups", updatedIndex)
}

func (updatedIndexer) FromObject(obj any) (bool, []byte, error) {
	r := obj.(*record)
	b := make([]byte, 8, 8+len(r.ID))
	binary.BigEndian.PutUint64(b, uint64(r.UpdatedAt.UnixNano()))
	return true, append(b, r.ID...), nil
}

func tableSchema[M any](table string, registry *indices.Registry[M]) *memdb.TableSchema {
	schema := &memdb.TableSchema{
		Name: table,
		Indexes: map[string]*memdb.IndexSchema{
			idIndex: {
				Name:    idIndex,
				Unique:  true,
				Indexer: &memdb.StringFieldIndex{Field: "ID"},
			},
			updatedIndex: {
				Name:    updatedIndex,
				Unique:  true,
				Indexer: updatedIndexer{},
			},
		},
	}
	for _, def := range registry.All() {
		name := indexName(def.Name)
		schema.Indexes[name] = &memdb.IndexSchema{
			Name:    name,
			Unique:  def.Unique,
			Indexer: keyIndexer{name: def.Name},
		}
	}
	return schema
}

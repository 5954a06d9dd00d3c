package boltstore

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/ridge/quarry/indices"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

var (
	recordsBucket = []byte("records")
	updatedBucket = []byte("updated")
)

var errNoSchema = errors.New("schema is not initialized")

func indexBucket(name string) []byte {
	return []byte("idx_" + name)
}

// envelope is the stored form of a record. Keys are kept so that an update or
// delete knows which index entries to remove.
type envelope struct {
	Doc     []byte            `msgpack:"doc"`
	Keys    map[string]string `msgpack:"keys"`
	Created int64             `msgpack:"created"`
	Updated int64             `msgpack:"updated"`
}

func encodeEnvelope(env envelope) ([]byte, error) {
	return msgpack.Marshal(env)
}

func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	err := msgpack.Unmarshal(data, &env)
	return env, err
}

// updatedKey orders records by update time, then by id
func updatedKey(updated int64, id string) []byte {
	b := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(b, uint64(updated))
	return append(b, id...)
}

// uniqueKey is the key of a unique index entry. The delimiter suffix keeps
// it non-empty, as bbolt requires.
func uniqueKey(key string) []byte {
	return []byte(key + indices.Delimiter)
}

// entryKey is the key of a non-unique index entry: the index key, the
// delimiter and the record id
func entryKey(key, id string) []byte {
	b := make([]byte, 0, len(key)+len(indices.Delimiter)+len(id))
	b = append(b, key...)
	b = append(b, indices.Delimiter...)
	return append(b, id...)
}

// tableBuckets are the buckets of one model table within a transaction
type tableBuckets struct {
	records *bbolt.Bucket
	updated *bbolt.Bucket
	root    *bbolt.Bucket
}

func (tb tableBuckets) index(name string) *bbolt.Bucket {
	return tb.root.Bucket(indexBucket(name))
}

func openBuckets(tx *bbolt.Tx, table string) (tableBuckets, error) {
	root := tx.Bucket([]byte(table))
	if root == nil {
		return tableBuckets{}, errNoSchema
	}
	return tableBuckets{
		root:    root,
		records: root.Bucket(recordsBucket),
		updated: root.Bucket(updatedBucket),
	}, nil
}

// lookup returns the ids mapped to the key by an index
func lookup(b *bbolt.Bucket, unique bool, key string) []string {
	if unique {
		if id := b.Get(uniqueKey(key)); id != nil {
			return []string{string(id)}
		}
		return nil
	}
	var ids []string
	prefix := append([]byte(key), indices.Delimiter...)
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		// a longer composite key can share the prefix: compare exactly
		if len(k) == len(prefix)+len(v) {
			ids = append(ids, string(v))
		}
	}
	return ids
}

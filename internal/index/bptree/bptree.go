// Package bptree implements the persistent keydir variant: a single
// go.etcd.io/bbolt database file (bptree-index) holding one bucket whose
// keys are user keys and whose values are encoded record.Position values.
//
// This is the Go counterpart of the jammdb-backed B+-tree index in the
// project this engine descends from: an embedded, single-file, bucket-
// based B+-tree gives the same "index survives a restart without a full
// log scan" property jammdb provided there. Every Put/Delete is its own
// bbolt transaction, and Iterator materializes the whole bucket into an
// in-memory slice (reversed in place when requested) rather than walking
// a live bbolt cursor across calls — matching the snapshot-then-iterate
// behavior of the original bptree iterator.
package bptree

import (
	"bytes"
	"path/filepath"
	"sort"

	"github.com/emberkv/ember/internal/index"
	"github.com/emberkv/ember/internal/record"
	"github.com/emberkv/ember/pkg/errors"
	"github.com/emberkv/ember/pkg/options"
	"github.com/emberkv/ember/pkg/seginfo"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var bucketName = []byte("ember-index")

// BPTree is the bbolt-backed, persistent Indexer implementation.
type BPTree struct {
	db  *bbolt.DB
	log *zap.SugaredLogger
}

var _ index.Indexer = (*BPTree)(nil)

// Open opens (creating if necessary) the bptree-index file inside dir and
// ensures its single bucket exists.
func Open(dir string, log *zap.SugaredLogger) (*BPTree, error) {
	path := filepath.Join(dir, seginfo.BPlusTreeIndexFileName)

	db, err := bbolt.Open(path, 0644, nil)
	if err != nil {
		return nil, errors.ClassifyFileOpenError(err, path, seginfo.BPlusTreeIndexFileName)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to initialize bptree bucket").WithPath(path)
	}

	return &BPTree{db: db, log: log}, nil
}

func (b *BPTree) Put(key []byte, pos record.Position) (*record.Position, error) {
	var prev *record.Position
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if existing := bucket.Get(key); existing != nil {
			decoded, _, err := record.DecodePosition(existing)
			if err == nil {
				prev = &decoded
			}
		}
		return bucket.Put(key, record.EncodePosition(pos))
	})
	if err != nil {
		return nil, errors.NewIndexError(err, errors.ErrorCodeInternal, "failed to put key into bptree index").
			WithKey(string(key)).WithOperation("Put")
	}
	return prev, nil
}

func (b *BPTree) Get(key []byte) (*record.Position, error) {
	var pos *record.Position
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		value := bucket.Get(key)
		if value == nil {
			return nil
		}
		decoded, _, err := record.DecodePosition(value)
		if err != nil {
			return err
		}
		pos = &decoded
		return nil
	})
	if err != nil {
		return nil, errors.NewIndexError(err, errors.ErrorCodeInternal, "failed to decode position from bptree index").
			WithKey(string(key)).WithOperation("Get")
	}
	return pos, nil
}

func (b *BPTree) Delete(key []byte) (*record.Position, error) {
	var removed *record.Position
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if existing := bucket.Get(key); existing != nil {
			decoded, _, err := record.DecodePosition(existing)
			if err == nil {
				removed = &decoded
			}
		}
		return bucket.Delete(key)
	})
	if err != nil {
		return nil, errors.NewIndexError(err, errors.ErrorCodeInternal, "failed to delete key from bptree index").
			WithKey(string(key)).WithOperation("Delete")
	}
	return removed, nil
}

func (b *BPTree) ListKeys() ([][]byte, error) {
	var keys [][]byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		return bucket.ForEach(func(k, _ []byte) error {
			keys = append(keys, append([]byte(nil), k...))
			return nil
		})
	})
	return keys, err
}

func (b *BPTree) Size() int {
	var n int
	b.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketName).Stats().KeyN
		return nil
	})
	return n
}

func (b *BPTree) Close() error {
	return b.db.Close()
}

type entry struct {
	key []byte
	pos record.Position
}

func (b *BPTree) Iterator(opts options.IteratorOptions) (index.Iterator, error) {
	var entries []entry
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		return bucket.ForEach(func(k, v []byte) error {
			if len(opts.Prefix) > 0 && !bytes.HasPrefix(k, opts.Prefix) {
				return nil
			}
			pos, _, err := record.DecodePosition(v)
			if err != nil {
				return err
			}
			entries = append(entries, entry{key: append([]byte(nil), k...), pos: pos})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if opts.Reverse {
		sort.SliceStable(entries, func(i, j int) bool { return bytes.Compare(entries[i].key, entries[j].key) > 0 })
	}

	return &Iter{entries: entries, pos: -1, reverse: opts.Reverse}, nil
}

// Iter is the in-memory snapshot iterator returned by BPTree.Iterator.
type Iter struct {
	entries []entry
	pos     int
	reverse bool
}

func (it *Iter) Rewind() { it.pos = -1 }

// Seek positions the iterator so the next Next() lands on the first key
// >= target in an ascending snapshot, or the first key <= target in a
// reversed (descending) one.
func (it *Iter) Seek(key []byte) {
	if it.reverse {
		it.pos = sort.Search(len(it.entries), func(i int) bool {
			return bytes.Compare(it.entries[i].key, key) <= 0
		}) - 1
		return
	}
	it.pos = sort.Search(len(it.entries), func(i int) bool {
		return bytes.Compare(it.entries[i].key, key) >= 0
	}) - 1
}

func (it *Iter) Next() bool {
	it.pos++
	return it.pos < len(it.entries)
}

func (it *Iter) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.entries) {
		return nil
	}
	return it.entries[it.pos].key
}

func (it *Iter) Position() record.Position {
	if it.pos < 0 || it.pos >= len(it.entries) {
		return record.Position{}
	}
	return it.entries[it.pos].pos
}

func (it *Iter) Close() error { return nil }

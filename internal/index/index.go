// Package index defines the keydir contract every ember index
// implementation (tree, skiplist, bptree) satisfies. Concrete
// implementations live in sibling packages and are selected by the engine
// based on options.IndexType — this package only defines the shape they
// share, so that those implementation packages can depend on it without
// creating an import cycle back to the factory that chooses between them.
package index

import (
	"github.com/emberkv/ember/internal/record"
	"github.com/emberkv/ember/pkg/options"
)

// Iterator walks an Indexer's keys in a single, fixed direction, optionally
// restricted to a key prefix. It is a read-only snapshot: indexes mutated
// after the iterator is created may or may not be reflected, depending on
// the implementation (the in-memory variants reflect live state at
// snapshot time; the persistent B+-tree variant snapshots its bucket at
// iterator creation).
type Iterator interface {
	// Rewind resets the iterator back to its first key.
	Rewind()
	// Seek advances the iterator to the first key >= (or <=, if reversed)
	// the given key.
	Seek(key []byte)
	// Next advances the iterator and reports whether a key is available.
	Next() bool
	// Key returns the current key. Valid only after a Next() that
	// returned true.
	Key() []byte
	// Position returns the current key's record.Position.
	Position() record.Position
	// Close releases any resources held by the iterator. The tree,
	// skiplist and bptree iterators all work on an in-memory snapshot
	// and hold none.
	Close() error
}

// Indexer is the keydir contract: put, get, delete, enumerate, and iterate
// over the mapping from user key to on-disk record.Position.
type Indexer interface {
	// Put inserts or overwrites key's position, returning the position it
	// replaced, if any.
	Put(key []byte, pos record.Position) (prev *record.Position, err error)
	// Get looks up key's current position.
	Get(key []byte) (*record.Position, error)
	// Delete removes key, returning the position it held, if any.
	Delete(key []byte) (removed *record.Position, err error)
	// ListKeys returns every key currently indexed, in implementation-
	// defined order.
	ListKeys() ([][]byte, error)
	// Size reports how many keys are currently indexed.
	Size() int
	// Iterator returns a new Iterator configured by opts.
	Iterator(opts options.IteratorOptions) (Iterator, error)
	// Close releases any resources held by the index (file handles for
	// the persistent variant; nothing for the in-memory variants).
	Close() error
}

// Package tree implements the default in-memory keydir: an ordered
// google/btree.BTreeG keyed by the raw user key, guarded by a single
// sync.RWMutex. Ordering gives prefix and reverse iteration "for free",
// the same shape of index every in-memory Bitcask implementation in
// practice reaches for ahead of a hand-rolled balanced tree.
package tree

import (
	"bytes"
	"sort"
	"sync"

	"github.com/emberkv/ember/internal/index"
	"github.com/emberkv/ember/internal/record"
	"github.com/emberkv/ember/pkg/options"
	"github.com/google/btree"
	"go.uber.org/zap"
)

type item struct {
	key []byte
	pos record.Position
}

func less(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Tree is the google/btree-backed Indexer implementation.
type Tree struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[item]
	log  *zap.SugaredLogger
}

var _ index.Indexer = (*Tree)(nil)

// New constructs an empty Tree index.
func New(log *zap.SugaredLogger) *Tree {
	return &Tree{
		tree: btree.NewG[item](32, less),
		log:  log,
	}
}

func (t *Tree) Put(key []byte, pos record.Position) (*record.Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := append([]byte(nil), key...)
	old, had := t.tree.ReplaceOrInsert(item{key: k, pos: pos})
	if !had {
		return nil, nil
	}
	return &old.pos, nil
}

func (t *Tree) Get(key []byte) (*record.Position, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	found, ok := t.tree.Get(item{key: key})
	if !ok {
		return nil, nil
	}
	return &found.pos, nil
}

func (t *Tree) Delete(key []byte) (*record.Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed, ok := t.tree.Delete(item{key: key})
	if !ok {
		return nil, nil
	}
	return &removed.pos, nil
}

func (t *Tree) ListKeys() ([][]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([][]byte, 0, t.tree.Len())
	t.tree.Ascend(func(it item) bool {
		keys = append(keys, it.key)
		return true
	})
	return keys, nil
}

func (t *Tree) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.Len()
}

func (t *Tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tree.Clear(false)
	return nil
}

// Iterator snapshots the matching keys into a slice up front: the
// in-memory variants are small enough relative to the keyspace that this
// is cheap, and it keeps iteration semantics identical across all three
// index implementations (the persistent variant has no cheaper option).
func (t *Tree) Iterator(opts options.IteratorOptions) (index.Iterator, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	items := make([]item, 0, t.tree.Len())
	t.tree.Ascend(func(it item) bool {
		if len(opts.Prefix) == 0 || bytes.HasPrefix(it.key, opts.Prefix) {
			items = append(items, it)
		}
		return true
	})

	if opts.Reverse {
		sort.SliceStable(items, func(i, j int) bool { return bytes.Compare(items[i].key, items[j].key) > 0 })
	}

	return &Iter{items: items, pos: -1, reverse: opts.Reverse}, nil
}

// Iter is the snapshot iterator returned by Tree.Iterator.
type Iter struct {
	items   []item
	pos     int
	reverse bool
}

func (it *Iter) Rewind() { it.pos = -1 }

// Seek positions the iterator so the next Next() lands on the first key
// >= target in an ascending snapshot, or the first key <= target in a
// reversed (descending) one.
func (it *Iter) Seek(key []byte) {
	if it.reverse {
		it.pos = sort.Search(len(it.items), func(i int) bool {
			return bytes.Compare(it.items[i].key, key) <= 0
		}) - 1
		return
	}
	it.pos = sort.Search(len(it.items), func(i int) bool {
		return bytes.Compare(it.items[i].key, key) >= 0
	}) - 1
}

func (it *Iter) Next() bool {
	it.pos++
	return it.pos < len(it.items)
}

func (it *Iter) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.items) {
		return nil
	}
	return it.items[it.pos].key
}

func (it *Iter) Position() record.Position {
	if it.pos < 0 || it.pos >= len(it.items) {
		return record.Position{}
	}
	return it.items[it.pos].pos
}

func (it *Iter) Close() error { return nil }

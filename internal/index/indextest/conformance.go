// Package indextest exercises the index.Indexer contract against every
// concrete implementation uniformly, so tree, skiplist and bptree are all
// held to the same behavioral guarantees rather than each growing its own
// slightly different test suite.
package indextest

import (
	"testing"

	"github.com/emberkv/ember/internal/index"
	"github.com/emberkv/ember/internal/record"
	"github.com/emberkv/ember/pkg/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Conformance runs the shared Indexer behavior suite against idx.
func Conformance(t *testing.T, idx index.Indexer) {
	t.Helper()

	t.Run("PutGetDelete", func(t *testing.T) {
		prev, err := idx.Put([]byte("a"), record.Position{FileID: 1, Offset: 0, Size: 10})
		require.NoError(t, err)
		assert.Nil(t, prev)

		got, err := idx.Get([]byte("a"))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, uint32(1), got.FileID)

		prev, err = idx.Put([]byte("a"), record.Position{FileID: 2, Offset: 5, Size: 20})
		require.NoError(t, err)
		require.NotNil(t, prev)
		assert.Equal(t, uint32(1), prev.FileID)

		removed, err := idx.Delete([]byte("a"))
		require.NoError(t, err)
		require.NotNil(t, removed)
		assert.Equal(t, uint32(2), removed.FileID)

		got, err = idx.Get([]byte("a"))
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DeleteAbsentKeyIsNoop", func(t *testing.T) {
		removed, err := idx.Delete([]byte("never-existed"))
		require.NoError(t, err)
		assert.Nil(t, removed)
	})

	t.Run("ListKeysAndSize", func(t *testing.T) {
		for _, k := range []string{"k1", "k2", "k3"} {
			_, err := idx.Put([]byte(k), record.Position{FileID: 1, Offset: 0, Size: 1})
			require.NoError(t, err)
		}

		keys, err := idx.ListKeys()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(keys), 3)
		assert.GreaterOrEqual(t, idx.Size(), 3)
	})

	t.Run("IteratorOrderAndPrefix", func(t *testing.T) {
		for _, k := range []string{"user:1", "user:2", "order:1"} {
			_, err := idx.Put([]byte(k), record.Position{FileID: 1, Offset: 0, Size: 1})
			require.NoError(t, err)
		}

		it, err := idx.Iterator(options.IteratorOptions{Prefix: []byte("user:")})
		require.NoError(t, err)
		defer it.Close()

		it.Rewind()
		var seen []string
		for it.Next() {
			seen = append(seen, string(it.Key()))
		}
		assert.ElementsMatch(t, []string{"user:1", "user:2"}, seen)
	})

	t.Run("IteratorReverse", func(t *testing.T) {
		it, err := idx.Iterator(options.IteratorOptions{Prefix: []byte("user:"), Reverse: true})
		require.NoError(t, err)
		defer it.Close()

		it.Rewind()
		var seen []string
		for it.Next() {
			seen = append(seen, string(it.Key()))
		}
		require.Len(t, seen, 2)
		assert.Equal(t, "user:2", seen[0])
		assert.Equal(t, "user:1", seen[1])
	})

	t.Run("SeekForward", func(t *testing.T) {
		for _, k := range []string{"seek:1", "seek:2", "seek:3"} {
			_, err := idx.Put([]byte(k), record.Position{FileID: 1, Offset: 0, Size: 1})
			require.NoError(t, err)
		}

		it, err := idx.Iterator(options.IteratorOptions{Prefix: []byte("seek:")})
		require.NoError(t, err)
		defer it.Close()

		it.Seek([]byte("seek:2"))
		var seen []string
		for it.Next() {
			seen = append(seen, string(it.Key()))
		}
		assert.Equal(t, []string{"seek:2", "seek:3"}, seen)
	})

	t.Run("SeekReverse", func(t *testing.T) {
		it, err := idx.Iterator(options.IteratorOptions{Prefix: []byte("seek:"), Reverse: true})
		require.NoError(t, err)
		defer it.Close()

		it.Seek([]byte("seek:2"))
		var seen []string
		for it.Next() {
			seen = append(seen, string(it.Key()))
		}
		assert.Equal(t, []string{"seek:2", "seek:1"}, seen)
	})
}

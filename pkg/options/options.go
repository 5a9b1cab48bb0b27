// Package options provides data structures and functions for configuring
// an ember database instance. It defines every parameter that controls
// ember's storage behavior, durability guarantees, and index selection,
// following the functional-options pattern.
package options

import "strings"

// IndexType selects the in-memory (or persistent) keydir implementation
// an Engine uses to map keys to record positions.
type IndexType uint8

const (
	// TreeIndex keeps the keydir in an ordered in-memory B-tree
	// (github.com/google/btree). This is the default: cheap, fully
	// in-memory, and gives ordered iteration for free.
	TreeIndex IndexType = iota

	// SkipListIndex keeps the keydir in a concurrent in-memory skiplist.
	// Comparable lookup cost to TreeIndex with different locking
	// characteristics under heavy concurrent writes.
	SkipListIndex

	// BPlusTreeIndex persists the keydir itself to disk in a single
	// bbolt-backed bucket file (bptree-index), trading lookup latency
	// for the ability to skip a full log scan on every restart.
	BPlusTreeIndex
)

func (t IndexType) String() string {
	switch t {
	case TreeIndex:
		return "tree"
	case SkipListIndex:
		return "skiplist"
	case BPlusTreeIndex:
		return "bptree"
	default:
		return "unknown"
	}
}

// IOType selects how data file bytes are read from disk during startup.
type IOType uint8

const (
	// StandardIO reads segments through ordinary positional os.File reads.
	StandardIO IOType = iota

	// MemoryMappedIO maps every segment read-only for fast cold-start
	// scans; the engine swaps each segment back to StandardIO once
	// startup recovery finishes, since mmap write/sync are unsupported.
	MemoryMappedIO
)

func (t IOType) String() string {
	switch t {
	case StandardIO:
		return "standard"
	case MemoryMappedIO:
		return "mmap"
	default:
		return "unknown"
	}
}

// Options defines the configuration parameters for an ember database.
type Options struct {
	// DataDir is the directory where every file belonging to this database
	// instance lives: data files, the hint file, the lock file, and (if
	// selected) the persistent index file.
	DataDir string `json:"dataDir"`

	// DataFileSize is the maximum size, in bytes, a data file may grow to
	// before the engine rotates to a new active file.
	DataFileSize int64 `json:"dataFileSize"`

	// SyncWrites forces an fsync after every Put/Delete when true. When
	// false, durability is governed only by BytesPerSync and OS-level
	// writeback.
	SyncWrites bool `json:"syncWrites"`

	// BytesPerSync triggers an automatic fsync once this many bytes have
	// been written to the active file since the last sync. Zero disables
	// the byte-count trigger.
	BytesPerSync int64 `json:"bytesPerSync"`

	// IndexType selects which keydir implementation the engine uses.
	IndexType IndexType `json:"indexType"`

	// StartupIOType selects how data files are read while the engine is
	// scanning them for recovery.
	StartupIOType IOType `json:"startupIOType"`

	// DataFileMergeRatio is the minimum fraction, within [0, 1], of
	// reclaimable (stale) bytes relative to total bytes on disk required
	// before Merge will proceed.
	DataFileMergeRatio float64 `json:"dataFileMergeRatio"`
}

// BatchOptions configures a single write batch created via Engine.NewBatch.
type BatchOptions struct {
	// MaxBatchSize caps how many pending writes a batch may buffer before
	// Commit refuses it with ErrExceedMaxBatchNum.
	MaxBatchSize int `json:"maxBatchSize"`

	// SyncWrites forces an fsync when the batch commits, independent of
	// the engine-level SyncWrites setting.
	SyncWrites bool `json:"syncWrites"`
}

// IteratorOptions configures key iteration order and filtering.
type IteratorOptions struct {
	// Prefix restricts iteration to keys sharing this byte prefix. A nil
	// or empty prefix iterates every key.
	Prefix []byte `json:"prefix"`

	// Reverse iterates keys from largest to smallest when true.
	Reverse bool `json:"reverse"`
}

// OptionFunc is a function type that modifies an Options value. Applying
// a sequence of OptionFuncs to the defaults is the only supported way to
// build a non-default configuration.
type OptionFunc func(*Options)

// WithDefaultOptions resets Options to the library defaults. Useful as the
// first entry in an option list before overriding specific fields.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		*o = NewDefaultOptions()
	}
}

// WithDataDir sets the base directory ember stores all of its files under.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// WithDataFileSize sets the rotation threshold for the active data file.
func WithDataFileSize(size int64) OptionFunc {
	return func(o *Options) {
		if size > 0 {
			o.DataFileSize = size
		}
	}
}

// WithSyncWrites enables or disables an fsync after every write.
func WithSyncWrites(sync bool) OptionFunc {
	return func(o *Options) {
		o.SyncWrites = sync
	}
}

// WithBytesPerSync sets the byte-count auto-sync threshold.
func WithBytesPerSync(n int64) OptionFunc {
	return func(o *Options) {
		if n >= 0 {
			o.BytesPerSync = n
		}
	}
}

// WithIndexType selects the keydir implementation.
func WithIndexType(t IndexType) OptionFunc {
	return func(o *Options) {
		o.IndexType = t
	}
}

// WithStartupIOType selects how data files are read during recovery.
func WithStartupIOType(t IOType) OptionFunc {
	return func(o *Options) {
		o.StartupIOType = t
	}
}

// WithDataFileMergeRatio sets the minimum stale-byte ratio required before
// Merge proceeds.
func WithDataFileMergeRatio(ratio float64) OptionFunc {
	return func(o *Options) {
		if ratio >= 0 && ratio <= 1 {
			o.DataFileMergeRatio = ratio
		}
	}
}

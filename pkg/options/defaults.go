package options

const (
	// DefaultDataDir is used when no directory is supplied at all; callers
	// are expected to override this in anything beyond a scratch instance.
	DefaultDataDir = "/var/lib/emberdb"

	// MinDataFileSize is the smallest data file size the engine accepts.
	MinDataFileSize int64 = 1 * 1024 * 1024 // 1MB

	// DefaultDataFileSize is the target size for a new data file in bytes (256MB).
	DefaultDataFileSize int64 = 256 * 1024 * 1024

	// DefaultBytesPerSync disables the byte-count auto-sync trigger.
	DefaultBytesPerSync int64 = 0

	// DefaultDataFileMergeRatio is the fraction of reclaimable bytes that
	// must accumulate before a call to Merge proceeds.
	DefaultDataFileMergeRatio = 0.5

	// DefaultMaxBatchSize bounds how many pending writes a batch buffers.
	DefaultMaxBatchSize = 10000
)

var defaultOptions = Options{
	DataDir:            DefaultDataDir,
	DataFileSize:       DefaultDataFileSize,
	SyncWrites:         false,
	BytesPerSync:       DefaultBytesPerSync,
	IndexType:          TreeIndex,
	StartupIOType:      StandardIO,
	DataFileMergeRatio: DefaultDataFileMergeRatio,
}

// NewDefaultOptions returns the library's default configuration values.
func NewDefaultOptions() Options {
	return defaultOptions
}

var defaultBatchOptions = BatchOptions{
	MaxBatchSize: DefaultMaxBatchSize,
	SyncWrites:   true,
}

// NewDefaultBatchOptions returns the library's default batch configuration.
func NewDefaultBatchOptions() BatchOptions {
	return defaultBatchOptions
}

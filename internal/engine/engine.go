// Package engine implements ember's database engine: the active-file
// append path, the keydir-backed read path, startup recovery, and (in
// batch.go and merge.go) the batch/transaction and compaction subsystems
// that need direct access to the same private state.
//
// These three concerns stay in one package rather than three because they
// share the active file handle, the closed-files map, the index, and the
// commit/merge locks — exporting accessors for all of that just to split
// the package across directories would only add indirection, not
// structure.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/emberkv/ember/internal/index"
	"github.com/emberkv/ember/internal/index/factory"
	"github.com/emberkv/ember/internal/iomanager"
	"github.com/emberkv/ember/internal/record"
	"github.com/emberkv/ember/internal/storage"
	"github.com/emberkv/ember/pkg/errors"
	"github.com/emberkv/ember/pkg/filesys"
	"github.com/emberkv/ember/pkg/options"
	"github.com/emberkv/ember/pkg/seginfo"
	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// ErrEngineClosed is returned when attempting to perform operations on a
// closed engine.
var ErrEngineClosed = errors.ErrDatabaseInUse

// Engine is ember's database engine: it coordinates the on-disk data
// files (internal/storage), the keydir (internal/index), and the
// batch/merge subsystems layered on top of both.
type Engine struct {
	options *options.Options
	log     *zap.SugaredLogger
	closed  atomic.Bool

	dirLock *flock.Flock

	activeMu   sync.RWMutex
	active     *storage.DataFile
	closedMu   sync.RWMutex
	closedFile map[uint32]*storage.DataFile

	idx index.Indexer

	sequenceNumber atomic.Uint64
	bytesSinceSync atomic.Int64
	reclaimable    atomic.Int64

	batchCommitMu sync.Mutex
	mergeMu       sync.Mutex

	isFirstTimeInit     bool
	sequenceFileExisted bool
}

// Config holds all the parameters needed to initialize a new Engine.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// Stats summarizes an engine's current on-disk and in-memory footprint.
type Stats struct {
	KeyCount        int
	DataFileCount   int
	ReclaimableSize int64
	TotalDiskSize   int64
}

// Open validates config, acquires the directory's advisory lock, recovers
// from any prior state (an unfinished merge, existing data files, a
// persisted index), and returns a ready-to-use Engine.
func Open(ctx context.Context, config *Config) (*Engine, error) {
	if err := checkOptions(config.Options); err != nil {
		return nil, err
	}

	dataDir := config.Options.DataDir
	if exists, _ := filesys.Exists(dataDir); !exists {
		if err := filesys.CreateDir(dataDir, 0755, true); err != nil {
			return nil, errors.ClassifyDirectoryCreationError(err, dataDir)
		}
	}

	lockPath := filepath.Join(dataDir, seginfo.LockFileName)
	dirLock := flock.New(lockPath)
	locked, err := dirLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("engine: failed to acquire directory lock: %w", err)
	}
	if !locked {
		return nil, errors.ErrDatabaseInUse
	}

	if err := loadMergeFiles(dataDir, config.Logger); err != nil {
		dirLock.Unlock()
		return nil, err
	}

	e := &Engine{
		options:    config.Options,
		log:        config.Logger,
		dirLock:    dirLock,
		closedFile: make(map[uint32]*storage.DataFile),
	}

	if err := e.loadDataFiles(); err != nil {
		dirLock.Unlock()
		return nil, err
	}

	idx, err := factory.New(dataDir, config.Options, config.Logger)
	if err != nil {
		dirLock.Unlock()
		return nil, err
	}
	e.idx = idx

	if config.Options.IndexType == options.BPlusTreeIndex {
		if err := e.loadSequenceNumberFromFile(); err != nil {
			dirLock.Unlock()
			return nil, err
		}
	} else {
		if err := e.loadIndexFromDataFiles(); err != nil {
			dirLock.Unlock()
			return nil, err
		}
	}

	if config.Options.StartupIOType == options.MemoryMappedIO {
		if err := e.resetIOType(); err != nil {
			dirLock.Unlock()
			return nil, err
		}
	}

	return e, nil
}

func checkOptions(opts *options.Options) error {
	if opts == nil || opts.DataDir == "" {
		return errors.NewValidationError(errors.ErrDirPathIsEmpty, errors.ErrorCodeInvalidInput, "data directory must be set").
			WithField("DataDir").WithRule("required")
	}
	if opts.DataFileSize < options.MinDataFileSize {
		return errors.NewValidationError(errors.ErrDataFileSizeTooSmall, errors.ErrorCodeInvalidInput, "data file size below minimum").
			WithField("DataFileSize").WithRule("min").WithProvided(opts.DataFileSize).WithExpected(options.MinDataFileSize)
	}
	if opts.DataFileMergeRatio < 0 || opts.DataFileMergeRatio > 1 {
		return errors.NewValidationError(errors.ErrInvalidMergeRatio, errors.ErrorCodeInvalidInput, "merge ratio out of range").
			WithField("DataFileMergeRatio").WithRule("range").WithProvided(opts.DataFileMergeRatio).WithDetail("minValue", 0).WithDetail("maxValue", 1)
	}
	return nil
}

// loadDataFiles discovers every numbered data file already on disk,
// opens all but the highest-numbered one as closed (read-only-from-here)
// files, and opens the highest-numbered one (or a brand new file_id 1) as
// the active file.
func (e *Engine) loadDataFiles() error {
	ids, err := seginfo.ListDataFileIDs(e.options.DataDir)
	if err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read database directory").
			WithPath(e.options.DataDir)
	}

	if len(ids) == 0 {
		e.isFirstTimeInit = true
		active, err := storage.Open(e.options.DataDir, 1, options.StandardIO, e.log)
		if err != nil {
			return err
		}
		e.active = active
		return nil
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	ioType := e.options.StartupIOType
	for _, id := range ids[:len(ids)-1] {
		df, err := storage.Open(e.options.DataDir, id, ioType, e.log)
		if err != nil {
			return err
		}
		e.closedFile[id] = df
	}

	activeID := ids[len(ids)-1]
	active, err := storage.Open(e.options.DataDir, activeID, ioType, e.log)
	if err != nil {
		return err
	}
	e.active = active

	return nil
}

// resetIOType swaps every data file's IO manager from MemoryMapped back
// to Standard once the startup scan that benefited from it has finished.
func (e *Engine) resetIOType() error {
	swap := func(df *storage.DataFile) error {
		old := df.IOManager()
		mgr, err := iomanager.OpenStandard(seginfo.DataFilePath(e.options.DataDir, df.FileID))
		if err != nil {
			return err
		}
		df.SetIOManager(mgr)
		return old.Close()
	}

	if err := swap(e.active); err != nil {
		return err
	}
	for _, df := range e.closedFile {
		if err := swap(df); err != nil {
			return err
		}
	}
	return nil
}

// dataFileByID returns the DataFile backing fileID, whether that is the
// current active file or one of the closed ones.
func (e *Engine) dataFileByID(fileID uint32) (*storage.DataFile, error) {
	e.activeMu.RLock()
	if e.active != nil && e.active.FileID == fileID {
		df := e.active
		e.activeMu.RUnlock()
		return df, nil
	}
	e.activeMu.RUnlock()

	e.closedMu.RLock()
	defer e.closedMu.RUnlock()
	df, ok := e.closedFile[fileID]
	if !ok {
		return nil, errors.ErrDataFileNotFound
	}
	return df, nil
}

// Put inserts or overwrites key with value. The record is fsynced only as
// the SyncWrites / BytesPerSync options dictate.
func (e *Engine) Put(key, value []byte) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if len(key) == 0 {
		return errors.ErrKeyIsEmpty
	}

	rec := &record.Record{
		Type:  record.Normal,
		Key:   record.EncodeTxnKey(record.NonTransactionSequence, key),
		Value: value,
	}

	pos, err := e.appendLogRecord(rec)
	if err != nil {
		return err
	}

	if prev, err := e.idx.Put(key, pos); err != nil {
		return errors.ErrIndexUpdateFailed
	} else if prev != nil {
		e.reclaimable.Add(int64(prev.Size))
	}

	return nil
}

// Get looks up key's current value.
func (e *Engine) Get(key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if len(key) == 0 {
		return nil, errors.ErrKeyIsEmpty
	}

	pos, err := e.idx.Get(key)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, errors.ErrKeyNotFound
	}

	return e.readValueAt(*pos)
}

func (e *Engine) readValueAt(pos record.Position) ([]byte, error) {
	df, err := e.dataFileByID(pos.FileID)
	if err != nil {
		return nil, err
	}

	rec, _, err := df.ReadRecord(pos.Offset)
	if err != nil {
		return nil, err
	}
	if rec.Type == record.Deleted {
		return nil, errors.ErrKeyNotFound
	}

	return rec.Value, nil
}

// Delete removes key. It is a no-op (not an error) if key is not present.
func (e *Engine) Delete(key []byte) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if len(key) == 0 {
		return errors.ErrKeyIsEmpty
	}

	existing, err := e.idx.Get(key)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	rec := &record.Record{
		Type: record.Deleted,
		Key:  record.EncodeTxnKey(record.NonTransactionSequence, key),
	}

	pos, err := e.appendLogRecord(rec)
	if err != nil {
		return err
	}
	e.reclaimable.Add(int64(pos.Size))

	removed, err := e.idx.Delete(key)
	if err != nil {
		return errors.ErrIndexUpdateFailed
	}
	if removed != nil {
		e.reclaimable.Add(int64(removed.Size))
	}
	return nil
}

// appendLogRecord encodes rec, appends it to the active file (rotating
// first if it would overflow DataFileSize), and applies the configured
// sync policy.
func (e *Engine) appendLogRecord(rec *record.Record) (record.Position, error) {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()

	encoded := record.Encode(rec)
	size := int64(len(encoded))

	if e.active.WriteOffset()+size > e.options.DataFileSize {
		if err := e.active.Sync(); err != nil {
			return record.Position{}, err
		}

		e.closedMu.Lock()
		e.closedFile[e.active.FileID] = e.active
		e.closedMu.Unlock()

		next, err := storage.Open(e.options.DataDir, e.active.FileID+1, options.StandardIO, e.log)
		if err != nil {
			return record.Position{}, err
		}
		e.active = next
	}

	offset, err := e.active.Write(encoded)
	if err != nil {
		return record.Position{}, err
	}

	e.bytesSinceSync.Add(size)
	if e.options.SyncWrites || (e.options.BytesPerSync > 0 && e.bytesSinceSync.Load() >= e.options.BytesPerSync) {
		if err := e.active.Sync(); err != nil {
			return record.Position{}, err
		}
		e.bytesSinceSync.Store(0)
	}

	return record.Position{FileID: e.active.FileID, Offset: offset, Size: uint32(size)}, nil
}

// Sync flushes the active file's buffered writes to stable storage.
func (e *Engine) Sync() error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	e.activeMu.RLock()
	defer e.activeMu.RUnlock()
	return e.active.Sync()
}

// ListKeys returns every key currently indexed.
func (e *Engine) ListKeys() ([][]byte, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	return e.idx.ListKeys()
}

// Fold calls f once per key/value pair in key order, stopping early if f
// returns false.
func (e *Engine) Fold(f func(key, value []byte) bool) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	it, err := e.idx.Iterator(options.IteratorOptions{})
	if err != nil {
		return err
	}
	defer it.Close()

	it.Rewind()
	for it.Next() {
		value, err := e.readValueAt(it.Position())
		if err != nil {
			continue
		}
		if !f(it.Key(), value) {
			break
		}
	}
	return nil
}

// EngineIterator walks the keydir in key order, resolving each key's value
// from the underlying data files on demand rather than up front — it never
// materializes more than one value at a time, unlike Fold's callback style
// or ListKeys' full key slice.
type EngineIterator struct {
	e  *Engine
	it index.Iterator
}

// Rewind resets the iterator back to its first key.
func (ei *EngineIterator) Rewind() { ei.it.Rewind() }

// Seek advances the iterator to the first key matching opts' direction and
// prefix constraints relative to key.
func (ei *EngineIterator) Seek(key []byte) { ei.it.Seek(key) }

// Next advances the iterator and reports whether a key is available.
func (ei *EngineIterator) Next() bool { return ei.it.Next() }

// Key returns the current key. Valid only after a Next() that returned
// true.
func (ei *EngineIterator) Key() []byte { return ei.it.Key() }

// Value reads the current key's value from its data file.
func (ei *EngineIterator) Value() ([]byte, error) {
	return ei.e.readValueAt(ei.it.Position())
}

// Close releases any resources held by the underlying index iterator.
func (ei *EngineIterator) Close() error { return ei.it.Close() }

// Iterator returns a new EngineIterator configured by opts.
func (e *Engine) Iterator(opts options.IteratorOptions) (*EngineIterator, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	it, err := e.idx.Iterator(opts)
	if err != nil {
		return nil, err
	}
	return &EngineIterator{e: e, it: it}, nil
}

// Stat reports the engine's current on-disk and in-memory footprint.
func (e *Engine) Stat() (Stats, error) {
	if e.closed.Load() {
		return Stats{}, ErrEngineClosed
	}

	e.closedMu.RLock()
	fileCount := len(e.closedFile) + 1
	e.closedMu.RUnlock()

	total, err := dirSize(e.options.DataDir)
	if err != nil {
		total = 0
	}

	return Stats{
		KeyCount:        e.idx.Size(),
		DataFileCount:   fileCount,
		ReclaimableSize: e.reclaimable.Load(),
		TotalDiskSize:   total,
	}, nil
}

// Close flushes and releases every resource the engine holds. Only the
// first call does so; any later call returns ErrEngineClosed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	var firstErr error
	track := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if e.active != nil {
		track(e.active.Sync())
		track(e.active.Close())
	}
	for _, df := range e.closedFile {
		track(df.Close())
	}
	if e.options.IndexType == options.BPlusTreeIndex {
		track(e.writeSequenceNumberFile())
	}
	if e.idx != nil {
		track(e.idx.Close())
	}
	track(e.dirLock.Unlock())

	return firstErr
}

// writeSequenceNumberFile persists the most recently allocated sequence
// number so the persistent B+-tree variant, whose keydir survives a restart
// without a log scan, can resume the counter from it on the next Open
// instead of silently restarting it at zero.
func (e *Engine) writeSequenceNumberFile() error {
	seqFile, err := storage.OpenSequenceNumberFile(e.options.DataDir, e.log)
	if err != nil {
		return err
	}
	data := []byte(strconv.FormatUint(e.sequenceNumber.Load(), 10))
	if _, err := seqFile.Write(data); err != nil {
		seqFile.Close()
		return err
	}
	if err := seqFile.Sync(); err != nil {
		seqFile.Close()
		return err
	}
	return seqFile.Close()
}

// Package ember provides a high-performance, embedded key/value data
// store designed for fast read and write operations, built on a
// Bitcask-style append-only log.
//
// It combines a pluggable in-memory or persistent keydir (see
// internal/index) with an append-only log structure on disk (see
// internal/storage) to achieve high write throughput: every write is a
// single sequential append, and lookups resolve in at most one disk
// seek. It is designed for applications that need fast, durable,
// single-node storage — caching layers, session stores, and embedded
// databases for local tooling.
package ember

import (
	"context"

	"github.com/emberkv/ember/internal/engine"
	"github.com/emberkv/ember/pkg/logger"
	"github.com/emberkv/ember/pkg/options"
)

// Instance is the primary entry point for interacting with an ember
// database. It wraps the underlying engine and the options it was
// opened with.
type Instance struct {
	engine  *engine.Engine
	options *options.Options
}

// NewInstance opens (creating if necessary) an ember database and
// returns a ready-to-use Instance. service names the logger's source,
// matching how the rest of ember's ambient stack tags its structured
// logs.
func NewInstance(ctx context.Context, service string, opts ...options.OptionFunc) (*Instance, error) {
	log := logger.New(service)

	defaultOpts := options.NewDefaultOptions()
	for _, opt := range opts {
		opt(&defaultOpts)
	}

	eng, err := engine.Open(ctx, &engine.Config{Logger: log, Options: &defaultOpts})
	if err != nil {
		return nil, err
	}

	return &Instance{engine: eng, options: &defaultOpts}, nil
}

// Set stores a key-value pair in the database. If the key already
// exists, its value is overwritten. The operation is durable according
// to the SyncWrites/BytesPerSync policy the instance was opened with.
func (i *Instance) Set(ctx context.Context, key string, value []byte) error {
	return i.engine.Put([]byte(key), value)
}

// Get retrieves the value associated with key.
func (i *Instance) Get(ctx context.Context, key string) ([]byte, error) {
	return i.engine.Get([]byte(key))
}

// Delete removes a key-value pair from the database. It is a no-op if
// the key does not exist.
func (i *Instance) Delete(ctx context.Context, key string) error {
	return i.engine.Delete([]byte(key))
}

// ListKeys returns every key currently in the database.
func (i *Instance) ListKeys(ctx context.Context) ([]string, error) {
	keys, err := i.engine.ListKeys()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(keys))
	for idx, k := range keys {
		out[idx] = string(k)
	}
	return out, nil
}

// Fold calls f once per key/value pair currently in the database, in key
// order, stopping early if f returns false.
func (i *Instance) Fold(ctx context.Context, f func(key string, value []byte) bool) error {
	return i.engine.Fold(func(key, value []byte) bool {
		return f(string(key), value)
	})
}

// Iterator returns a new iterator over the database's keys, configured by
// opts (direction, key prefix). Callers must Close it when done.
func (i *Instance) Iterator(opts options.IteratorOptions) (*engine.EngineIterator, error) {
	return i.engine.Iterator(opts)
}

// NewBatch opens a write batch against this instance: a set of Put/Delete
// operations that become visible atomically on Commit.
func (i *Instance) NewBatch(opts options.BatchOptions) (*engine.Batch, error) {
	return i.engine.NewBatch(opts)
}

// Merge compacts the database's data files, discarding overwritten and
// deleted entries and reclaiming their disk space. Merge may be called
// while the database is otherwise in use.
func (i *Instance) Merge(ctx context.Context) error {
	return i.engine.Merge()
}

// Stat reports the instance's current on-disk and in-memory footprint.
func (i *Instance) Stat(ctx context.Context) (engine.Stats, error) {
	return i.engine.Stat()
}

// Sync flushes the active data file's buffered writes to stable storage.
func (i *Instance) Sync(ctx context.Context) error {
	return i.engine.Sync()
}

// Close gracefully shuts down the instance, flushing pending writes and
// releasing every file handle and lock the engine holds.
func (i *Instance) Close(ctx context.Context) error {
	return i.engine.Close()
}

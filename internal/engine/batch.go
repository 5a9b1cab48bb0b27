package engine

import (
	"sort"
	"sync"

	"github.com/emberkv/ember/internal/record"
	"github.com/emberkv/ember/pkg/errors"
	"github.com/emberkv/ember/pkg/options"
)

// Batch buffers a set of Put/Delete operations that become visible all at
// once, or not at all. Nothing is written to the log until Commit: every
// buffered record is tagged with the same sequence number and followed by
// a TxnFinished marker, so a crash between the first buffered record and
// the marker leaves recovery with an incomplete transaction it discards
// in full, rather than a partially applied one.
type Batch struct {
	engine  *Engine
	opts    options.BatchOptions
	mu      sync.Mutex
	pending map[string]*record.Record
	done    bool
}

// NewBatch opens a new write batch against e. With the persistent B+-tree
// index variant the sequence counter is known only when Open found a seq-no
// file or the directory was being initialised for the first time (it has no
// log scan to recover the counter from), so in any other case NewBatch
// returns ErrUnableToUseWriteBatch rather than silently degrading to
// non-transactional writes.
func (e *Engine) NewBatch(opts options.BatchOptions) (*Batch, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if e.options.IndexType == options.BPlusTreeIndex && !e.sequenceFileExisted && !e.isFirstTimeInit {
		return nil, errors.ErrUnableToUseWriteBatch
	}
	return &Batch{engine: e, opts: opts, pending: make(map[string]*record.Record)}, nil
}

// Put buffers key/value for the next Commit. It does not touch the log
// or the index.
func (b *Batch) Put(key, value []byte) error {
	if len(key) == 0 {
		return errors.ErrKeyIsEmpty
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return errors.ErrBatchAlreadyCommitted
	}
	b.pending[string(key)] = &record.Record{
		Type:  record.Normal,
		Key:   append([]byte(nil), key...),
		Value: append([]byte(nil), value...),
	}
	return nil
}

// Delete buffers a tombstone for key for the next Commit. If key has no
// index entry and no pending Put in this batch, the call is a no-op
// success, mirroring Engine.Delete's absent-key behavior.
func (b *Batch) Delete(key []byte) error {
	if len(key) == 0 {
		return errors.ErrKeyIsEmpty
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return errors.ErrBatchAlreadyCommitted
	}

	if _, ok := b.pending[string(key)]; !ok {
		existing, err := b.engine.idx.Get(key)
		if err != nil {
			return err
		}
		if existing == nil {
			return nil
		}
	}

	b.pending[string(key)] = &record.Record{
		Type: record.Deleted,
		Key:  append([]byte(nil), key...),
	}
	return nil
}

// Commit allocates a sequence number, appends every buffered record tagged
// with it, appends the TxnFinished marker that closes the transaction,
// and only then updates the keydir. A Batch can be committed exactly
// once.
func (b *Batch) Commit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return errors.ErrBatchAlreadyCommitted
	}
	if len(b.pending) == 0 {
		b.done = true
		return nil
	}
	if b.opts.MaxBatchSize > 0 && len(b.pending) > b.opts.MaxBatchSize {
		return errors.ErrExceedMaxBatchNum
	}

	e := b.engine
	if e.closed.Load() {
		return ErrEngineClosed
	}

	e.batchCommitMu.Lock()
	defer e.batchCommitMu.Unlock()

	seq := e.sequenceNumber.Add(1)

	keys := make([]string, 0, len(b.pending))
	for k := range b.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	type applied struct {
		key []byte
		typ record.Type
		pos record.Position
	}
	results := make([]applied, 0, len(keys))

	for _, k := range keys {
		rec := b.pending[k]
		pos, err := e.appendLogRecord(&record.Record{
			Type:  rec.Type,
			Key:   record.EncodeTxnKey(seq, []byte(k)),
			Value: rec.Value,
		})
		if err != nil {
			return err
		}
		results = append(results, applied{key: []byte(k), typ: rec.Type, pos: pos})
	}

	finisher := &record.Record{Type: record.TxnFinished, Key: record.EncodeTxnKey(seq, record.TxnFinishedKey)}
	if _, err := e.appendLogRecord(finisher); err != nil {
		return err
	}

	if b.opts.SyncWrites {
		if err := e.active.Sync(); err != nil {
			return err
		}
	}

	for _, a := range results {
		switch a.typ {
		case record.Normal:
			prev, err := e.idx.Put(a.key, a.pos)
			if err != nil {
				return errors.ErrIndexUpdateFailed
			}
			if prev != nil {
				e.reclaimable.Add(int64(prev.Size))
			}
		case record.Deleted:
			removed, err := e.idx.Delete(a.key)
			if err != nil {
				return errors.ErrIndexUpdateFailed
			}
			if removed != nil {
				e.reclaimable.Add(int64(removed.Size))
			}
			e.reclaimable.Add(int64(a.pos.Size))
		}
	}

	b.done = true
	b.pending = nil
	return nil
}

package engine

import (
	"context"
	"testing"

	"github.com/emberkv/ember/internal/record"
	"github.com/emberkv/ember/pkg/errors"
	"github.com/emberkv/ember/pkg/logger"
	"github.com/emberkv/ember/pkg/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(dir string) *options.Options {
	opts := options.NewDefaultOptions()
	opts.DataDir = dir
	opts.DataFileSize = 1 << 20
	return &opts
}

func openTestEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	e, err := Open(context.Background(), &Config{Options: testOptions(dir), Logger: logger.NewNop()})
	require.NoError(t, err)
	return e
}

func TestPutGetDelete(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir)
	defer e.Close()

	require.NoError(t, e.Put([]byte("k1"), []byte("v1")))

	got, err := e.Get([]byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, e.Delete([]byte("k1")))
	_, err = e.Get([]byte("k1"))
	assert.ErrorIs(t, err, errors.ErrKeyNotFound)

	assert.NoError(t, e.Delete([]byte("never-existed")))
}

func TestEmptyKeyRejected(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir)
	defer e.Close()

	assert.ErrorIs(t, e.Put(nil, []byte("v")), errors.ErrKeyIsEmpty)
	_, err := e.Get(nil)
	assert.ErrorIs(t, err, errors.ErrKeyIsEmpty)
	assert.ErrorIs(t, e.Delete(nil), errors.ErrKeyIsEmpty)
}

func TestRecoveryRebuildsIndexAcrossRestarts(t *testing.T) {
	dir := t.TempDir()

	e := openTestEngine(t, dir)
	require.NoError(t, e.Put([]byte("a"), []byte("1")))
	require.NoError(t, e.Put([]byte("b"), []byte("2")))
	require.NoError(t, e.Delete([]byte("a")))
	require.NoError(t, e.Close())

	reopened := openTestEngine(t, dir)
	defer reopened.Close()

	_, err := reopened.Get([]byte("a"))
	assert.ErrorIs(t, err, errors.ErrKeyNotFound)

	got, err := reopened.Get([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
}

func TestSecondOpenOfSameDirectoryFails(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir)
	defer e.Close()

	_, err := Open(context.Background(), &Config{Options: testOptions(dir), Logger: logger.NewNop()})
	assert.ErrorIs(t, err, errors.ErrDatabaseInUse)
}

func TestMergeOnEmptyEngineIsNoop(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir)
	defer e.Close()

	assert.NoError(t, e.Merge())
}

func TestSequenceNumberSurvivesRestartForBPlusTree(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	opts.IndexType = options.BPlusTreeIndex
	e, err := Open(context.Background(), &Config{Options: opts, Logger: logger.NewNop()})
	require.NoError(t, err)

	require.NoError(t, e.Put([]byte("k1"), []byte("v1")))
	batch, err := e.NewBatch(options.NewDefaultBatchOptions())
	require.NoError(t, err)
	require.NoError(t, batch.Put([]byte("k2"), []byte("v2")))
	require.NoError(t, batch.Commit())
	require.NoError(t, e.Close())

	reopened, err := Open(context.Background(), &Config{Options: opts, Logger: logger.NewNop()})
	require.NoError(t, err)
	defer reopened.Close()

	assert.True(t, reopened.sequenceFileExisted)

	_, err = reopened.NewBatch(options.NewDefaultBatchOptions())
	assert.NoError(t, err)
}

func TestDataFileRotation(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	opts.DataFileSize = 256
	e, err := Open(context.Background(), &Config{Options: opts, Logger: logger.NewNop()})
	require.NoError(t, err)
	defer e.Close()

	for i := 0; i < 50; i++ {
		require.NoError(t, e.Put([]byte("key-padding-to-force-rotation"), []byte("value-padding-to-force-rotation")))
	}

	stat, err := e.Stat()
	require.NoError(t, err)
	assert.Greater(t, stat.DataFileCount, 1)
}

func TestBatchDeleteOnAbsentKeyIsNoop(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir)
	defer e.Close()

	batch, err := e.NewBatch(options.NewDefaultBatchOptions())
	require.NoError(t, err)

	require.NoError(t, batch.Delete([]byte("never-existed")))
	require.NoError(t, batch.Commit())

	_, err = e.Get([]byte("never-existed"))
	assert.ErrorIs(t, err, errors.ErrKeyNotFound)

	stat, err := e.Stat()
	require.NoError(t, err)
	assert.Equal(t, 0, stat.KeyCount)
}

func TestBatchDeleteOfKeyPutEarlierInSameBatch(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir)
	defer e.Close()

	batch, err := e.NewBatch(options.NewDefaultBatchOptions())
	require.NoError(t, err)

	require.NoError(t, batch.Put([]byte("k"), []byte("v")))
	require.NoError(t, batch.Delete([]byte("k")))
	require.NoError(t, batch.Commit())

	_, err = e.Get([]byte("k"))
	assert.ErrorIs(t, err, errors.ErrKeyNotFound)
}

func TestBatchCommitIsAtomic(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir)
	defer e.Close()

	batch, err := e.NewBatch(options.NewDefaultBatchOptions())
	require.NoError(t, err)

	require.NoError(t, batch.Put([]byte("order:1"), []byte("42")))
	require.NoError(t, batch.Put([]byte("order:2"), []byte("17")))
	require.NoError(t, batch.Commit())

	v1, err := e.Get([]byte("order:1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("42"), v1)

	v2, err := e.Get([]byte("order:2"))
	require.NoError(t, err)
	assert.Equal(t, []byte("17"), v2)
}

func TestBatchCannotCommitTwice(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir)
	defer e.Close()

	batch, err := e.NewBatch(options.NewDefaultBatchOptions())
	require.NoError(t, err)
	require.NoError(t, batch.Put([]byte("k"), []byte("v")))
	require.NoError(t, batch.Commit())

	assert.ErrorIs(t, batch.Commit(), errors.ErrBatchAlreadyCommitted)
}

func TestBatchCrashBeforeTerminatorIsDiscardedOnRecovery(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir)

	seq := e.sequenceNumber.Add(1)
	_, err := e.appendLogRecord(&record.Record{
		Type:  record.Normal,
		Key:   record.EncodeTxnKey(seq, []byte("uncommitted")),
		Value: []byte("should-not-survive"),
	})
	require.NoError(t, err)
	// No TxnFinished marker is appended: this simulates a crash between
	// the first buffered record and the terminator.
	require.NoError(t, e.Close())

	reopened := openTestEngine(t, dir)
	defer reopened.Close()

	_, err = reopened.Get([]byte("uncommitted"))
	assert.ErrorIs(t, err, errors.ErrKeyNotFound)
}

func TestMergeReclaimsStaleRecordsAfterRestart(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	opts.DataFileSize = 256
	opts.DataFileMergeRatio = 0
	e, err := Open(context.Background(), &Config{Options: opts, Logger: logger.NewNop()})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, e.Put([]byte("hot-key"), []byte("value-that-gets-overwritten-repeatedly")))
	}
	require.NoError(t, e.Put([]byte("stable-key"), []byte("stays")))

	require.NoError(t, e.Merge())
	require.NoError(t, e.Close())

	reopened, err := Open(context.Background(), &Config{Options: opts, Logger: logger.NewNop()})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get([]byte("hot-key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value-that-gets-overwritten-repeatedly"), got)

	got, err = reopened.Get([]byte("stable-key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("stays"), got)
}

func TestIteratorResolvesValues(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir)
	defer e.Close()

	require.NoError(t, e.Put([]byte("x"), []byte("10")))
	require.NoError(t, e.Put([]byte("y"), []byte("20")))

	it, err := e.Iterator(options.IteratorOptions{})
	require.NoError(t, err)
	defer it.Close()

	got := make(map[string]string)
	it.Rewind()
	for it.Next() {
		value, err := it.Value()
		require.NoError(t, err)
		got[string(it.Key())] = string(value)
	}
	assert.Equal(t, map[string]string{"x": "10", "y": "20"}, got)
}

func TestFoldVisitsEveryKey(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir)
	defer e.Close()

	want := map[string]string{"a": "1", "b": "2", "c": "3"}
	for k, v := range want {
		require.NoError(t, e.Put([]byte(k), []byte(v)))
	}

	got := make(map[string]string)
	require.NoError(t, e.Fold(func(key, value []byte) bool {
		got[string(key)] = string(value)
		return true
	}))

	assert.Equal(t, want, got)
}

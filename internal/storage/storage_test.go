package storage

import (
	"testing"

	"github.com/emberkv/ember/internal/record"
	"github.com/emberkv/ember/pkg/logger"
	"github.com/emberkv/ember/pkg/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndReadRecord(t *testing.T) {
	dir := t.TempDir()
	df, err := Open(dir, 1, options.StandardIO, logger.NewNop())
	require.NoError(t, err)
	defer df.Close()

	rec := &record.Record{Type: record.Normal, Key: []byte("k"), Value: []byte("v")}
	encoded := record.Encode(rec)

	offset, err := df.Write(encoded)
	require.NoError(t, err)
	assert.Equal(t, int64(0), offset)
	assert.Equal(t, int64(len(encoded)), df.WriteOffset())

	got, size, err := df.ReadRecord(offset)
	require.NoError(t, err)
	assert.Equal(t, int64(len(encoded)), size)
	assert.Equal(t, rec.Key, got.Key)
	assert.Equal(t, rec.Value, got.Value)
}

func TestReadRecordPastEndReturnsEOF(t *testing.T) {
	dir := t.TempDir()
	df, err := Open(dir, 1, options.StandardIO, logger.NewNop())
	require.NoError(t, err)
	defer df.Close()

	rec := &record.Record{Type: record.Normal, Key: []byte("k"), Value: []byte("v")}
	encoded := record.Encode(rec)
	_, err = df.Write(encoded)
	require.NoError(t, err)

	_, _, err = df.ReadRecord(df.WriteOffset())
	assert.ErrorIs(t, err, record.ErrEndOfFile)
}

func TestHintFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	hint, err := OpenHintFile(dir, logger.NewNop())
	require.NoError(t, err)
	defer hint.Close()

	pos := record.Position{FileID: 5, Offset: 64, Size: 32}
	require.NoError(t, hint.WriteHintRecord([]byte("user:1"), pos))

	got, _, err := hint.ReadRecord(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("user:1"), got.Key)

	decoded, _, err := record.DecodePosition(got.Value)
	require.NoError(t, err)
	assert.Equal(t, pos, decoded)
}

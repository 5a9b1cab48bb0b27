package storage

import (
	"github.com/emberkv/ember/internal/iomanager"
	"go.uber.org/zap"
)

// DataFile wraps a single on-disk data file (or one of the special files:
// the hint file, the merge-finished marker, the sequence-number file) with
// an IO manager and a running write offset.
//
// A DataFile knows nothing about keys or the index; it only knows how to
// read and append framed record.Record values at specific byte offsets.
// That separation is what lets the same type serve as an ordinary segment,
// a merge-pass output file, and a one-record special file.
type DataFile struct {
	FileID      uint32
	writeOffset int64
	io          iomanager.Manager
	log         *zap.SugaredLogger
}

// Config is unused by DataFile directly but documents the fields every
// constructor in this package expects to have available from the engine:
// the directory the file lives in and the logger to attribute I/O errors
// to.
type Config struct {
	Dir    string
	Logger *zap.SugaredLogger
}

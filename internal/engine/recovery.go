package engine

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/emberkv/ember/internal/record"
	"github.com/emberkv/ember/internal/storage"
	"github.com/emberkv/ember/pkg/errors"
	"github.com/emberkv/ember/pkg/seginfo"
)

// loadIndexFromDataFiles rebuilds the in-memory keydir by first bulk
// loading the hint file (if one survived from the last merge) and then
// scanning every data file in file_id order; a record the hint file has
// already placed is not applied a second time. Records tagged with a
// non-zero sequence number are buffered until their matching TxnFinished
// marker arrives, so a batch that crashed mid-commit never becomes
// partially visible.
func (e *Engine) loadIndexFromDataFiles() error {
	hintPositions := make(map[string]record.Position)

	hintPath := filepath.Join(e.options.DataDir, seginfo.HintFileName)
	if exists, _ := pathExists(hintPath); exists {
		if err := e.loadIndexFromHintFile(hintPositions); err != nil {
			return err
		}
	}

	// hinted reports whether pos is the very record the hint file placed
	// for userKey; any other record of that key was written after the
	// merge and is applied normally.
	hinted := func(userKey []byte, pos record.Position) bool {
		h, ok := hintPositions[string(userKey)]
		return ok && h.FileID == pos.FileID && h.Offset == pos.Offset
	}

	ids := e.allFileIDsAscending()

	type pendingEntry struct {
		key []byte
		pos record.Position
		typ record.Type
	}
	pending := make(map[uint64][]pendingEntry)
	var maxSeq uint64

	applyIndex := func(userKey []byte, typ record.Type, pos record.Position) {
		switch typ {
		case record.Normal:
			if prev, err := e.idx.Put(userKey, pos); err == nil && prev != nil {
				e.reclaimable.Add(int64(prev.Size))
			}
		case record.Deleted:
			if removed, err := e.idx.Delete(userKey); err == nil && removed != nil {
				e.reclaimable.Add(int64(removed.Size))
			}
			e.reclaimable.Add(int64(pos.Size))
		}
	}

	for _, id := range ids {
		df, err := e.dataFileByID(id)
		if err != nil {
			return err
		}

		var offset int64
		for {
			rec, size, err := df.ReadRecord(offset)
			if err == record.ErrEndOfFile {
				break
			}
			if err != nil {
				return err
			}

			pos := record.Position{FileID: id, Offset: offset, Size: uint32(size)}
			seq, userKey := record.DecodeTxnKey(rec.Key)
			if seq > maxSeq {
				maxSeq = seq
			}

			if seq == record.NonTransactionSequence {
				if !hinted(userKey, pos) {
					applyIndex(userKey, rec.Type, pos)
				}
			} else if rec.Type == record.TxnFinished {
				for _, entry := range pending[seq] {
					if !hinted(entry.key, entry.pos) {
						applyIndex(entry.key, entry.typ, entry.pos)
					}
				}
				delete(pending, seq)
			} else {
				pending[seq] = append(pending[seq], pendingEntry{key: userKey, pos: pos, typ: rec.Type})
			}

			offset += size
		}
	}

	e.sequenceNumber.Store(maxSeq + 1)
	return nil
}

// loadIndexFromHintFile bulk-loads (key -> position) pairs written during
// the last merge and records each key's hinted position in seen, so the
// subsequent scan does not apply the compacted record at that position a
// second time.
func (e *Engine) loadIndexFromHintFile(seen map[string]record.Position) error {
	hint, err := storage.OpenHintFile(e.options.DataDir, e.log)
	if err != nil {
		return err
	}
	defer hint.Close()

	var offset int64
	for {
		rec, size, err := hint.ReadRecord(offset)
		if err == record.ErrEndOfFile {
			break
		}
		if err != nil {
			return err
		}

		pos, _, err := record.DecodePosition(rec.Value)
		if err != nil {
			return err
		}

		if _, err := e.idx.Put(rec.Key, pos); err != nil {
			return errors.ErrIndexUpdateFailed
		}
		seen[string(rec.Key)] = pos

		offset += size
	}

	return nil
}

// loadSequenceNumberFromFile is consulted instead of a full log scan when
// the persistent B+-tree index variant is selected: the index itself
// survived the restart, so only the last-used sequence number needs to be
// recovered from the seq-no file.
func (e *Engine) loadSequenceNumberFromFile() error {
	path := filepath.Join(e.options.DataDir, seginfo.SequenceNumberFileName)
	exists, err := pathExists(path)
	if err != nil {
		return err
	}
	if !exists {
		e.isFirstTimeInit = e.isFirstTimeInit || e.idx.Size() == 0
		return nil
	}

	e.sequenceFileExisted = true
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read sequence number file").WithPath(path)
	}

	seq, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return errors.ErrDataDirectoryCorrupted
	}
	e.sequenceNumber.Store(seq)

	// The sequence number file is single-use: once consulted, the
	// current write offset (tracked by storage.Open's stat of the active
	// file) becomes the new ground truth, and this file is removed so a
	// stale value is never re-read on a subsequent open.
	return os.Remove(path)
}

func (e *Engine) allFileIDsAscending() []uint32 {
	ids := make([]uint32, 0, len(e.closedFile)+1)
	e.closedMu.RLock()
	for id := range e.closedFile {
		ids = append(ids, id)
	}
	e.closedMu.RUnlock()
	if e.active != nil {
		ids = append(ids, e.active.FileID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

package engine

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/emberkv/ember/internal/record"
	"github.com/emberkv/ember/internal/storage"
	"github.com/emberkv/ember/pkg/errors"
	"github.com/emberkv/ember/pkg/filesys"
	"github.com/emberkv/ember/pkg/options"
	"github.com/emberkv/ember/pkg/seginfo"
	"go.uber.org/zap"
)

// loadMergeFiles resolves whatever a prior Merge left behind in dataDir's
// sibling -merge directory, before the engine opens any of its own data
// files. Three states are possible:
//
//   - no -merge directory: nothing was in progress, nothing to do.
//   - a -merge directory without a merge-finished marker: the merge was
//     interrupted before it committed, so its output is incomplete and is
//     discarded wholesale.
//   - a -merge directory with merge-finished: the merge committed. Every
//     pre-merge data file older than the recorded non_merge_file_id is
//     now redundant and is deleted, then the merge directory's contents
//     (the compacted data files and the hint file) replace it in dataDir.
func loadMergeFiles(dataDir string, log *zap.SugaredLogger) error {
	mergePath := seginfo.MergePath(dataDir)

	exists, err := pathExists(mergePath)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	finishedPath := filepath.Join(mergePath, seginfo.MergeFinishedFileName)
	finished, err := pathExists(finishedPath)
	if err != nil {
		return err
	}
	if !finished {
		return os.RemoveAll(mergePath)
	}

	nonMergeFileID, err := readMergeFinishedMarker(finishedPath)
	if err != nil {
		return err
	}

	ids, err := seginfo.ListDataFileIDs(dataDir)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id < nonMergeFileID {
			if err := os.Remove(seginfo.DataFilePath(dataDir, id)); err != nil {
				return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to remove pre-merge data file").
					WithPath(seginfo.DataFilePath(dataDir, id))
			}
		}
	}

	entries, err := os.ReadDir(mergePath)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		switch name {
		case seginfo.SequenceNumberFileName, seginfo.LockFileName, seginfo.MergeFinishedFileName, seginfo.BPlusTreeIndexFileName:
			// seq-no/flock never belong to the live directory's own
			// lifecycle and merge-finished is consumed above. The
			// persistent B+-tree index, if the merge sub-engine created
			// one, is never populated by the hint-based compaction path
			// below (it writes a hint file, the in-memory-variant
			// recovery artifact) — moving an empty bptree-index over the
			// live one would silently wipe a persistent index that was
			// never actually compacted, so it is not moved and is removed
			// together with the merge directory below. Merge
			// support for the persistent index variant needs the
			// sub-engine's own index kept in sync during compaction, not
			// just its hint file; that is unimplemented.
			continue
		}
		if err := os.Rename(filepath.Join(mergePath, name), filepath.Join(dataDir, name)); err != nil {
			return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to move merged data file into place").
				WithPath(name)
		}
	}

	return os.RemoveAll(mergePath)
}

func readMergeFinishedMarker(path string) (uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read merge-finished marker").WithPath(path)
	}
	id, err := strconv.ParseUint(string(data), 10, 32)
	if err != nil {
		return 0, errors.ErrDataDirectoryCorrupted
	}
	return uint32(id), nil
}

// Merge compacts every closed data file into a fresh set of segments
// containing only the keys still live, writing a hint file alongside
// them from which the next Open loads the compacted keys' positions.
// Merge never mutates the live directory itself: it stages its output in
// a sibling -merge directory and a merge-finished marker commits it; the
// actual cutover happens the next time this database is opened, via
// loadMergeFiles.
func (e *Engine) Merge() error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if !e.mergeMu.TryLock() {
		return errors.ErrMergeInProgress
	}
	defer e.mergeMu.Unlock()

	dataDir := e.options.DataDir

	e.activeMu.RLock()
	e.closedMu.RLock()
	empty := e.active.WriteOffset() == 0 && len(e.closedFile) == 0
	e.closedMu.RUnlock()
	e.activeMu.RUnlock()
	if empty {
		return nil
	}

	totalSize, err := dirSize(dataDir)
	if err != nil {
		return err
	}
	reclaimable := e.reclaimable.Load()
	if totalSize == 0 || float64(reclaimable)/float64(totalSize) < e.options.DataFileMergeRatio {
		return errors.ErrMergeRatioUnreached
	}

	avail, err := filesys.AvailableDiskSpace(dataDir)
	if err != nil {
		return err
	}
	liveSize := totalSize - reclaimable
	if liveSize > 0 && avail < uint64(liveSize) {
		return errors.ErrMergeNoEnoughSpace
	}

	mergePath := seginfo.MergePath(dataDir)
	if err := os.RemoveAll(mergePath); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to clear stale merge directory").WithPath(mergePath)
	}
	if err := filesys.CreateDir(mergePath, 0755, true); err != nil {
		return errors.ClassifyDirectoryCreationError(err, mergePath)
	}

	candidates, err := e.rotateAndCollectMergeCandidates()
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return os.RemoveAll(mergePath)
	}

	mergeOpts := *e.options
	mergeOpts.DataDir = mergePath
	mergeEngine, err := Open(context.Background(), &Config{Options: &mergeOpts, Logger: e.log})
	if err != nil {
		return err
	}

	hintFile, err := storage.OpenHintFile(mergePath, e.log)
	if err != nil {
		mergeEngine.Close()
		return err
	}

	var lastCandidateID uint32
	for _, df := range candidates {
		if df.FileID > lastCandidateID {
			lastCandidateID = df.FileID
		}

		var offset int64
		for {
			rec, size, err := df.ReadRecord(offset)
			if err == record.ErrEndOfFile {
				break
			}
			if err != nil {
				hintFile.Close()
				mergeEngine.Close()
				return err
			}

			if rec.Type == record.Normal {
				_, userKey := record.DecodeTxnKey(rec.Key)
				current, err := e.idx.Get(userKey)
				if err == nil && current != nil && current.FileID == df.FileID && current.Offset == offset {
					newPos, err := mergeEngine.appendLogRecord(&record.Record{
						Type:  record.Normal,
						Key:   record.EncodeTxnKey(record.NonTransactionSequence, userKey),
						Value: rec.Value,
					})
					if err != nil {
						hintFile.Close()
						mergeEngine.Close()
						return err
					}
					if err := hintFile.WriteHintRecord(userKey, newPos); err != nil {
						hintFile.Close()
						mergeEngine.Close()
						return err
					}
				}
			}

			offset += size
		}
	}

	if err := hintFile.Sync(); err != nil {
		hintFile.Close()
		mergeEngine.Close()
		return err
	}
	if err := hintFile.Close(); err != nil {
		mergeEngine.Close()
		return err
	}
	if err := mergeEngine.Close(); err != nil {
		return err
	}

	markerPath := filepath.Join(mergePath, seginfo.MergeFinishedFileName)
	marker, err := os.Create(markerPath)
	if err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to create merge-finished marker").WithPath(markerPath)
	}
	w := bufio.NewWriter(marker)
	if _, err := w.WriteString(strconv.FormatUint(uint64(lastCandidateID+1), 10)); err != nil {
		marker.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		marker.Close()
		return err
	}
	return marker.Close()
}

// rotateAndCollectMergeCandidates forces the active file to rotate (so it
// is no longer accepting writes concurrently with the scan below) and
// returns every closed data file, in file_id order, as the set of
// segments eligible for compaction.
func (e *Engine) rotateAndCollectMergeCandidates() ([]*storage.DataFile, error) {
	e.activeMu.Lock()
	if err := e.active.Sync(); err != nil {
		e.activeMu.Unlock()
		return nil, err
	}

	e.closedMu.Lock()
	e.closedFile[e.active.FileID] = e.active
	e.closedMu.Unlock()

	next, err := storage.Open(e.options.DataDir, e.active.FileID+1, options.StandardIO, e.log)
	if err != nil {
		e.activeMu.Unlock()
		return nil, err
	}
	e.active = next
	e.activeMu.Unlock()

	e.closedMu.RLock()
	candidates := make([]*storage.DataFile, 0, len(e.closedFile))
	for _, df := range e.closedFile {
		candidates = append(candidates, df)
	}
	e.closedMu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].FileID < candidates[j].FileID })
	return candidates, nil
}

// dirSize sums the on-disk size of every regular file directly inside
// path (non-recursive: ember's database directory never nests further
// than special files and numbered segments).
func dirSize(path string) (int64, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read database directory").WithPath(path)
	}

	var total int64
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

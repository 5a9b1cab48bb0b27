// Package seginfo names and discovers the data files that make up an ember
// database directory.
//
// Filename format: NNNNNNNNN.data
//
// Where NNNNNNNNN is a zero-padded, nine-digit file_id (000000001.data,
// 000000002.data, ...). Unlike a generic segment-rotation scheme, ember's
// on-disk layout has no configurable prefix and no timestamp component:
// the file_id alone must be enough to order files and to reference them
// from both the in-memory keydir and the on-disk hint file.
package seginfo

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/emberkv/ember/pkg/filesys"
)

// DataFileSuffix is the fixed extension for every data (segment) file.
const DataFileSuffix = ".data"

// Special, single-instance files that live directly inside the database
// directory alongside the numbered data files.
const (
	LockFileName           = "flock"
	HintFileName           = "hint-index"
	MergeFinishedFileName  = "merge-finished"
	SequenceNumberFileName = "seq-no"
	BPlusTreeIndexFileName = "bptree-index"
	MergeDirSuffix         = "-merge"
)

// DataFileName returns the on-disk filename for the given file_id.
func DataFileName(fileID uint32) string {
	return fmt.Sprintf("%09d%s", fileID, DataFileSuffix)
}

// DataFilePath joins dir with the data file name for fileID.
func DataFilePath(dir string, fileID uint32) string {
	return filepath.Join(dir, DataFileName(fileID))
}

// ParseFileID extracts the file_id from a data file's base name. It
// returns an error if name isn't a well-formed data file name.
func ParseFileID(name string) (uint32, error) {
	if !strings.HasSuffix(name, DataFileSuffix) {
		return 0, fmt.Errorf("seginfo: %q does not have suffix %q", name, DataFileSuffix)
	}
	numeric := strings.TrimSuffix(name, DataFileSuffix)
	id, err := strconv.ParseUint(numeric, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("seginfo: %q is not a valid file_id: %w", name, err)
	}
	return uint32(id), nil
}

// MergePath returns the sibling directory a merge for dir stages its
// output in: {dir}-merge, next to dir rather than inside it, so a merge
// in progress never shares a namespace with the live database files it
// is compacting.
func MergePath(dir string) string {
	clean := strings.TrimSuffix(dir, string(filepath.Separator))
	return clean + MergeDirSuffix
}

// ListDataFileIDs scans dir for data files and returns their file_ids in
// ascending order. Directories and special files (flock, hint-index, ...)
// are ignored.
func ListDataFileIDs(dir string) ([]uint32, error) {
	matches, err := filesys.ReadDir(filepath.Join(dir, "*"+DataFileSuffix))
	if err != nil {
		return nil, fmt.Errorf("seginfo: failed reading directory %q: %w", dir, err)
	}

	ids := make([]uint32, 0, len(matches))
	for _, m := range matches {
		id, err := ParseFileID(filepath.Base(m))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	slices.Sort(ids)
	return ids, nil
}
